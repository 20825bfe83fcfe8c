package ledger

// Projection is the read-only summary derived from the transaction log plus
// the box collection. It is recomputed on demand and never cached.
type Projection struct {
	Income       int64 `json:"income"`
	Expenses     int64 `json:"expenses"`
	FreeBalance  int64 `json:"free_balance"`
	Invested     int64 `json:"invested"`
	TotalInBoxes int64 `json:"total_in_boxes"`
}

// Project folds the transaction log once. TotalInBoxes sums cached box
// balances and equals Invested whenever the cache has not drifted from the
// log, which makes the pair a cheap consistency check.
func Project(txs []Transaction, boxes []Box) Projection {
	var p Projection
	for _, tx := range txs {
		switch tx.Kind {
		case KindIncome:
			p.Income += tx.Amount
			p.FreeBalance += tx.Amount
		case KindExpense:
			p.Expenses += tx.Amount
			p.FreeBalance -= tx.Amount
		case KindTransferToBox:
			p.FreeBalance -= tx.Amount
			p.Invested += tx.Amount
		case KindWithdrawFromBox:
			p.FreeBalance += tx.Amount
			p.Invested -= tx.Amount
		}
	}
	for _, b := range boxes {
		p.TotalInBoxes += b.Balance
	}
	return p
}

// BoxBalances recomputes every box balance fresh from the log, keyed by box
// id. Transactions referencing deleted boxes contribute to keys nobody reads.
func BoxBalances(txs []Transaction) map[string]int64 {
	balances := make(map[string]int64)
	for _, tx := range txs {
		if tx.BoxID == "" {
			continue
		}
		switch tx.Kind {
		case KindTransferToBox:
			balances[tx.BoxID] += tx.Amount
		case KindWithdrawFromBox:
			balances[tx.BoxID] -= tx.Amount
		}
	}
	return balances
}
