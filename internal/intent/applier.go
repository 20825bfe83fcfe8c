package intent

import (
	"context"
	"strings"

	"finai.app/internal/ledger"
)

// Applier turns parsed actions into ledger mutations. Box references are
// resolved against the live box list at apply time, not at parse time, so a
// box deleted between extraction and confirmation degrades to a plain entry.
type Applier struct {
	svc ledger.Service
}

func NewApplier(svc ledger.Service) *Applier {
	return &Applier{svc: svc}
}

// Outcome reports what a confirmed proposal produced.
type Outcome struct {
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Box         *ledger.Box         `json:"box,omitempty"`
	BoxMatched  bool                `json:"box_matched"`
}

// Apply validates a proposal and executes it against the ledger.
func (a *Applier) Apply(ctx context.Context, p Proposal) (Outcome, error) {
	action, err := Parse(p)
	if err != nil {
		return Outcome{}, err
	}

	if action.CreateBox != nil {
		box, err := a.svc.CreateBox(ctx, *action.CreateBox)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Box: &box}, nil
	}

	entry := action.Entry
	draft := ledger.Draft{
		Kind:        entry.Flow,
		Amount:      entry.Amount,
		Category:    entry.Category,
		OccurredOn:  entry.OccurredOn,
		DueOn:       entry.DueOn,
		Description: entry.Description,
	}

	if entry.BoxName != "" {
		box, ok, err := a.resolveBox(ctx, entry.BoxName)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			draft.BoxID = box.ID
			draft.Category = InvestCategory
			switch entry.Flow {
			case ledger.KindExpense:
				draft.Kind = ledger.KindTransferToBox
			case ledger.KindIncome:
				draft.Kind = ledger.KindWithdrawFromBox
			}
		}
	}

	tx, err := a.svc.AddTransaction(ctx, draft)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Transaction: &tx, BoxMatched: draft.BoxID != ""}, nil
}

// resolveBox matches a display name case-insensitively against existing
// boxes. The first match in list order wins.
func (a *Applier) resolveBox(ctx context.Context, name string) (ledger.Box, bool, error) {
	boxes, err := a.svc.ListBoxes(ctx)
	if err != nil {
		return ledger.Box{}, false, err
	}
	for _, b := range boxes {
		if strings.EqualFold(b.Name, name) {
			return b, true, nil
		}
	}
	return ledger.Box{}, false, nil
}
