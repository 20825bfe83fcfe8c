package ledger

import (
	"context"
	"sync"
	"testing"
)

func TestIncomeThenBoxFlow(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, err := s.AddTransaction(ctx, Draft{Kind: KindIncome, Amount: 300000, Category: "Salary", OccurredOn: "2024-05-20"})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := s.Projection(ctx)
	if p.Income != 300000 || p.FreeBalance != 300000 {
		t.Fatalf("unexpected projection after income: %+v", p)
	}

	trip, err := s.CreateBox(ctx, BoxDraft{Name: "Trip", Goal: 100000, Emoji: "✈️"})
	if err != nil {
		t.Fatal(err)
	}

	transfer, err := s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 20000, BoxID: trip.ID})
	if err != nil {
		t.Fatal(err)
	}
	p, _ = s.Projection(ctx)
	if p.FreeBalance != 280000 || p.Invested != 20000 || p.TotalInBoxes != 20000 {
		t.Fatalf("unexpected projection after transfer: %+v", p)
	}
	boxes, _ := s.ListBoxes(ctx)
	if boxes[0].Balance != 20000 {
		t.Fatalf("box balance = %d, want 20000", boxes[0].Balance)
	}

	if err := s.DeleteTransaction(ctx, transfer.ID); err != nil {
		t.Fatal(err)
	}
	p, _ = s.Projection(ctx)
	if p.FreeBalance != 300000 || p.Invested != 0 {
		t.Fatalf("unexpected projection after delete: %+v", p)
	}
	boxes, _ = s.ListBoxes(ctx)
	if boxes[0].Balance != 0 {
		t.Fatalf("box balance = %d, want 0 after reversal", boxes[0].Balance)
	}
}

func TestAddDeleteSymmetry(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_, _ = s.AddTransaction(ctx, Draft{Kind: KindIncome, Amount: 50000, Category: "Salary"})
	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Reserva", Goal: 100000})
	before, _ := s.Projection(ctx)

	tx, err := s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 12345, BoxID: box.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}

	after, _ := s.Projection(ctx)
	if before != after {
		t.Fatalf("add+delete not symmetric: before=%+v after=%+v", before, after)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Casa", Goal: 500000})
	tx, _ := s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 1000, BoxID: box.ID})

	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	boxes, _ := s.ListBoxes(ctx)
	if boxes[0].Balance != 0 {
		t.Fatalf("double delete moved the balance twice: %d", boxes[0].Balance)
	}
	if err := s.DeleteTransaction(ctx, "no-such-id"); err != nil {
		t.Fatalf("delete of unknown id must be a no-op, got %v", err)
	}
}

func TestBoxQuota(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	for _, name := range []string{"Viagem", "Emergência"} {
		if _, err := s.CreateBox(ctx, BoxDraft{Name: name, Goal: 1000}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateBox(ctx, BoxDraft{Name: "Carro", Goal: 1000}); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	boxes, _ := s.ListBoxes(ctx)
	if len(boxes) != 2 {
		t.Fatalf("rejected creation altered the collection: %d boxes", len(boxes))
	}

	premium := true
	if _, err := s.UpdateProfile(ctx, ProfilePatch{Premium: &premium}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateBox(ctx, BoxDraft{Name: "Carro", Goal: 1000}); err != nil {
		t.Fatalf("premium creation failed: %v", err)
	}
}

func TestCreateBoxValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.CreateBox(ctx, BoxDraft{Name: "  ", Goal: 1000}); err != ErrInvalidArgument {
		t.Fatalf("empty name: got %v", err)
	}
	if _, err := s.CreateBox(ctx, BoxDraft{Name: "Meta", Goal: 0}); err != ErrInvalidArgument {
		t.Fatalf("non-positive goal: got %v", err)
	}
}

func TestWithdrawCannotOverdrawBox(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Trip", Goal: 100000})
	_, _ = s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 5000, BoxID: box.ID})

	if _, err := s.AddTransaction(ctx, Draft{Kind: KindWithdrawFromBox, Amount: 6000, BoxID: box.ID}); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := s.AddTransaction(ctx, Draft{Kind: KindWithdrawFromBox, Amount: 5000, BoxID: box.ID}); err != nil {
		t.Fatalf("exact withdrawal failed: %v", err)
	}
}

func TestDanglingBoxRefIsTolerated(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	// Transfer into a box that does not exist: entry is kept, no balance moves.
	tx, err := s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 700, BoxID: "gone"})
	if err != nil {
		t.Fatal(err)
	}
	txs, _ := s.ListTransactions(ctx)
	if len(txs) != 1 || txs[0].ID != tx.ID {
		t.Fatalf("dangling transfer was not recorded")
	}

	// Deleting a box-linked transaction after its box is gone must not error.
	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Trip", Goal: 1000})
	linked, _ := s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 100, BoxID: box.ID})
	if err := s.DeleteBox(ctx, box.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, linked.ID); err != nil {
		t.Fatalf("delete after box removal: %v", err)
	}
}

func TestCachedBalancesNeverDrift(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	a, _ := s.CreateBox(ctx, BoxDraft{Name: "A", Goal: 1_000_000})
	b, _ := s.CreateBox(ctx, BoxDraft{Name: "B", Goal: 1_000_000})

	var kept []string
	steps := []Draft{
		{Kind: KindTransferToBox, Amount: 300, BoxID: a.ID},
		{Kind: KindTransferToBox, Amount: 200, BoxID: b.ID},
		{Kind: KindWithdrawFromBox, Amount: 150, BoxID: a.ID},
		{Kind: KindWithdrawFromBox, Amount: 75, BoxID: a.ID},
		{Kind: KindTransferToBox, Amount: 40, BoxID: b.ID},
		{Kind: KindWithdrawFromBox, Amount: 40, BoxID: b.ID},
	}
	for i, d := range steps {
		tx, err := s.AddTransaction(ctx, d)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if i%2 == 0 {
			kept = append(kept, tx.ID)
		} else {
			_ = s.DeleteTransaction(ctx, tx.ID)
		}
		assertBalancesMatchLog(t, s)
	}
	for _, id := range kept {
		_ = s.DeleteTransaction(ctx, id)
		assertBalancesMatchLog(t, s)
	}
}

func assertBalancesMatchLog(t *testing.T, s *InMemory) {
	t.Helper()
	ctx := context.Background()
	txs, _ := s.ListTransactions(ctx)
	boxes, _ := s.ListBoxes(ctx)
	fresh := BoxBalances(txs)
	for _, b := range boxes {
		if b.Balance != fresh[b.ID] {
			t.Fatalf("box %s cached=%d recomputed=%d", b.Name, b.Balance, fresh[b.ID])
		}
	}
	p := Project(txs, boxes)
	if p.Invested != p.TotalInBoxes {
		t.Fatalf("invested=%d total_in_boxes=%d", p.Invested, p.TotalInBoxes)
	}
}

func TestUpdateBox(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Trip", Goal: 1000})
	_, _ = s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 400, BoxID: box.ID})

	name := "Viagem"
	goal := int64(2000)
	bank := "Nubank"
	if err := s.UpdateBox(ctx, box.ID, BoxPatch{Name: &name, Goal: &goal, Bank: &bank}); err != nil {
		t.Fatal(err)
	}
	boxes, _ := s.ListBoxes(ctx)
	got := boxes[0]
	if got.Name != "Viagem" || got.Goal != 2000 || got.Bank != "Nubank" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.Balance != 400 {
		t.Fatalf("patch touched the balance: %d", got.Balance)
	}

	if err := s.UpdateBox(ctx, "missing", BoxPatch{Name: &name}); err != nil {
		t.Fatalf("update of unknown id must be a no-op, got %v", err)
	}
	empty := "  "
	if err := s.UpdateBox(ctx, box.ID, BoxPatch{Name: &empty}); err != ErrInvalidArgument {
		t.Fatalf("empty name patch: got %v", err)
	}
}

func TestSnapshotRestoreRecomputesBalances(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Trip", Goal: 1000})
	_, _ = s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 250, BoxID: box.ID})

	snap := s.Snapshot()
	snap.Boxes[0].Balance = 999_999 // simulate a corrupted cached field

	restored := NewInMemory()
	restored.Restore(snap)
	boxes, _ := restored.ListBoxes(ctx)
	if boxes[0].Balance != 250 {
		t.Fatalf("restore trusted the cached balance: %d", boxes[0].Balance)
	}
}

func TestConcurrentBoxTransfers(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	box, _ := s.CreateBox(ctx, BoxDraft{Name: "Race", Goal: 10_000_000})

	var wg sync.WaitGroup
	N := 50
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddTransaction(ctx, Draft{Kind: KindTransferToBox, Amount: 100, BoxID: box.ID})
		}()
	}
	wg.Wait()

	boxes, _ := s.ListBoxes(ctx)
	if boxes[0].Balance != int64(N)*100 {
		t.Fatalf("lost updates: balance=%d", boxes[0].Balance)
	}
	assertBalancesMatchLog(t, s)
}
