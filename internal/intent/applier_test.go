package intent

import (
	"context"
	"errors"
	"testing"

	"finai.app/internal/ledger"
)

func TestApplyExpenseWithBoxMatch(t *testing.T) {
	svc := ledger.NewInMemory()
	ctx := context.Background()
	applier := NewApplier(svc)

	box, err := svc.CreateBox(ctx, ledger.BoxDraft{Name: "Trip", Goal: 500000})
	if err != nil {
		t.Fatalf("create box: %v", err)
	}

	out, err := applier.Apply(ctx, Proposal{
		Kind:     "despesa",
		Amount:   50,
		BoxName:  "trip",
		Category: "Lazer",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !out.BoxMatched {
		t.Fatal("expected box match")
	}
	tx := out.Transaction
	if tx.Kind != ledger.KindTransferToBox {
		t.Fatalf("kind = %q, want %q", tx.Kind, ledger.KindTransferToBox)
	}
	if tx.BoxID != box.ID {
		t.Fatalf("boxID = %q, want %q", tx.BoxID, box.ID)
	}
	if tx.Category != InvestCategory {
		t.Fatalf("category = %q, want %q", tx.Category, InvestCategory)
	}
	if tx.Amount != 5000 {
		t.Fatalf("amount = %d, want 5000", tx.Amount)
	}

	boxes, _ := svc.ListBoxes(ctx)
	if boxes[0].Balance != 5000 {
		t.Fatalf("box balance = %d, want 5000", boxes[0].Balance)
	}
}

func TestApplyIncomeWithBoxMatchWithdraws(t *testing.T) {
	svc := ledger.NewInMemory()
	ctx := context.Background()
	applier := NewApplier(svc)

	if _, err := svc.CreateBox(ctx, ledger.BoxDraft{Name: "Reserva", Goal: 100000}); err != nil {
		t.Fatalf("create box: %v", err)
	}
	if _, err := applier.Apply(ctx, Proposal{Kind: "despesa", Amount: 300, BoxName: "reserva"}); err != nil {
		t.Fatalf("fund box: %v", err)
	}

	out, err := applier.Apply(ctx, Proposal{Kind: "receita", Amount: 100, BoxName: "RESERVA"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Transaction.Kind != ledger.KindWithdrawFromBox {
		t.Fatalf("kind = %q, want %q", out.Transaction.Kind, ledger.KindWithdrawFromBox)
	}

	boxes, _ := svc.ListBoxes(ctx)
	if boxes[0].Balance != 20000 {
		t.Fatalf("box balance = %d, want 20000", boxes[0].Balance)
	}
}

func TestApplyUnmatchedBoxNameFallsBackToPlainEntry(t *testing.T) {
	svc := ledger.NewInMemory()
	applier := NewApplier(svc)

	out, err := applier.Apply(context.Background(), Proposal{
		Kind:     "despesa",
		Amount:   25,
		BoxName:  "inexistente",
		Category: "Outros",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.BoxMatched {
		t.Fatal("expected no box match")
	}
	if out.Transaction.Kind != ledger.KindExpense {
		t.Fatalf("kind = %q, want plain expense", out.Transaction.Kind)
	}
	if out.Transaction.Category != "Outros" {
		t.Fatalf("category = %q, want caller-supplied", out.Transaction.Category)
	}
}

func TestApplyCreateBox(t *testing.T) {
	svc := ledger.NewInMemory()
	applier := NewApplier(svc)

	out, err := applier.Apply(context.Background(), Proposal{
		Kind:    "criar_caixinha",
		BoxName: "Emergência",
		Goal:    10000,
		Emoji:   "🚨",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Box == nil || out.Box.Name != "Emergência" {
		t.Fatalf("box = %+v", out.Box)
	}
	if out.Box.Goal != 1000000 {
		t.Fatalf("goal = %d, want 1000000", out.Box.Goal)
	}
}

func TestApplyCreateBoxSurfacesQuota(t *testing.T) {
	svc := ledger.NewInMemory()
	ctx := context.Background()
	applier := NewApplier(svc)

	for _, name := range []string{"Um", "Dois"} {
		if _, err := svc.CreateBox(ctx, ledger.BoxDraft{Name: name, Goal: 1000}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	_, err := applier.Apply(ctx, Proposal{Kind: "criar_caixinha", BoxName: "Três", Goal: 10})
	if !errors.Is(err, ledger.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestApplyRejectsMalformed(t *testing.T) {
	applier := NewApplier(ledger.NewInMemory())
	_, err := applier.Apply(context.Background(), Proposal{Kind: "despesa"})
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}
