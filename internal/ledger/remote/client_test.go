package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"finai.app/internal/httpapi"
	"finai.app/internal/ledger"
	"finai.app/internal/stream"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	api := httpapi.New(httpapi.ReadyProbe{}, httpapi.Options{
		Ledger:     ledger.NewInMemory(),
		Stream:     stream.New(),
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return New(srv.URL, "")
}

func TestClientRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.AddTransaction(ctx, ledger.Draft{
		Kind:     ledger.KindIncome,
		Amount:   300000,
		Category: "Salário",
	}); err != nil {
		t.Fatalf("add income: %v", err)
	}

	box, err := client.CreateBox(ctx, ledger.BoxDraft{Name: "Trip", Goal: 500000})
	if err != nil {
		t.Fatalf("create box: %v", err)
	}

	tx, err := client.AddTransaction(ctx, ledger.Draft{
		Kind:   ledger.KindTransferToBox,
		Amount: 20000,
		BoxID:  box.ID,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	proj, err := client.Projection(ctx)
	if err != nil {
		t.Fatalf("projection: %v", err)
	}
	if proj.FreeBalance != 280000 || proj.TotalInBoxes != 20000 {
		t.Fatalf("projection = %+v", proj)
	}

	txs, err := client.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 || txs[0].ID != tx.ID {
		t.Fatalf("transactions = %+v", txs)
	}

	if err := client.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	proj, _ = client.Projection(ctx)
	if proj.FreeBalance != 300000 {
		t.Fatalf("free balance after delete = %d", proj.FreeBalance)
	}
}

func TestClientMapsErrorsToSentinels(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.AddTransaction(ctx, ledger.Draft{Kind: ledger.KindExpense, Amount: -1})
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}

	for _, name := range []string{"One", "Two"} {
		if _, err := client.CreateBox(ctx, ledger.BoxDraft{Name: name, Goal: 1000}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	_, err = client.CreateBox(ctx, ledger.BoxDraft{Name: "Three", Goal: 1000})
	if !errors.Is(err, ledger.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestClientProfileUpdate(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	premium := true
	profile, err := client.UpdateProfile(ctx, ledger.ProfilePatch{Premium: &premium})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if !profile.Premium {
		t.Fatal("expected premium profile")
	}

	got, err := client.Profile(ctx)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !got.Premium {
		t.Fatal("profile not persisted")
	}
}
