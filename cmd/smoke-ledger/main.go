package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"finai.app/internal/ledger"
	"finai.app/internal/ledger/remote"
)

func main() {
	baseURL := os.Getenv("FINAI_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := remote.New(baseURL, os.Getenv("FINAI_API_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	before, err := client.Projection(ctx)
	if err != nil {
		log.Fatalf("projection: %v", err)
	}

	income, err := client.AddTransaction(ctx, ledger.Draft{
		Kind:        ledger.KindIncome,
		Amount:      1_000,
		Category:    "Smoke",
		Description: "smoke income",
	})
	if err != nil {
		log.Fatalf("add income: %v", err)
	}

	box, err := client.CreateBox(ctx, ledger.BoxDraft{
		Name: fmt.Sprintf("smoke-%d", time.Now().UnixNano()),
		Goal: 1_000,
	})
	if err != nil {
		log.Fatalf("create box: %v", err)
	}

	transfer, err := client.AddTransaction(ctx, ledger.Draft{
		Kind:   ledger.KindTransferToBox,
		Amount: 420,
		BoxID:  box.ID,
	})
	if err != nil {
		log.Fatalf("transfer to box: %v", err)
	}

	mid, err := client.Projection(ctx)
	if err != nil {
		log.Fatalf("projection: %v", err)
	}
	if got := mid.FreeBalance - before.FreeBalance; got != 1_000-420 {
		log.Fatalf("free balance delta = %d, want %d", got, 1_000-420)
	}
	if got := mid.TotalInBoxes - before.TotalInBoxes; got != 420 {
		log.Fatalf("box total delta = %d, want 420", got)
	}

	// Undo everything: the projection must return to its starting point.
	if err := client.DeleteTransaction(ctx, transfer.ID); err != nil {
		log.Fatalf("delete transfer: %v", err)
	}
	if err := client.DeleteTransaction(ctx, income.ID); err != nil {
		log.Fatalf("delete income: %v", err)
	}
	if err := client.DeleteBox(ctx, box.ID); err != nil {
		log.Fatalf("delete box: %v", err)
	}

	after, err := client.Projection(ctx)
	if err != nil {
		log.Fatalf("projection: %v", err)
	}
	if after.FreeBalance != before.FreeBalance || after.TotalInBoxes != before.TotalInBoxes {
		log.Fatalf("ledger conservation failed: before=%+v after=%+v", before, after)
	}

	fmt.Printf("✅ finai-api smoke test passed: box=%s\n", box.ID)
}
