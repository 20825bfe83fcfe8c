package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"finai.app/internal/intent"
	"finai.app/internal/ledger/remote"
)

func main() {
	log.SetFlags(0)
	var (
		baseURL = flag.String("base-url", "http://localhost:8080", "API base URL")
		token   = flag.String("token", os.Getenv("FINAI_API_TOKEN"), "Bearer token (optional)")
	)
	flag.Parse()

	client := remote.New(*baseURL, *token)
	ctx := context.Background()

	profile, err := client.Profile(ctx)
	if err != nil {
		log.Fatalf("connect to %s: %v", *baseURL, err)
	}
	fmt.Printf("FinAI — olá, %s! Digite uma mensagem (ou \"sair\").\n", profile.Name)
	printBalance(ctx, client)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "sair" || line == "exit" {
			break
		}

		msgCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		reply, err := client.Message(msgCtx, line)
		cancel()
		if err != nil {
			log.Printf("assistente: %v", err)
			continue
		}
		if reply.Advice != "" {
			fmt.Println(reply.Advice)
		}
		if reply.Proposal == nil {
			continue
		}

		if !confirmPrompt(scanner, reply.Proposal) {
			fmt.Println("Ok, descartado.")
			continue
		}
		out, err := client.Confirm(ctx, *reply.Proposal)
		if err != nil {
			log.Printf("confirmar: %v", err)
			continue
		}
		printOutcome(out)
		printBalance(ctx, client)
	}
}

func confirmPrompt(scanner *bufio.Scanner, p *intent.Proposal) bool {
	switch strings.ToLower(p.Kind) {
	case intent.KindCreateBox:
		fmt.Printf("Criar caixinha %q com meta de %.2f? [s/n] ", p.BoxName, p.Goal)
	default:
		fmt.Printf("Registrar %s de %.2f (%s)? [s/n] ", p.Kind, p.Amount, p.Description)
	}
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "s" || answer == "sim" || answer == "y" || answer == "yes"
}

func printOutcome(out intent.Outcome) {
	switch {
	case out.Box != nil:
		fmt.Printf("Caixinha %q criada.\n", out.Box.Name)
	case out.Transaction != nil:
		fmt.Printf("Registrado: %s de %s.\n",
			out.Transaction.Kind, intent.FormatAmount("", out.Transaction.Amount))
	}
}

func printBalance(ctx context.Context, client *remote.Client) {
	proj, err := client.Projection(ctx)
	if err != nil {
		return
	}
	fmt.Printf("Saldo livre: %s | Em caixinhas: %s\n",
		intent.FormatAmount("", proj.FreeBalance),
		intent.FormatAmount("", proj.TotalInBoxes))
}
