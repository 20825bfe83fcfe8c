// Package intent is the boundary between the untrusted natural-language
// oracle and the validated ledger. Proposals arrive as loosely-typed JSON;
// nothing reaches a store without passing the validating parse here.
package intent

import (
	"fmt"
	"math"
	"strings"
	"time"

	"finai.app/internal/ledger"
)

// Proposal kinds as spoken by the oracle.
const (
	KindExpense   = "despesa"
	KindIncome    = "receita"
	KindCreateBox = "criar_caixinha"
)

// InvestCategory is forced onto transactions that resolve to a box.
const InvestCategory = "Investimento"

// ErrMalformedProposal wraps ledger.ErrInvalidArgument so HTTP mapping stays
// uniform; the message carries the user-visible reason.
var ErrMalformedProposal = fmt.Errorf("%w: malformed proposal", ledger.ErrInvalidArgument)

// Proposal is the raw action shape produced by the oracle. Field names are
// the wire contract of the extraction prompt; amounts are decimal currency
// units and get converted to minor units during parsing.
type Proposal struct {
	Kind        string  `json:"tipo"`
	Amount      float64 `json:"valor,omitempty"`
	Description string  `json:"descricao,omitempty"`
	Category    string  `json:"categoria,omitempty"`
	Date        string  `json:"data,omitempty"`
	DueDate     string  `json:"dataVencimento,omitempty"`
	BoxName     string  `json:"boxNome,omitempty"`
	Goal        float64 `json:"meta,omitempty"`
	Emoji       string  `json:"emoji,omitempty"`
	Bank        string  `json:"banco,omitempty"`
}

// Action is the validated tagged variant derived from a Proposal: exactly
// one of CreateBox or Entry is set.
type Action struct {
	CreateBox *ledger.BoxDraft
	Entry     *Entry
}

// Entry is a proposed ledger transaction whose box reference, if any, is
// still a display name to be resolved by the Applier.
type Entry struct {
	Flow        ledger.Kind // KindIncome or KindExpense
	Amount      int64
	Category    string
	OccurredOn  string
	DueOn       string
	Description string
	BoxName     string
}

// Parse validates a proposal and converts it into an Action. Anything that
// does not match a known shape is rejected, never forwarded.
func Parse(p Proposal) (Action, error) {
	switch strings.TrimSpace(strings.ToLower(p.Kind)) {
	case KindCreateBox:
		name := strings.TrimSpace(p.BoxName)
		if name == "" {
			return Action{}, fmt.Errorf("%w: box name is required", ErrMalformedProposal)
		}
		goal, err := toMinorUnits(p.Goal)
		if err != nil || goal <= 0 {
			return Action{}, fmt.Errorf("%w: goal must be a positive amount", ErrMalformedProposal)
		}
		emoji := p.Emoji
		if emoji == "" {
			emoji = "💰"
		}
		return Action{CreateBox: &ledger.BoxDraft{
			Name:  name,
			Goal:  goal,
			Emoji: emoji,
			Bank:  strings.TrimSpace(p.Bank),
		}}, nil

	case KindExpense, KindIncome:
		amount, err := toMinorUnits(p.Amount)
		if err != nil || amount <= 0 {
			return Action{}, fmt.Errorf("%w: amount must be a positive number", ErrMalformedProposal)
		}
		if err := validDate(p.Date); err != nil {
			return Action{}, err
		}
		if err := validDate(p.DueDate); err != nil {
			return Action{}, err
		}
		flow := ledger.KindExpense
		if strings.EqualFold(strings.TrimSpace(p.Kind), KindIncome) {
			flow = ledger.KindIncome
		}
		return Action{Entry: &Entry{
			Flow:        flow,
			Amount:      amount,
			Category:    strings.TrimSpace(p.Category),
			OccurredOn:  strings.TrimSpace(p.Date),
			DueOn:       strings.TrimSpace(p.DueDate),
			Description: strings.TrimSpace(p.Description),
			BoxName:     strings.TrimSpace(p.BoxName),
		}}, nil
	}
	return Action{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedProposal, p.Kind)
}

// toMinorUnits converts a decimal currency value into minor units, rejecting
// values that cannot round-trip safely.
func toMinorUnits(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > math.MaxInt64/100 {
		return 0, fmt.Errorf("%w: amount out of range", ErrMalformedProposal)
	}
	return int64(math.Round(v * 100)), nil
}

func validDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrMalformedProposal, s)
	}
	return nil
}
