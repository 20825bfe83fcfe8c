package ledger

import (
	"errors"
	"strings"
	"time"
)

// Amounts are minor currency units (e.g. centavos). No floats.

// Kind classifies a ledger transaction.
type Kind string

const (
	KindIncome          Kind = "income"
	KindExpense         Kind = "expense"
	KindTransferToBox   Kind = "transfer_to_box"
	KindWithdrawFromBox Kind = "withdraw_from_box"
)

// Valid reports whether k is a known transaction kind.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindTransferToBox, KindWithdrawFromBox:
		return true
	}
	return false
}

// BoxLinked reports whether transactions of this kind move money between the
// free balance and a box.
func (k Kind) BoxLinked() bool {
	return k == KindTransferToBox || k == KindWithdrawFromBox
}

// Transaction is one immutable entry of the ledger log. Entries are never
// edited in place; the only mutation after creation is deletion.
type Transaction struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Amount      int64     `json:"amount"` // minor units
	Category    string    `json:"category,omitempty"`
	OccurredOn  string    `json:"occurred_on"` // calendar date, YYYY-MM-DD
	DueOn       string    `json:"due_on,omitempty"`
	Description string    `json:"description,omitempty"`
	BoxID       string    `json:"box_id,omitempty"` // set iff Kind.BoxLinked()
	CreatedAt   time.Time `json:"created_at"`
}

// Draft is the caller-supplied part of a transaction; id and creation time
// are assigned by the store.
type Draft struct {
	Kind        Kind   `json:"kind"`
	Amount      int64  `json:"amount"`
	Category    string `json:"category,omitempty"`
	OccurredOn  string `json:"occurred_on,omitempty"`
	DueOn       string `json:"due_on,omitempty"`
	Description string `json:"description,omitempty"`
	BoxID       string `json:"box_id,omitempty"`
}

// Box is a goal-tracked sub-account. Balance is derived from the transaction
// log and cached here; the log is the source of truth.
type Box struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Goal      int64     `json:"goal"`    // minor units
	Balance   int64     `json:"balance"` // cached; maintained by the store only
	Emoji     string    `json:"emoji,omitempty"`
	Bank      string    `json:"bank,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BoxDraft holds the caller-supplied fields for box creation.
type BoxDraft struct {
	Name  string `json:"name"`
	Goal  int64  `json:"goal"`
	Emoji string `json:"emoji,omitempty"`
	Bank  string `json:"bank,omitempty"`
}

// BoxPatch is a partial update; nil fields are left unchanged. Balance is
// deliberately absent: it moves only through transaction operations.
type BoxPatch struct {
	Name  *string `json:"name,omitempty"`
	Goal  *int64  `json:"goal,omitempty"`
	Emoji *string `json:"emoji,omitempty"`
	Bank  *string `json:"bank,omitempty"`
}

// Profile gates box creation (free-tier quota) and carries display settings.
type Profile struct {
	Name         string `json:"name"`
	Premium      bool   `json:"is_premium"`
	Currency     string `json:"currency"`
	FreeBoxLimit int    `json:"free_box_limit"`
}

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	Name         *string `json:"name,omitempty"`
	Premium      *bool   `json:"is_premium,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	FreeBoxLimit *int    `json:"free_box_limit,omitempty"`
}

// DefaultProfile is the singleton materialized when none has been stored.
func DefaultProfile() Profile {
	return Profile{Name: "User", Premium: false, Currency: "BRL", FreeBoxLimit: 2}
}

// Validate rejects drafts that must never reach a store: unknown kind,
// non-positive amount, a box reference that disagrees with the kind, or a
// plain income/expense without a category.
func (d Draft) Validate() error {
	if !d.Kind.Valid() {
		return ErrInvalidArgument
	}
	if d.Amount <= 0 {
		return ErrInvalidAmount
	}
	if d.Kind.BoxLinked() != (d.BoxID != "") {
		return ErrInvalidArgument
	}
	if !d.Kind.BoxLinked() && strings.TrimSpace(d.Category) == "" {
		return ErrInvalidArgument
	}
	return nil
}

// Validate rejects patches that would leave a box unusable.
func (p BoxPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrInvalidArgument
	}
	if p.Goal != nil && *p.Goal <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("invalid amount (must be > 0)")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrQuotaExceeded      = errors.New("free-tier box quota exceeded")
	ErrInsufficientFunds  = errors.New("insufficient box balance")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
