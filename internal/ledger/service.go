package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"finai.app/internal/ids"
)

// Service defines the ledger operations exposed to the UI layer.
// The store is the only writer of cached box balances: every mutation that
// enters here either fully applies (log entry plus balance delta) or not
// at all.
type Service interface {
	ListTransactions(ctx context.Context) ([]Transaction, error)
	AddTransaction(ctx context.Context, draft Draft) (Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	ListBoxes(ctx context.Context) ([]Box, error)
	CreateBox(ctx context.Context, draft BoxDraft) (Box, error)
	UpdateBox(ctx context.Context, id string, patch BoxPatch) error
	DeleteBox(ctx context.Context, id string) error

	Projection(ctx context.Context) (Projection, error)

	Profile(ctx context.Context) (Profile, error)
	UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error)
}

// InMemory implements Service with in-process concurrency safety. It backs
// tests and the file store; the pg store is the durable alternative.
type InMemory struct {
	mu      sync.RWMutex
	txs     []Transaction // newest-first
	boxes   []Box         // creation order
	profile Profile
	now     func() time.Time
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty ledger with the default profile.
func NewInMemory() *InMemory {
	return &InMemory{
		profile: DefaultProfile(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) ListTransactions(ctx context.Context) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

// AddTransaction assigns id and creation time, prepends the entry to the log
// and applies the box balance delta in the same critical section. A box
// reference that does not resolve is tolerated: the entry is still recorded
// so user data is never dropped, only the balance update is skipped.
func (s *InMemory) AddTransaction(ctx context.Context, draft Draft) (Transaction, error) {
	if err := draft.Validate(); err != nil {
		return Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.BoxID != "" && draft.Kind == KindWithdrawFromBox {
		if b := s.findBox(draft.BoxID); b != nil && draft.Amount > b.Balance {
			return Transaction{}, ErrInsufficientFunds
		}
	}

	tx := Transaction{
		ID:          ids.New(),
		Kind:        draft.Kind,
		Amount:      draft.Amount,
		Category:    draft.Category,
		OccurredOn:  draft.OccurredOn,
		DueOn:       draft.DueOn,
		Description: draft.Description,
		BoxID:       draft.BoxID,
		CreatedAt:   s.now(),
	}
	if tx.OccurredOn == "" {
		tx.OccurredOn = tx.CreatedAt.Format("2006-01-02")
	}

	s.txs = append([]Transaction{tx}, s.txs...)
	s.applyBoxDelta(tx, false)
	return tx, nil
}

// DeleteTransaction removes the entry and reverses its balance delta.
// Deleting an unknown id is a no-op: deletion is idempotent.
func (s *InMemory) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tx := range s.txs {
		if tx.ID != id {
			continue
		}
		s.txs = append(s.txs[:i], s.txs[i+1:]...)
		s.applyBoxDelta(tx, true)
		return nil
	}
	return nil
}

func (s *InMemory) ListBoxes(ctx context.Context) ([]Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Box, len(s.boxes))
	copy(out, s.boxes)
	return out, nil
}

func (s *InMemory) CreateBox(ctx context.Context, draft BoxDraft) (Box, error) {
	if strings.TrimSpace(draft.Name) == "" || draft.Goal <= 0 {
		return Box{}, ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.Premium && len(s.boxes) >= s.profile.FreeBoxLimit {
		return Box{}, ErrQuotaExceeded
	}

	box := Box{
		ID:        ids.New(),
		Name:      strings.TrimSpace(draft.Name),
		Goal:      draft.Goal,
		Balance:   0,
		Emoji:     draft.Emoji,
		Bank:      draft.Bank,
		CreatedAt: s.now(),
	}
	s.boxes = append(s.boxes, box)
	return box, nil
}

func (s *InMemory) UpdateBox(ctx context.Context, id string, patch BoxPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.findBox(id)
	if b == nil {
		return nil
	}
	if patch.Name != nil {
		b.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Goal != nil {
		b.Goal = *patch.Goal
	}
	if patch.Emoji != nil {
		b.Emoji = *patch.Emoji
	}
	if patch.Bank != nil {
		b.Bank = *patch.Bank
	}
	return nil
}

// DeleteBox removes the box only. Transactions referencing it stay in the
// log with a dangling box id; their balance effects are already reflected
// in the projection and are not reclassified.
func (s *InMemory) DeleteBox(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.boxes {
		if b.ID == id {
			s.boxes = append(s.boxes[:i], s.boxes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemory) Projection(ctx context.Context) (Projection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Project(s.txs, s.boxes), nil
}

func (s *InMemory) Profile(ctx context.Context) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile, nil
}

func (s *InMemory) UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return Profile{}, ErrInvalidArgument
		}
		s.profile.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Premium != nil {
		s.profile.Premium = *patch.Premium
	}
	if patch.Currency != nil {
		if strings.TrimSpace(*patch.Currency) == "" {
			return Profile{}, ErrInvalidArgument
		}
		s.profile.Currency = strings.ToUpper(strings.TrimSpace(*patch.Currency))
	}
	if patch.FreeBoxLimit != nil {
		if *patch.FreeBoxLimit < 0 {
			return Profile{}, ErrInvalidArgument
		}
		s.profile.FreeBoxLimit = *patch.FreeBoxLimit
	}
	return s.profile, nil
}

// Snapshot captures the full state for persistence.
type SnapshotData struct {
	Transactions []Transaction `json:"transactions"`
	Boxes        []Box         `json:"boxes"`
	Profile      Profile       `json:"profile"`
}

// Snapshot returns a copy of the current state.
func (s *InMemory) Snapshot() SnapshotData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := SnapshotData{
		Transactions: make([]Transaction, len(s.txs)),
		Boxes:        make([]Box, len(s.boxes)),
		Profile:      s.profile,
	}
	copy(snap.Transactions, s.txs)
	copy(snap.Boxes, s.boxes)
	return snap
}

// Restore replaces the state with snap. Cached box balances are recomputed
// from the transaction log so a stale or hand-edited snapshot cannot make
// them drift from the source of truth.
func (s *InMemory) Restore(snap SnapshotData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = make([]Transaction, len(snap.Transactions))
	copy(s.txs, snap.Transactions)
	s.boxes = make([]Box, len(snap.Boxes))
	copy(s.boxes, snap.Boxes)
	s.profile = snap.Profile
	if s.profile.Currency == "" {
		s.profile = DefaultProfile()
	}

	balances := BoxBalances(s.txs)
	for i := range s.boxes {
		s.boxes[i].Balance = balances[s.boxes[i].ID]
	}
}

// --- internal ---

func (s *InMemory) findBox(id string) *Box {
	for i := range s.boxes {
		if s.boxes[i].ID == id {
			return &s.boxes[i]
		}
	}
	return nil
}

// applyBoxDelta moves the cached balance of the referenced box. reverse
// undoes the effect of the original insert; both directions no-op when the
// box no longer exists.
func (s *InMemory) applyBoxDelta(tx Transaction, reverse bool) {
	if tx.BoxID == "" || !tx.Kind.BoxLinked() {
		return
	}
	b := s.findBox(tx.BoxID)
	if b == nil {
		return
	}
	delta := tx.Amount
	if tx.Kind == KindWithdrawFromBox {
		delta = -delta
	}
	if reverse {
		delta = -delta
	}
	b.Balance += delta
}
