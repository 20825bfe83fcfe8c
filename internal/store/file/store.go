// Package file persists the ledger as three named JSON collections on disk:
// transactions.json (newest-first log), boxes.json and profile.json. All
// invariant logic lives in ledger.InMemory; this store snapshots its state
// after every mutation.
//
// The two collection writes are not transactional with each other. Boxes are
// written before the log so a crash between the writes leaves cached balances
// that the next Open reconciles by recomputing them from the log.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"finai.app/internal/ledger"
)

const (
	transactionsFile = "transactions.json"
	boxesFile        = "boxes.json"
	profileFile      = "profile.json"
)

// Store implements ledger.Service over flat JSON files.
type Store struct {
	mu  sync.Mutex
	dir string
	mem *ledger.InMemory
}

var _ ledger.Service = (*Store)(nil)

// Open loads the collections from dir, creating it when absent. Unreadable
// or corrupt collections fail open to an empty one: corruption must never
// propagate as a crash.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
	}

	var snap ledger.SnapshotData
	snap.Profile = ledger.DefaultProfile()
	readCollection(filepath.Join(dir, transactionsFile), &snap.Transactions)
	readCollection(filepath.Join(dir, boxesFile), &snap.Boxes)
	readCollection(filepath.Join(dir, profileFile), &snap.Profile)

	mem := ledger.NewInMemory()
	mem.Restore(snap)
	return &Store{dir: dir, mem: mem}, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return s.mem.ListTransactions(ctx)
}

func (s *Store) AddTransaction(ctx context.Context, draft ledger.Draft) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.mem.AddTransaction(ctx, draft)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, s.persistLedger()
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return s.persistLedger()
}

func (s *Store) ListBoxes(ctx context.Context) ([]ledger.Box, error) {
	return s.mem.ListBoxes(ctx)
}

func (s *Store) CreateBox(ctx context.Context, draft ledger.BoxDraft) (ledger.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	box, err := s.mem.CreateBox(ctx, draft)
	if err != nil {
		return ledger.Box{}, err
	}
	return box, s.persistLedger()
}

func (s *Store) UpdateBox(ctx context.Context, id string, patch ledger.BoxPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.UpdateBox(ctx, id, patch); err != nil {
		return err
	}
	return s.persistLedger()
}

func (s *Store) DeleteBox(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteBox(ctx, id); err != nil {
		return err
	}
	return s.persistLedger()
}

func (s *Store) Projection(ctx context.Context) (ledger.Projection, error) {
	return s.mem.Projection(ctx)
}

func (s *Store) Profile(ctx context.Context) (ledger.Profile, error) {
	return s.mem.Profile(ctx)
}

func (s *Store) UpdateProfile(ctx context.Context, patch ledger.ProfilePatch) (ledger.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, err := s.mem.UpdateProfile(ctx, patch)
	if err != nil {
		return ledger.Profile{}, err
	}
	snap := s.mem.Snapshot()
	if err := writeCollection(filepath.Join(s.dir, profileFile), snap.Profile); err != nil {
		return ledger.Profile{}, err
	}
	return profile, nil
}

// persistLedger writes the box collection before the transaction log. The
// applied in-memory state is not rolled back on failure; the error is
// surfaced to the caller instead.
func (s *Store) persistLedger() error {
	snap := s.mem.Snapshot()
	if err := writeCollection(filepath.Join(s.dir, boxesFile), snap.Boxes); err != nil {
		return err
	}
	return writeCollection(filepath.Join(s.dir, transactionsFile), snap.Transactions)
}

func readCollection(path string, dst any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// Fail open: a corrupt collection reads as empty.
		return
	}
}

func writeCollection(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
	}
	return nil
}
