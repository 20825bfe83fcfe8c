// Package pg is the durable ledger backend. Every mutation that touches both
// the transaction log and a cached box balance runs inside one database
// transaction, which is the real fix for the two-collection consistency gap
// the file store can only approximate.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"finai.app/internal/ids"
	"finai.app/internal/ledger"
)

// Store implements ledger.Service on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ ledger.Service = (*Store)(nil)

// Open connects to the database with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection; used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, kind, amount, category, occurred_on, coalesce(due_on,''), description, coalesce(box_id,''), created_at
		from transactions
		order by seq desc
	`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var res []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &kind, &tx.Amount, &tx.Category, &tx.OccurredOn, &tx.DueOn, &tx.Description, &tx.BoxID, &tx.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		tx.Kind = ledger.Kind(kind)
		res = append(res, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return res, nil
}

func (s *Store) AddTransaction(ctx context.Context, draft ledger.Draft) (ledger.Transaction, error) {
	if err := draft.Validate(); err != nil {
		return ledger.Transaction{}, err
	}

	dbtx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	defer func() { _ = dbtx.Rollback() }()

	// Lock the referenced box and apply the delta. A missing box is
	// tolerated: the entry is still recorded, only the balance stands.
	if draft.BoxID != "" {
		var balance int64
		err := dbtx.QueryRowContext(ctx, `select balance from boxes where id=$1 for update`, draft.BoxID).Scan(&balance)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// dangling reference, skip the balance update
		case err != nil:
			return ledger.Transaction{}, storageErr(err)
		default:
			delta := draft.Amount
			if draft.Kind == ledger.KindWithdrawFromBox {
				if draft.Amount > balance {
					return ledger.Transaction{}, ledger.ErrInsufficientFunds
				}
				delta = -delta
			}
			if _, err := dbtx.ExecContext(ctx, `update boxes set balance = balance + $2 where id=$1`, draft.BoxID, delta); err != nil {
				return ledger.Transaction{}, storageErr(err)
			}
		}
	}

	tx := ledger.Transaction{
		ID:          ids.New(),
		Kind:        draft.Kind,
		Amount:      draft.Amount,
		Category:    draft.Category,
		OccurredOn:  draft.OccurredOn,
		DueOn:       draft.DueOn,
		Description: draft.Description,
		BoxID:       draft.BoxID,
		CreatedAt:   time.Now().UTC(),
	}
	if tx.OccurredOn == "" {
		tx.OccurredOn = tx.CreatedAt.Format("2006-01-02")
	}

	if _, err := dbtx.ExecContext(ctx, `
		insert into transactions(id, kind, amount, category, occurred_on, due_on, description, box_id, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,nullif($8,''),$9)
	`, tx.ID, string(tx.Kind), tx.Amount, tx.Category, tx.OccurredOn, tx.DueOn, tx.Description, tx.BoxID, tx.CreatedAt); err != nil {
		return ledger.Transaction{}, storageErr(err)
	}

	if err := dbtx.Commit(); err != nil {
		return ledger.Transaction{}, storageErr(err)
	}
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	dbtx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return storageErr(err)
	}
	defer func() { _ = dbtx.Rollback() }()

	var kind, boxID string
	var amount int64
	err = dbtx.QueryRowContext(ctx, `
		select kind, amount, coalesce(box_id,'') from transactions where id=$1
	`, id).Scan(&kind, &amount, &boxID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // idempotent delete
	}
	if err != nil {
		return storageErr(err)
	}

	if _, err := dbtx.ExecContext(ctx, `delete from transactions where id=$1`, id); err != nil {
		return storageErr(err)
	}

	// Reverse the balance delta; no-op when the box no longer exists.
	if boxID != "" {
		delta := -amount
		if ledger.Kind(kind) == ledger.KindWithdrawFromBox {
			delta = amount
		}
		if _, err := dbtx.ExecContext(ctx, `update boxes set balance = balance + $2 where id=$1`, boxID, delta); err != nil {
			return storageErr(err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) ListBoxes(ctx context.Context) ([]ledger.Box, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, goal, balance, coalesce(emoji,''), coalesce(bank,''), created_at
		from boxes
		order by created_at asc, id asc
	`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var res []ledger.Box
	for rows.Next() {
		var b ledger.Box
		if err := rows.Scan(&b.ID, &b.Name, &b.Goal, &b.Balance, &b.Emoji, &b.Bank, &b.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return res, nil
}

func (s *Store) CreateBox(ctx context.Context, draft ledger.BoxDraft) (ledger.Box, error) {
	if strings.TrimSpace(draft.Name) == "" || draft.Goal <= 0 {
		return ledger.Box{}, ledger.ErrInvalidArgument
	}

	dbtx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return ledger.Box{}, storageErr(err)
	}
	defer func() { _ = dbtx.Rollback() }()

	profile, err := profileTx(ctx, dbtx)
	if err != nil {
		return ledger.Box{}, err
	}
	var count int
	if err := dbtx.QueryRowContext(ctx, `select count(*) from boxes`).Scan(&count); err != nil {
		return ledger.Box{}, storageErr(err)
	}
	if !profile.Premium && count >= profile.FreeBoxLimit {
		return ledger.Box{}, ledger.ErrQuotaExceeded
	}

	box := ledger.Box{
		ID:        ids.New(),
		Name:      strings.TrimSpace(draft.Name),
		Goal:      draft.Goal,
		Emoji:     draft.Emoji,
		Bank:      draft.Bank,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := dbtx.ExecContext(ctx, `
		insert into boxes(id, name, goal, balance, emoji, bank, created_at)
		values ($1,$2,$3,0,$4,$5,$6)
	`, box.ID, box.Name, box.Goal, box.Emoji, box.Bank, box.CreatedAt); err != nil {
		return ledger.Box{}, storageErr(err)
	}

	if err := dbtx.Commit(); err != nil {
		return ledger.Box{}, storageErr(err)
	}
	return box, nil
}

func (s *Store) UpdateBox(ctx context.Context, id string, patch ledger.BoxPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		update boxes set
			name  = coalesce($2, name),
			goal  = coalesce($3, goal),
			emoji = coalesce($4, emoji),
			bank  = coalesce($5, bank)
		where id = $1
	`, id, trimmed(patch.Name), patch.Goal, patch.Emoji, patch.Bank)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) DeleteBox(ctx context.Context, id string) error {
	// Transactions referencing the box are left in place on purpose.
	if _, err := s.db.ExecContext(ctx, `delete from boxes where id=$1`, id); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) Projection(ctx context.Context) (ledger.Projection, error) {
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		return ledger.Projection{}, err
	}
	boxes, err := s.ListBoxes(ctx)
	if err != nil {
		return ledger.Projection{}, err
	}
	return ledger.Project(txs, boxes), nil
}

func (s *Store) Profile(ctx context.Context) (ledger.Profile, error) {
	profile := ledger.DefaultProfile()
	err := s.db.QueryRowContext(ctx, `
		select name, is_premium, currency, free_box_limit from profile where id=1
	`).Scan(&profile.Name, &profile.Premium, &profile.Currency, &profile.FreeBoxLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.DefaultProfile(), nil
	}
	if err != nil {
		return ledger.Profile{}, storageErr(err)
	}
	return profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, patch ledger.ProfilePatch) (ledger.Profile, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return ledger.Profile{}, ledger.ErrInvalidArgument
	}
	if patch.Currency != nil && strings.TrimSpace(*patch.Currency) == "" {
		return ledger.Profile{}, ledger.ErrInvalidArgument
	}
	if patch.FreeBoxLimit != nil && *patch.FreeBoxLimit < 0 {
		return ledger.Profile{}, ledger.ErrInvalidArgument
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Profile{}, storageErr(err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if err := ensureProfile(ctx, dbtx); err != nil {
		return ledger.Profile{}, err
	}
	var currency *string
	if patch.Currency != nil {
		up := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		currency = &up
	}
	if _, err := dbtx.ExecContext(ctx, `
		update profile set
			name           = coalesce($1, name),
			is_premium     = coalesce($2, is_premium),
			currency       = coalesce($3, currency),
			free_box_limit = coalesce($4, free_box_limit)
		where id = 1
	`, trimmed(patch.Name), patch.Premium, currency, patch.FreeBoxLimit); err != nil {
		return ledger.Profile{}, storageErr(err)
	}

	profile, err := profileTx(ctx, dbtx)
	if err != nil {
		return ledger.Profile{}, err
	}
	if err := dbtx.Commit(); err != nil {
		return ledger.Profile{}, storageErr(err)
	}
	return profile, nil
}

// --- helpers ---

func ensureProfile(ctx context.Context, dbtx *sql.Tx) error {
	def := ledger.DefaultProfile()
	_, err := dbtx.ExecContext(ctx, `
		insert into profile(id, name, is_premium, currency, free_box_limit)
		values (1,$1,$2,$3,$4)
		on conflict (id) do nothing
	`, def.Name, def.Premium, def.Currency, def.FreeBoxLimit)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func profileTx(ctx context.Context, dbtx *sql.Tx) (ledger.Profile, error) {
	profile := ledger.DefaultProfile()
	err := dbtx.QueryRowContext(ctx, `
		select name, is_premium, currency, free_box_limit from profile where id=1
	`).Scan(&profile.Name, &profile.Premium, &profile.Currency, &profile.FreeBoxLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.DefaultProfile(), nil
	}
	if err != nil {
		return ledger.Profile{}, storageErr(err)
	}
	return profile, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
}
