package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	audit "grc/pkg/platform/audit"
	txcontext "grc/pkg/platform/tx"
)

// Dialect selects placeholder and column syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const defaultSaveTimeout = 10 * time.Second

// SQLPersister mirrors state buckets into a single key/value table. On
// postgres the audit outbox rows are inserted in the same transaction.
type SQLPersister struct {
	db      *sql.DB
	dialect Dialect
	audit   audit.Store
	timeout time.Duration
}

// NewSQLPersister builds a persister. auditStore receives the unit's events
// with the SQL transaction in its context; pass the postgres outbox store for
// atomic delivery, or any other store for best effort.
func NewSQLPersister(db *sql.DB, dialect Dialect, auditStore audit.Store) *SQLPersister {
	return &SQLPersister{db: db, dialect: dialect, audit: auditStore, timeout: defaultSaveTimeout}
}

func (p *SQLPersister) schema() string {
	if p.dialect == DialectSQLite {
		return `CREATE TABLE IF NOT EXISTS grc_state (
			bucket TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	}
	return `CREATE TABLE IF NOT EXISTS grc_state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
}

func (p *SQLPersister) upsert() string {
	if p.dialect == DialectSQLite {
		return `INSERT INTO grc_state (bucket, payload, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	}
	return `INSERT INTO grc_state (bucket, payload, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
}

// EnsureSchema creates the state table when missing.
func (p *SQLPersister) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, p.schema()); err != nil {
		return fmt.Errorf("create state schema: %w", err)
	}
	return nil
}

// Load reads every bucket; nil when the table is empty.
func (p *SQLPersister) Load(ctx context.Context) (*State, error) {
	if err := p.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT bucket, payload FROM grc_state`)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	state := NewState()
	found := false
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scan state bucket: %w", err)
		}
		if err := state.DecodeBucket(bucket, payload); err != nil {
			return nil, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return nil, nil
	}
	return state, nil
}

// Save upserts the dirty buckets and appends events in one transaction.
func (p *SQLPersister) Save(ctx context.Context, state *State, dirty []string, events []audit.Event) (err error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, ignoreDone(tx.Rollback()))
		}
	}()

	now := time.Now().UTC()
	for _, bucket := range dirty {
		payload, encErr := state.EncodeBucket(bucket)
		if encErr != nil {
			return encErr
		}
		if _, err = tx.ExecContext(ctx, p.upsert(), bucket, string(payload), now); err != nil {
			return fmt.Errorf("upsert bucket %s: %w", bucket, err)
		}
	}

	if p.audit != nil {
		txCtx := txcontext.WithTx(ctx, tx)
		for _, e := range events {
			if err = p.audit.Append(txCtx, e); err != nil {
				return fmt.Errorf("append audit event: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
