// Package postgres is a credential store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
	CREATE TABLE IF NOT EXISTS credentials (
		account_ref TEXT PRIMARY KEY,
		identity    TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT '',
		secret_hash TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Store reads and writes the credentials table.
type Store struct {
	db DB
}

// New returns a Store over db, usually a *pgxpool.Pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the credentials table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}
	return nil
}

// FindByIdentity looks up the canonical form of identity.
func (s *Store) FindByIdentity(ctx context.Context, identity string) (*loginguard.CredentialRecord, error) {
	query := `
		SELECT account_ref, identity, name, secret_hash
		FROM credentials
		WHERE identity = $1
		LIMIT 1`

	var rec loginguard.CredentialRecord
	err := s.db.QueryRow(ctx, query, store.Canonical(identity)).
		Scan(&rec.AccountRef, &rec.Identity, &rec.Name, &rec.SecretHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loginguard.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &rec, nil
}

// Create inserts rec. A conflicting identity or account reference returns
// store.ErrDuplicateIdentity.
func (s *Store) Create(ctx context.Context, rec loginguard.CredentialRecord) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO credentials (account_ref, identity, name, secret_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		rec.AccountRef, store.Canonical(rec.Identity), rec.Name, rec.SecretHash)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateIdentity
	}
	return nil
}

// UpdateSecretHash replaces the hash of accountRef.
func (s *Store) UpdateSecretHash(ctx context.Context, accountRef, secretHash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE credentials
		SET secret_hash = $1, updated_at = now()
		WHERE account_ref = $2`,
		secretHash, accountRef)
	if err != nil {
		return fmt.Errorf("failed to update secret hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return loginguard.ErrCredentialNotFound
	}
	return nil
}
