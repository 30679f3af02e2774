// Package sqlite is a credential store on SQLite using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/store"
	_ "modernc.org/sqlite"
)

// Store reads and writes the credentials table of one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations. Use
// ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			account_ref TEXT PRIMARY KEY,
			identity    TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL DEFAULT '',
			secret_hash TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

// FindByIdentity looks up the canonical form of identity.
func (s *Store) FindByIdentity(ctx context.Context, identity string) (*loginguard.CredentialRecord, error) {
	var rec loginguard.CredentialRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT account_ref, identity, name, secret_hash
		FROM credentials
		WHERE identity = ?`, store.Canonical(identity)).
		Scan(&rec.AccountRef, &rec.Identity, &rec.Name, &rec.SecretHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, loginguard.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &rec, nil
}

// Create inserts rec. A conflicting identity or account reference returns
// store.ErrDuplicateIdentity.
func (s *Store) Create(ctx context.Context, rec loginguard.CredentialRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO credentials (account_ref, identity, name, secret_hash)
		VALUES (?, ?, ?, ?)`,
		rec.AccountRef, store.Canonical(rec.Identity), rec.Name, rec.SecretHash)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	if n == 0 {
		return store.ErrDuplicateIdentity
	}
	return nil
}

// UpdateSecretHash replaces the hash of accountRef.
func (s *Store) UpdateSecretHash(ctx context.Context, accountRef, secretHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET secret_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_ref = ?`, secretHash, accountRef)
	if err != nil {
		return fmt.Errorf("failed to update secret hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update secret hash: %w", err)
	}
	if n == 0 {
		return loginguard.ErrCredentialNotFound
	}
	return nil
}
