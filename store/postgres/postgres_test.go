package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/MrEthical07/loginguard"
	"github.com/MrEthical07/loginguard/store"
	pgstore "github.com/MrEthical07/loginguard/store/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFindByIdentity covers the FindByIdentity lookup.
func TestFindByIdentity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := pgstore.New(mock)
	columns := []string{"account_ref", "identity", "name", "secret_hash"}
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT account_ref, identity, name, secret_hash").
			WithArgs("alice@example.com").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("acct-alice", "alice@example.com", "Alice", "$argon2id$stub"))

		rec, err := s.FindByIdentity(ctx, " Alice@Example.com")
		require.NoError(t, err)
		assert.Equal(t, "acct-alice", rec.AccountRef)
		assert.Equal(t, "Alice", rec.Name)
		assert.Equal(t, "$argon2id$stub", rec.SecretHash)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT account_ref, identity, name, secret_hash").
			WithArgs("nobody@example.com").
			WillReturnError(pgx.ErrNoRows)

		rec, err := s.FindByIdentity(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, loginguard.ErrCredentialNotFound)
		assert.Nil(t, rec)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("SELECT account_ref, identity, name, secret_hash").
			WithArgs("alice@example.com").
			WillReturnError(fmt.Errorf("db error"))

		_, err := s.FindByIdentity(ctx, "alice@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, loginguard.ErrCredentialNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestCreate covers inserts and duplicate detection.
func TestCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := pgstore.New(mock)
	ctx := context.Background()
	rec := loginguard.CredentialRecord{Identity: "New@Example.com", Name: "New User", SecretHash: "hash", AccountRef: "acct-new"}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO credentials").
			WithArgs("acct-new", "new@example.com", "New User", "hash").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, s.Create(ctx, rec))
	})

	t.Run("duplicate", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO credentials").
			WithArgs("acct-new", "new@example.com", "New User", "hash").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		assert.ErrorIs(t, s.Create(ctx, rec), store.ErrDuplicateIdentity)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO credentials").
			WithArgs("acct-new", "new@example.com", "New User", "hash").
			WillReturnError(fmt.Errorf("db error"))

		assert.Error(t, s.Create(ctx, rec))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateSecretHash covers the rehash write path.
func TestUpdateSecretHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := pgstore.New(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE credentials").
			WithArgs("new-hash", "acct-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, s.UpdateSecretHash(ctx, "acct-1", "new-hash"))
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectExec("UPDATE credentials").
			WithArgs("new-hash", "acct-missing").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, s.UpdateSecretHash(ctx, "acct-missing", "new-hash"), loginguard.ErrCredentialNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestMigrate covers schema creation.
func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS credentials").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, pgstore.New(mock).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
