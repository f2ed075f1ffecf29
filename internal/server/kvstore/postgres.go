package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mkorchagin/onboardchat/internal/common"
	"github.com/mkorchagin/onboardchat/internal/dbx"
	"github.com/mkorchagin/onboardchat/internal/server/migrations"
)

// PostgresStore keeps records in a single `records` table keyed by
// (namespace, key). Update serializes concurrent writers inside one
// transaction: a transaction-scoped advisory lock on the key covers
// creation of rows that do not exist yet, and SELECT ... FOR UPDATE
// locks the row itself once it does.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a database handle via the pgx stdlib driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}

// RunMigrations applies the embedded goose migrations, creating the
// records table when missing.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, ns Namespace, key string, fn UpdateFn) error {
	var fnErr error

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// FOR UPDATE cannot lock a row that is still absent, so two
		// transactions creating the same key would both read nil and both
		// upsert. The advisory lock serializes the creation path too; it is
		// held until the transaction commits or rolls back.
		_, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
			string(ns), key)
		if err != nil {
			return err
		}

		query := `
			SELECT value FROM records
			WHERE namespace = $1 AND key = $2
			FOR UPDATE
		`
		var current []byte
		err = tx.QueryRowContext(ctx, query, string(ns), key).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		next, remove, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}

		switch {
		case remove:
			_, err = tx.ExecContext(ctx,
				`DELETE FROM records WHERE namespace = $1 AND key = $2`,
				string(ns), key)
		case next != nil:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO records (namespace, key, value, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (namespace, key)
				DO UPDATE SET value = EXCLUDED.value, updated_at = now()
			`, string(ns), key, next)
		}
		return err
	})

	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	query := `SELECT value FROM records WHERE namespace = $1 AND key = $2`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, string(ns), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return value, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ns Namespace, key string) error {
	query := `DELETE FROM records WHERE namespace = $1 AND key = $2`

	if _, err := s.db.ExecContext(ctx, query, string(ns), key); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
