// Package accounts reads and writes rows of the accounts table.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/ledger/database"
)

const selectAccountsSql = `SELECT * FROM accounts`

const selectAccountByIdSql = `SELECT * FROM accounts WHERE id = $1`

const insertAccountSql = `
INSERT INTO accounts (name, account_type, balance, currency, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING id;
`

const deleteAccountSql = `DELETE FROM accounts WHERE id = $1`

// Fetch returns every row of the accounts table in the engine's scan order.
// An empty table yields an empty, non-nil slice.
func Fetch(ctx context.Context, db sqlx.QueryerContext) ([]Account, error) {
	rows, err := db.QueryxContext(ctx, selectAccountsSql)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	return accounts, nil
}

// Get returns the account with the given id, or ErrNotFound.
func Get(ctx context.Context, db sqlx.QueryerContext, id int64) (*Account, error) {
	rows, err := db.QueryxContext(ctx, selectAccountByIdSql, id)
	if err != nil {
		return nil, fmt.Errorf("query account %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read account %d: %w", id, err)
		}
		return nil, ErrNotFound
	}
	account, err := scanAccount(rows)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func scanAccount(rows *sqlx.Rows) (Account, error) {
	row := Row{}
	if err := rows.MapScan(row); err != nil {
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
	return mapAccount(row)
}

// Create inserts a validated account and returns it as stored. CreatedAt and
// UpdatedAt are the same instant.
func Create(ctx context.Context, db sqlx.QueryerContext, n NewAccount) (*Account, error) {
	n.Normalize()
	if err := n.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var id int64
	err := db.QueryRowxContext(ctx, insertAccountSql,
		n.Name, n.AccountType, n.Balance, n.Currency, n.Description, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert account %s: %w", n.Name, err)
	}
	return Get(ctx, db, id)
}

// Delete removes the account with the given id, or returns ErrNotFound.
func Delete(ctx context.Context, db sqlx.ExecerContext, id int64) error {
	result, err := db.ExecContext(ctx, deleteAccountSql, id)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recorder is told about completed account mutations.
type Recorder interface {
	LogAccountCreated(ctx context.Context, account *Account) error
	LogAccountDeleted(ctx context.Context, id int64) error
}

// Repository binds the account queries to an open database. Every call first
// checks that the database file is still the one that was opened. Mutations
// are reported to the optional Recorder after they commit; a recorder failure
// is logged and does not undo the mutation.
type Repository struct {
	db       *database.Database
	recorder Recorder
	logger   *slog.Logger
}

func NewRepository(db *database.Database, recorder Recorder, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{db: db, recorder: recorder, logger: logger}
}

func (r *Repository) Fetch(ctx context.Context) ([]Account, error) {
	if err := r.db.Check(); err != nil {
		return nil, err
	}
	return Fetch(ctx, r.db.GetDB())
}

func (r *Repository) Get(ctx context.Context, id int64) (*Account, error) {
	if err := r.db.Check(); err != nil {
		return nil, err
	}
	return Get(ctx, r.db.GetDB(), id)
}

func (r *Repository) Create(ctx context.Context, n NewAccount) (*Account, error) {
	if err := r.db.Check(); err != nil {
		return nil, err
	}
	account, err := Create(ctx, r.db.GetDB(), n)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Account created", "id", account.ID, "name", account.Name)
	if r.recorder != nil {
		if err := r.recorder.LogAccountCreated(ctx, account); err != nil {
			r.logger.Warn("Failed to record account creation", "id", account.ID, "error", err)
		}
	}
	return account, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	if err := r.db.Check(); err != nil {
		return err
	}
	if err := Delete(ctx, r.db.GetDB(), id); err != nil {
		return err
	}
	r.logger.Info("Account deleted", "id", id)
	if r.recorder != nil {
		if err := r.recorder.LogAccountDeleted(ctx, id); err != nil {
			r.logger.Warn("Failed to record account deletion", "id", id, "error", err)
		}
	}
	return nil
}

// IsNotFound reports whether err means the account does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
