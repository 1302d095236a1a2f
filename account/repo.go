package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the referenced account does not exist.
var ErrNotFound = errors.New("account not found")

// Data store abstraction for accounts.
// The ForUpdate/Increment/Decrement methods run against a caller-owned
// sqlx.Tx so they participate in the engine's atomic unit.
type AccountRepo interface {
	Create(ctx context.Context, account *Account) error
	FindById(ctx context.Context, id string) (*Account, error)
	Find(ctx context.Context, limit, offset int) ([]*Account, error)
	Delete(ctx context.Context, id string) error

	FindByIdForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Account, error)
	IncrementBalance(ctx context.Context, tx *sqlx.Tx, id string, amount decimal.Decimal) error
	DecrementBalance(ctx context.Context, tx *sqlx.Tx, id string, amount decimal.Decimal) error
}

var _ AccountRepo = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) (*PostgresAccountRepo, error) {
	return &PostgresAccountRepo{db: db}, nil
}

func (r *PostgresAccountRepo) Create(ctx context.Context, account *Account) error {
	rows, err := r.db.NamedQueryContext(ctx,
		`INSERT INTO account (first_name, last_name, email, balance) VALUES (:first_name, :last_name, :email,
		:balance) RETURNING id, created_at, updated_at`,
		account,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.StructScan(account); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *PostgresAccountRepo) FindById(ctx context.Context, id string) (*Account, error) {
	var result Account
	err := r.db.GetContext(ctx, &result, "SELECT * FROM account WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (r *PostgresAccountRepo) Find(ctx context.Context, limit, offset int) ([]*Account, error) {
	var result []*Account
	err := r.db.SelectContext(ctx, &result,
		"SELECT * FROM account ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresAccountRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM account WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Loads the account inside the given transaction with a row-level lock so
// the balance read and the following mutation cannot interleave with a
// concurrent operation on the same account.
func (r *PostgresAccountRepo) FindByIdForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Account, error) {
	var result Account
	err := tx.GetContext(ctx, &result, "SELECT * FROM account WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (r *PostgresAccountRepo) IncrementBalance(ctx context.Context, tx *sqlx.Tx, id string, amount decimal.Decimal) error {
	return r.adjustBalance(ctx, tx, id, "UPDATE account SET balance = balance + $1, updated_at = now() WHERE id = $2", amount)
}

func (r *PostgresAccountRepo) DecrementBalance(ctx context.Context, tx *sqlx.Tx, id string, amount decimal.Decimal) error {
	return r.adjustBalance(ctx, tx, id, "UPDATE account SET balance = balance - $1, updated_at = now() WHERE id = $2", amount)
}

func (r *PostgresAccountRepo) adjustBalance(ctx context.Context, tx *sqlx.Tx, id, query string, amount decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, query, amount, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
