package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"ledgerapi/transaction/options"
)

// ErrNotFound indicates the referenced transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// Data store abstraction for transaction records.
// Create, UpdateStatus and Delete run against a caller-owned sqlx.Tx so the
// record write commits or rolls back together with the balance mutations.
type TransactionRepo interface {
	Create(ctx context.Context, tx *sqlx.Tx, transaction *Transaction) error
	FindById(ctx context.Context, id string) (*Transaction, error)
	FindByIdForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Transaction, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status Status) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
	Find(ctx context.Context, opts ...*options.TransactionOptions) ([]*Transaction, error)
}

var _ TransactionRepo = (*PostgresTransactionRepo)(nil)

type PostgresTransactionRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) (*PostgresTransactionRepo, error) {
	return &PostgresTransactionRepo{db: db}, nil
}

func (r *PostgresTransactionRepo) Create(ctx context.Context, tx *sqlx.Tx, transaction *Transaction) error {
	rows, err := sqlx.NamedQueryContext(ctx, tx,
		`INSERT INTO transaction (sender_id, receiver_id, amount, description, type, status) VALUES (:sender_id,
		:receiver_id, :amount, :description, :type, :status) RETURNING id, created_at, updated_at`,
		transaction,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.StructScan(transaction); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (r *PostgresTransactionRepo) FindById(ctx context.Context, id string) (*Transaction, error) {
	var result Transaction
	err := r.db.GetContext(ctx, &result, "SELECT * FROM transaction WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

// Loads the record inside the given transaction with a row-level lock so a
// status check and the following update observe a stable row.
func (r *PostgresTransactionRepo) FindByIdForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*Transaction, error) {
	var result Transaction
	err := tx.GetContext(ctx, &result, "SELECT * FROM transaction WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &result, nil
}

func (r *PostgresTransactionRepo) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status Status) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE transaction SET status = $1, updated_at = now() WHERE id = $2", status, id)
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

func (r *PostgresTransactionRepo) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM transaction WHERE id = $1", id)
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

// Executes a Find operation and returns a list of Transactions, newest first.
// The `transactionOptions` can be used to specify filters and paging for the operation
func (r *PostgresTransactionRepo) Find(ctx context.Context, transactionOptions ...*options.TransactionOptions) ([]*Transaction, error) {
	var result []*Transaction
	// build query
	query := "SELECT * FROM transaction"

	opt := options.NewTransactionOptions()
	if len(transactionOptions) > 0 {
		opt = transactionOptions[0]
	}

	filters := make(map[string]interface{})
	if len(opt.IDs) > 0 {
		filters["id"] = opt.IDs
	}
	if len(opt.Types) > 0 {
		filters["type"] = opt.Types
	}
	if len(opt.Statuses) > 0 {
		filters["status"] = opt.Statuses
	}
	if opt.Amount != nil {
		filters["amount"] = opt.Amount
	}
	if opt.Timestamp != nil {
		filters["created_at"] = opt.Timestamp
	}

	var where []string
	namedParams := make(map[string]interface{})

	updateQueryParams := func(stmt, key string, value interface{}) {
		where = append(where, stmt)
		namedParams[key] = value
	}

	for columnName, arg := range filters {
		switch v := arg.(type) {
		case options.Range:
			var key string

			from, ok := v.From()
			if ok {
				key = columnName + "_from"
				fromStmt := fmt.Sprintf("%s >= :%s", columnName, key)
				updateQueryParams(fromStmt, key, from)
			}
			to, ok := v.To()
			if ok {
				key = columnName + "_to"
				toStmt := fmt.Sprintf("%s <= :%s", columnName, key)
				updateQueryParams(toStmt, key, to)
			}

		default:
			stmt := fmt.Sprintf("%s in (:%s)", columnName, columnName)
			updateQueryParams(stmt, columnName, v)
		}
	}

	if len(where) > 0 {
		query = fmt.Sprintf("%s WHERE %s",
			query,
			strings.Join(where, " AND "),
		)
	}

	query += " ORDER BY created_at DESC"

	if opt.PerPage > 0 {
		page := opt.Page
		if page < 1 {
			page = 1
		}
		namedParams["limit"] = opt.PerPage
		namedParams["offset"] = (page - 1) * opt.PerPage
		query += " LIMIT :limit OFFSET :offset"
	}

	query, args, err := sqlx.Named(query, namedParams)
	if err != nil {
		return nil, err
	}
	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	err = r.db.SelectContext(ctx, &result, query, args...)
	if err != nil {
		return nil, err
	}

	return result, nil
}
