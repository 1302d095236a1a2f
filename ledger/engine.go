package ledger

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"ledgerapi/account"
	"ledgerapi/internal/journal"
	"ledgerapi/transaction"
	"ledgerapi/transaction/options"
)

// smallest accepted monetary amount, 0.01
var minAmount = decimal.New(1, -2)

// DefaultPerPage is the page size used when a listing does not specify one
const DefaultPerPage = 15

// Journal is the append-only audit record of committed engine operations
type Journal interface {
	Append(*journal.Entry) (uint64, error)
}

// Config used to create a new Engine
type Config struct {
	DB           *sqlx.DB
	Accounts     account.AccountRepo
	Transactions transaction.TransactionRepo
	// optional; operations succeed without an audit journal
	Journal Journal
}

// Engine is the sole authority for mutating account balances. Every
// operation runs as one database transaction: account reads, eligibility
// checks, balance writes and the transaction record land together or not
// at all.
type Engine struct {
	db           *sqlx.DB
	accounts     account.AccountRepo
	transactions transaction.TransactionRepo
	journal      Journal
}

func NewEngine(config *Config) (*Engine, error) {
	return &Engine{
		db:           config.DB,
		accounts:     config.Accounts,
		transactions: config.Transactions,
		journal:      config.Journal,
	}, nil
}

type TransferInput struct {
	SenderID    string
	ReceiverID  string
	Amount      decimal.Decimal
	Description string
}

type DepositInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
}

type WithdrawInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
}

// Transfer moves amount from sender to receiver and records the movement.
// Fails before any write when the sender lacks funds or the receiver's
// balance is already negative.
func (e *Engine) Transfer(ctx context.Context, input TransferInput) (*transaction.Transaction, error) {
	senderID, err := parseID(input.SenderID, "sender_id")
	if err != nil {
		return nil, err
	}
	receiverID, err := parseID(input.ReceiverID, "receiver_id")
	if err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, errInvalidInput("sender and receiver must be different accounts")
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.Description == "" {
		return nil, errInvalidInput("description is required")
	}

	var created *transaction.Transaction
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		accounts, err := e.lockAccounts(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		sender, receiver := accounts[senderID], accounts[receiverID]

		if input.Amount.GreaterThan(sender.Balance) {
			return errInsufficientFunds()
		}
		if receiver.Balance.IsNegative() {
			return errNegativeReceiverBalance()
		}

		t := &transaction.Transaction{
			SenderID:    nullUUID(senderID),
			ReceiverID:  nullUUID(receiverID),
			Amount:      input.Amount,
			Description: nullString(input.Description),
			Type:        transaction.TypeTransfer,
			Status:      transaction.StatusCompleted,
		}
		if err := e.transactions.Create(ctx, tx, t); err != nil {
			return storeErr(err)
		}
		if err := e.accounts.DecrementBalance(ctx, tx, senderID, input.Amount); err != nil {
			return storeErr(err)
		}
		if err := e.accounts.IncrementBalance(ctx, tx, receiverID, input.Amount); err != nil {
			return storeErr(err)
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.journalAppend("transfer", created)
	return e.resolve(ctx, created)
}

// Deposit adds amount to the account. Deposits into an already-negative
// account are rejected; the balance has to be corrected through other means
// first.
func (e *Engine) Deposit(ctx context.Context, input DepositInput) (*transaction.Transaction, error) {
	accountID, err := parseID(input.AccountID, "account_id")
	if err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	description := input.Description
	if description == "" {
		description = "Account deposit"
	}

	var created *transaction.Transaction
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		accounts, err := e.lockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if accounts[accountID].Balance.IsNegative() {
			return errNegativeUserBalance()
		}

		t := &transaction.Transaction{
			ReceiverID:  nullUUID(accountID),
			Amount:      input.Amount,
			Description: nullString(description),
			Type:        transaction.TypeDeposit,
			Status:      transaction.StatusCompleted,
		}
		if err := e.transactions.Create(ctx, tx, t); err != nil {
			return storeErr(err)
		}
		if err := e.accounts.IncrementBalance(ctx, tx, accountID, input.Amount); err != nil {
			return storeErr(err)
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.journalAppend("deposit", created)
	return e.resolve(ctx, created)
}

// Withdraw removes amount from the account, failing when the balance does
// not cover it.
func (e *Engine) Withdraw(ctx context.Context, input WithdrawInput) (*transaction.Transaction, error) {
	accountID, err := parseID(input.AccountID, "account_id")
	if err != nil {
		return nil, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	description := input.Description
	if description == "" {
		description = "Account withdrawal"
	}

	var created *transaction.Transaction
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		accounts, err := e.lockAccounts(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if accounts[accountID].Balance.LessThan(input.Amount) {
			return errInsufficientFunds()
		}

		t := &transaction.Transaction{
			SenderID:    nullUUID(accountID),
			Amount:      input.Amount,
			Description: nullString(description),
			Type:        transaction.TypeWithdraw,
			Status:      transaction.StatusCompleted,
		}
		if err := e.transactions.Create(ctx, tx, t); err != nil {
			return storeErr(err)
		}
		if err := e.accounts.DecrementBalance(ctx, tx, accountID, input.Amount); err != nil {
			return storeErr(err)
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.journalAppend("withdraw", created)
	return e.resolve(ctx, created)
}

// Reverse undoes a completed transaction's balance effect and records a
// compensating transaction with the roles swapped. A transaction can be
// reversed at most once.
func (e *Engine) Reverse(ctx context.Context, id string) (*transaction.Transaction, error) {
	transactionID, err := parseID(id, "transaction_id")
	if err != nil {
		return nil, err
	}

	var created *transaction.Transaction
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		original, err := e.transactions.FindByIdForUpdate(ctx, tx, transactionID)
		if err != nil {
			return storeErr(err)
		}
		if original.Status == transaction.StatusReversed {
			return errAlreadyReversed()
		}

		if _, err := e.lockAccounts(ctx, tx, referencedIDs(original)...); err != nil {
			return err
		}

		// undo the original movement: credit the sender back, debit the
		// receiver; deposits have no sender and withdrawals no receiver
		if original.SenderID.Valid {
			err := e.accounts.IncrementBalance(ctx, tx, original.SenderID.UUID.String(), original.Amount)
			if err != nil {
				return storeErr(err)
			}
		}
		if original.ReceiverID.Valid {
			err := e.accounts.DecrementBalance(ctx, tx, original.ReceiverID.UUID.String(), original.Amount)
			if err != nil {
				return storeErr(err)
			}
		}

		reversal := &transaction.Transaction{
			SenderID:    original.ReceiverID,
			ReceiverID:  original.SenderID,
			Amount:      original.Amount,
			Description: nullString("Reversal of transaction " + original.ID),
			Type:        transaction.TypeReverse,
			Status:      transaction.StatusCompleted,
		}
		if err := e.transactions.Create(ctx, tx, reversal); err != nil {
			return storeErr(err)
		}
		if err := e.transactions.UpdateStatus(ctx, tx, original.ID, transaction.StatusReversed); err != nil {
			return storeErr(err)
		}

		created = reversal
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.journalAppend("reverse", created)
	return e.resolve(ctx, created)
}

// Destroy removes a transaction record. Deleting a completed transfer first
// applies the inverse balance adjustment, so the deletion also undoes the
// transfer's financial effect. Other types are removed as plain records;
// undoing their effect is what Reverse is for.
func (e *Engine) Destroy(ctx context.Context, id string) error {
	transactionID, err := parseID(id, "transaction_id")
	if err != nil {
		return err
	}

	var removed *transaction.Transaction
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		original, err := e.transactions.FindByIdForUpdate(ctx, tx, transactionID)
		if err != nil {
			return storeErr(err)
		}

		compensate := original.Status == transaction.StatusCompleted &&
			original.Type == transaction.TypeTransfer
		if compensate {
			if _, err := e.lockAccounts(ctx, tx, referencedIDs(original)...); err != nil {
				return err
			}
			if original.SenderID.Valid {
				err := e.accounts.IncrementBalance(ctx, tx, original.SenderID.UUID.String(), original.Amount)
				if err != nil {
					return storeErr(err)
				}
			}
			if original.ReceiverID.Valid {
				err := e.accounts.DecrementBalance(ctx, tx, original.ReceiverID.UUID.String(), original.Amount)
				if err != nil {
					return storeErr(err)
				}
			}
		}

		if err := e.transactions.Delete(ctx, tx, original.ID); err != nil {
			return storeErr(err)
		}

		removed = original
		return nil
	})
	if err != nil {
		return err
	}

	e.journalAppend("destroy", removed)
	return nil
}

// ListTransactions returns a page of transactions, newest first, with the
// sender and receiver accounts resolved.
func (e *Engine) ListTransactions(ctx context.Context, page, perPage int) ([]*transaction.Transaction, error) {
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	opts := options.NewTransactionOptions().SetPage(page, perPage)
	transactions, err := e.transactions.Find(ctx, opts)
	if err != nil {
		return nil, storeErr(err)
	}

	cache := make(map[string]*account.Account)
	for _, t := range transactions {
		if _, err := e.resolveCached(ctx, t, cache); err != nil {
			return nil, err
		}
	}

	return transactions, nil
}

// GetTransaction returns one transaction with sender and receiver resolved.
func (e *Engine) GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error) {
	transactionID, err := parseID(id, "transaction_id")
	if err != nil {
		return nil, err
	}

	t, err := e.transactions.FindById(ctx, transactionID)
	if err != nil {
		return nil, storeErr(err)
	}

	return e.resolve(ctx, t)
}

// runs fn inside one database transaction; any error rolls every write back
func (e *Engine) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return &Error{Kind: KindStoreFailure, Msg: "beginning atomic unit", Err: err}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("ledger: rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &Error{Kind: KindStoreFailure, Msg: "committing atomic unit", Err: err}
	}
	return nil
}

// locks the given accounts in ascending id order so concurrent operations
// on overlapping accounts cannot deadlock
func (e *Engine) lockAccounts(ctx context.Context, tx *sqlx.Tx, ids ...string) (map[string]*account.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	locked := make(map[string]*account.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := locked[id]; ok {
			continue
		}
		a, err := e.accounts.FindByIdForUpdate(ctx, tx, id)
		if err != nil {
			return nil, storeErr(err)
		}
		locked[id] = a
	}

	return locked, nil
}

func (e *Engine) resolve(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	return e.resolveCached(ctx, t, make(map[string]*account.Account))
}

// populates the transaction's Sender and Receiver; an account deleted after
// the fact leaves the reference nil instead of failing the read
func (e *Engine) resolveCached(ctx context.Context, t *transaction.Transaction, cache map[string]*account.Account) (*transaction.Transaction, error) {
	lookup := func(id uuid.NullUUID) (*account.Account, error) {
		if !id.Valid {
			return nil, nil
		}
		key := id.UUID.String()
		if a, ok := cache[key]; ok {
			return a, nil
		}
		a, err := e.accounts.FindById(ctx, key)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return nil, nil
			}
			return nil, storeErr(err)
		}
		cache[key] = a
		return a, nil
	}

	var err error
	if t.Sender, err = lookup(t.SenderID); err != nil {
		return nil, err
	}
	if t.Receiver, err = lookup(t.ReceiverID); err != nil {
		return nil, err
	}

	return t, nil
}

func (e *Engine) journalAppend(op string, t *transaction.Transaction) {
	if e.journal == nil {
		return
	}

	entry := &journal.Entry{
		Op:            op,
		TransactionID: t.ID,
		Amount:        t.Amount.String(),
		OccurredAt:    time.Now().UTC(),
	}
	if t.SenderID.Valid {
		entry.SenderID = t.SenderID.UUID.String()
	}
	if t.ReceiverID.Valid {
		entry.ReceiverID = t.ReceiverID.UUID.String()
	}

	if _, err := e.journal.Append(entry); err != nil {
		// the database commit already happened; the journal is an audit
		// trail, so a failed append must not fail the operation
		log.Printf("ledger: journal append failed for %s %s: %v", op, t.ID, err)
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThan(minAmount) {
		return errInvalidInput("amount must be at least 0.01")
	}
	if amount.Exponent() < -2 {
		return errInvalidInput("amount cannot have more than two decimal places")
	}
	return nil
}

func parseID(v, field string) (string, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return "", errInvalidInput(field + " must be a valid id")
	}
	return id.String(), nil
}

func referencedIDs(t *transaction.Transaction) []string {
	var ids []string
	if t.SenderID.Valid {
		ids = append(ids, t.SenderID.UUID.String())
	}
	if t.ReceiverID.Valid {
		ids = append(ids, t.ReceiverID.UUID.String())
	}
	return ids
}

func storeErr(err error) error {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return &Error{Kind: KindNotFound, Msg: account.ErrNotFound.Error(), Err: err}
	case errors.Is(err, transaction.ErrNotFound):
		return &Error{Kind: KindNotFound, Msg: transaction.ErrNotFound.Error(), Err: err}
	}
	return &Error{Kind: KindStoreFailure, Msg: "store failure", Err: err}
}

func nullUUID(id string) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.MustParse(id), Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
