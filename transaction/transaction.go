package transaction

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgerapi/account"
)

// Type of money movement a transaction records
type Type string

const (
	TypeTransfer Type = "transfer"
	TypeDeposit  Type = "deposit"
	TypeWithdraw Type = "withdraw"
	TypeReverse  Type = "reverse"
)

// Status of a transaction. Completed records may still be reversed;
// reversed is terminal.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusReversed  Status = "reversed"
)

// Transaction represents one money movement between accounts.
// Sender is absent for deposits and receiver is absent for withdrawals,
// so both sides are nullable references.
type Transaction struct {
	ID          string          `db:"id"`
	SenderID    uuid.NullUUID   `db:"sender_id"`
	ReceiverID  uuid.NullUUID   `db:"receiver_id"`
	Amount      decimal.Decimal `db:"amount"`
	Description sql.NullString  `db:"description"`
	Type        Type            `db:"type"`
	Status      Status          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`

	// resolved counterparties for presentation, never persisted
	Sender   *account.Account `db:"-"`
	Receiver *account.Account `db:"-"`
}
