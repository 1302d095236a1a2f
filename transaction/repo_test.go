package transaction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledgerapi/postgres"
	"ledgerapi/transaction/options"
)

func TestTransactionRepo(t *testing.T) {
	s := NewSuite(t)
	suite.Run(t, s)
}

func NewSuite(t *testing.T) *Suite {
	return &Suite{
		Assertions: require.New(t),
	}
}

type Suite struct {
	suite.Suite
	*require.Assertions // default to require behavior
	repo                TransactionRepo
	db                  *sqlx.DB

	senderID     uuid.UUID
	receiverID   uuid.UUID
	transactions []*Transaction
}

func (s *Suite) SetupSuite() {
	// load environment
	_ = godotenv.Load("../.env")

	config, err := postgres.Parse()
	s.NoError(err)

	db, err := postgres.Connect(config)
	s.NoError(err)
	s.db = db

	repo, err := NewPostgresRepo(db)
	s.NoError(err)

	s.repo = repo
}

func (s *Suite) SetupTest() {
	s.teardown()
	s.createAccounts()
	s.createTransactions(10)
}

func (s *Suite) teardown() {
	s.db.MustExec("DELETE FROM transaction")
	s.db.MustExec("DELETE FROM account")
}

func (s *Suite) createAccounts() {
	s.senderID = uuid.New()
	s.receiverID = uuid.New()

	query := `INSERT INTO account (id, first_name, last_name, email, balance) VALUES ($1, $2, $3, $4, $5)`
	s.db.MustExec(query, s.senderID, "Ada", "Lovelace", fmt.Sprintf("%s@example.com", s.senderID), "1000.00")
	s.db.MustExec(query, s.receiverID, "Alan", "Turing", fmt.Sprintf("%s@example.com", s.receiverID), "1000.00")
}

// inserts length rows with staggered timestamps so newest-first ordering is
// deterministic
func (s *Suite) createTransactions(length int) {
	base := time.Now().UTC().Add(-time.Hour)
	query := `INSERT INTO transaction (sender_id, receiver_id, amount, type, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)`
	for i := 1; i <= length; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		s.db.MustExec(query, s.senderID, s.receiverID,
			decimal.NewFromInt32(int32(i*100)), TypeTransfer, StatusCompleted, ts)
	}

	s.refreshInMem()
}

func (s *Suite) TearDownSuite() {
	s.NoError(s.db.Close())
}

func (s *Suite) TestCreate() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)

	t := &Transaction{
		SenderID:   uuid.NullUUID{UUID: s.senderID, Valid: true},
		ReceiverID: uuid.NullUUID{UUID: s.receiverID, Valid: true},
		Amount:     decimal.RequireFromString("42.50"),
		Type:       TypeTransfer,
		Status:     StatusCompleted,
	}
	s.NoError(s.repo.Create(ctx, tx, t))
	s.NotEmpty(t.ID)
	s.False(t.CreatedAt.IsZero())
	s.NoError(tx.Commit())

	got, err := s.repo.FindById(ctx, t.ID)
	s.NoError(err)
	s.Equal(t.ID, got.ID)
	s.True(got.Amount.Equal(t.Amount))
}

func (s *Suite) TestCreateRejectsUnknownType() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	defer tx.Rollback()

	t := &Transaction{
		SenderID:   uuid.NullUUID{UUID: s.senderID, Valid: true},
		ReceiverID: uuid.NullUUID{UUID: s.receiverID, Valid: true},
		Amount:     decimal.RequireFromString("42.50"),
		Type:       Type("refund"),
		Status:     StatusCompleted,
	}
	s.Error(s.repo.Create(ctx, tx, t), "type column accepts only the known movement types")
}

func (s *Suite) TestUpdateStatusRejectsUnknownStatus() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	defer tx.Rollback()

	s.Error(s.repo.UpdateStatus(ctx, tx, s.transactions[0].ID, Status("voided")))
}

func (s *Suite) TestFindById() {
	want := s.transactions[1]
	got, err := s.repo.FindById(context.Background(), want.ID)
	s.NoError(err)

	s.Equal(want, got)
}

func (s *Suite) TestFindByIdNotFound() {
	_, err := s.repo.FindById(context.Background(), uuid.NewString())
	s.ErrorIs(err, ErrNotFound)
}

func (s *Suite) TestFindAll() {
	got, err := s.repo.Find(context.Background())
	s.NoError(err)

	s.Equal(s.transactions, got)
}

func (s *Suite) TestFindByIds() {
	var ids []string
	num := 2

	for i := 0; i < num; i++ {
		ids = append(ids, s.transactions[i].ID)
	}

	opts := options.NewTransactionOptions()
	opts.SetIDs(ids...)

	transactions, err := s.repo.Find(context.Background(), opts)
	s.NoError(err)

	s.Equal(s.transactions[:num], transactions)
}

func (s *Suite) TestFindByType() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	deposit := &Transaction{
		ReceiverID: uuid.NullUUID{UUID: s.receiverID, Valid: true},
		Amount:     decimal.RequireFromString("15.00"),
		Type:       TypeDeposit,
		Status:     StatusCompleted,
	}
	s.NoError(s.repo.Create(ctx, tx, deposit))
	s.NoError(tx.Commit())

	opts := options.NewTransactionOptions().SetTypes(string(TypeDeposit))
	got, err := s.repo.Find(ctx, opts)
	s.NoError(err)

	s.Len(got, 1)
	s.Equal(deposit.ID, got[0].ID)
}

func (s *Suite) TestFindByStatus() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	s.NoError(s.repo.UpdateStatus(ctx, tx, s.transactions[0].ID, StatusReversed))
	s.NoError(tx.Commit())

	opts := options.NewTransactionOptions().SetStatuses(string(StatusReversed))
	got, err := s.repo.Find(ctx, opts)
	s.NoError(err)

	s.Len(got, 1)
	s.Equal(s.transactions[0].ID, got[0].ID)
	s.Equal(StatusReversed, got[0].Status)
}

func (s *Suite) TestFindByAmountRange() {
	cases := []struct {
		From int
		To   int
	}{
		{200, 800},
		{0, 300},
		{400, 1 << 20},
	}
	for _, tc := range cases {
		from := decimal.NewFromInt32(int32(tc.From))
		to := decimal.NewFromInt32(int32(tc.To))

		amountRange := &options.DecimalRange{
			Low:  &from,
			High: &to,
		}

		opts := options.NewTransactionOptions()
		opts.SetAmountRange(amountRange)
		got, err := s.repo.Find(context.Background(), opts)
		s.NoError(err)

		var want []*Transaction
		for _, each := range s.transactions {
			if each.Amount.LessThan(from) || each.Amount.GreaterThan(to) {
				continue
			}
			want = append(want, each)
		}

		s.Equal(want, got, "values should range from %s to %s", from.String(), to.String())
	}
}

func (s *Suite) TestFindByTimeRange() {
	// the oldest five transactions
	cutoff := s.transactions[4].CreatedAt

	timeRange := &options.TimeRange{
		High: &cutoff,
	}

	opts := options.NewTransactionOptions()
	opts.SetTimeRange(timeRange)
	got, err := s.repo.Find(context.Background(), opts)
	s.NoError(err)

	var want []*Transaction
	for _, each := range s.transactions {
		if each.CreatedAt.After(cutoff) {
			continue
		}
		want = append(want, each)
	}

	s.Equal(want, got)
}

func (s *Suite) TestFindPaginated() {
	opts := options.NewTransactionOptions().SetPage(2, 3)
	got, err := s.repo.Find(context.Background(), opts)
	s.NoError(err)

	s.Equal(s.transactions[3:6], got)
}

func (s *Suite) TestUpdateStatusMissing() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	defer tx.Rollback()

	err = s.repo.UpdateStatus(ctx, tx, uuid.NewString(), StatusReversed)
	s.ErrorIs(err, ErrNotFound)
}

func (s *Suite) TestDelete() {
	ctx := context.Background()
	victim := s.transactions[0]

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	s.NoError(s.repo.Delete(ctx, tx, victim.ID))
	s.NoError(tx.Commit())

	_, err = s.repo.FindById(ctx, victim.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *Suite) refreshInMem() {
	query := "SELECT * FROM transaction ORDER BY created_at DESC"
	s.transactions = s.transactions[:0] // clear our in-memory transactions
	err := s.db.Select(&s.transactions, query)
	s.NoError(err)
}
