package account

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledgerapi/postgres"
)

func TestAccountRepo(t *testing.T) {
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
	repo                AccountRepo
	db                  *sqlx.DB
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
	s.db.MustExec("DELETE FROM transaction")
	s.db.MustExec("DELETE FROM account")
}

func (s *Suite) TearDownSuite() {
	s.NoError(s.db.Close())
}

func (s *Suite) createAccount(balance string) *Account {
	a := &Account{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()),
		Balance:   decimal.RequireFromString(balance),
	}
	s.NoError(s.repo.Create(context.Background(), a))
	return a
}

func (s *Suite) TestCreate() {
	a := s.createAccount("100.00")

	s.NotEmpty(a.ID)
	s.False(a.CreatedAt.IsZero())

	got, err := s.repo.FindById(context.Background(), a.ID)
	s.NoError(err)
	s.Equal(a.ID, got.ID)
	s.Equal(a.Email, got.Email)
	s.True(got.Balance.Equal(decimal.RequireFromString("100.00")))
}

func (s *Suite) TestFindByIdNotFound() {
	_, err := s.repo.FindById(context.Background(), uuid.NewString())
	s.ErrorIs(err, ErrNotFound)
}

func (s *Suite) TestFind() {
	for i := 0; i < 5; i++ {
		s.createAccount("10.00")
	}

	got, err := s.repo.Find(context.Background(), 3, 0)
	s.NoError(err)
	s.Len(got, 3)

	rest, err := s.repo.Find(context.Background(), 3, 3)
	s.NoError(err)
	s.Len(rest, 2)
}

func (s *Suite) TestDelete() {
	a := s.createAccount("10.00")

	s.NoError(s.repo.Delete(context.Background(), a.ID))

	_, err := s.repo.FindById(context.Background(), a.ID)
	s.ErrorIs(err, ErrNotFound)

	s.ErrorIs(s.repo.Delete(context.Background(), a.ID), ErrNotFound)
}

func (s *Suite) TestIncrementAndDecrementBalance() {
	ctx := context.Background()
	a := s.createAccount("100.00")

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)

	s.NoError(s.repo.IncrementBalance(ctx, tx, a.ID, decimal.RequireFromString("25.50")))
	s.NoError(s.repo.DecrementBalance(ctx, tx, a.ID, decimal.RequireFromString("0.50")))
	s.NoError(tx.Commit())

	got, err := s.repo.FindById(ctx, a.ID)
	s.NoError(err)
	s.True(got.Balance.Equal(decimal.RequireFromString("125.00")), "got %s", got.Balance)
}

func (s *Suite) TestIncrementBalanceMissingAccount() {
	ctx := context.Background()

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)
	defer tx.Rollback()

	err = s.repo.IncrementBalance(ctx, tx, uuid.NewString(), decimal.RequireFromString("1.00"))
	s.ErrorIs(err, ErrNotFound)
}

func (s *Suite) TestFindByIdForUpdate() {
	ctx := context.Background()
	a := s.createAccount("100.00")

	tx, err := s.db.BeginTxx(ctx, nil)
	s.NoError(err)

	locked, err := s.repo.FindByIdForUpdate(ctx, tx, a.ID)
	s.NoError(err)
	s.Equal(a.ID, locked.ID)

	s.NoError(s.repo.DecrementBalance(ctx, tx, a.ID, decimal.RequireFromString("100.00")))
	s.NoError(tx.Commit())

	got, err := s.repo.FindById(ctx, a.ID)
	s.NoError(err)
	s.True(got.Balance.IsZero())
}
