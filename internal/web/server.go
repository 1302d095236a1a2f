// Package web exposes the ledger engine over HTTP. Routing, status mapping
// and the response envelope live here; every money-movement decision is the
// engine's.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"ledgerapi/account"
	"ledgerapi/ledger"
	"ledgerapi/transaction"
)

// Ledger is the engine surface the HTTP layer depends on
type Ledger interface {
	Transfer(ctx context.Context, input ledger.TransferInput) (*transaction.Transaction, error)
	Deposit(ctx context.Context, input ledger.DepositInput) (*transaction.Transaction, error)
	Withdraw(ctx context.Context, input ledger.WithdrawInput) (*transaction.Transaction, error)
	Reverse(ctx context.Context, id string) (*transaction.Transaction, error)
	Destroy(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, page, perPage int) ([]*transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error)
}

// Accounts is the provisioning surface for account CRUD
type Accounts interface {
	Create(ctx context.Context, a *account.Account) error
	FindById(ctx context.Context, id string) (*account.Account, error)
	Find(ctx context.Context, limit, offset int) ([]*account.Account, error)
	Delete(ctx context.Context, id string) error
}

// Config used to create a new Server
type Config struct {
	Ledger   Ledger
	Accounts Accounts
}

type Server struct {
	ledger   Ledger
	accounts Accounts
}

// NewHTTPServer returns an http.Server with all routes registered
func NewHTTPServer(addr string, config *Config) *http.Server {
	s := &Server{
		ledger:   config.Ledger,
		accounts: config.Accounts,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.Transfer)
			r.Post("/deposit", s.Deposit)
			r.Post("/withdraw", s.Withdraw)
			r.Post("/reverse/{id}", s.Reverse)
			r.Get("/", s.ListTransactions)
			r.Get("/{id}", s.GetTransaction)
			r.Delete("/{id}", s.Destroy)
		})
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.CreateAccount)
			r.Get("/", s.ListAccounts)
			r.Get("/{id}", s.GetAccount)
			r.Delete("/{id}", s.DeleteAccount)
		})
	})

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

type transferRequest struct {
	SenderID    string `json:"sender_id"`
	ReceiverID  string `json:"receiver_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type depositRequest struct {
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type createAccountRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
}

func (s *Server) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error", map[string]string{"error": "invalid request body"})
		return
	}
	defer r.Body.Close()

	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	t, err := s.ledger.Transfer(r.Context(), ledger.TransferInput{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		s.ledgerError(w, "error processing transfer", err)
		return
	}

	respond(w, http.StatusCreated, "transfer completed successfully", newTransactionResponse(t))
}

func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error", map[string]string{"error": "invalid request body"})
		return
	}
	defer r.Body.Close()

	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	t, err := s.ledger.Deposit(r.Context(), ledger.DepositInput{
		AccountID:   req.AccountID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		s.ledgerError(w, "error processing deposit", err)
		return
	}

	respond(w, http.StatusCreated, "deposit completed successfully", newTransactionResponse(t))
}

func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error", map[string]string{"error": "invalid request body"})
		return
	}
	defer r.Body.Close()

	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	t, err := s.ledger.Withdraw(r.Context(), ledger.WithdrawInput{
		AccountID:   req.AccountID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		s.ledgerError(w, "error processing withdrawal", err)
		return
	}

	respond(w, http.StatusCreated, "withdrawal completed successfully", newTransactionResponse(t))
}

func (s *Server) Reverse(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.Reverse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.ledgerError(w, "error reversing transaction", err)
		return
	}

	respond(w, http.StatusCreated, "transaction reversed successfully", newTransactionResponse(t))
}

func (s *Server) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Destroy(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.ledgerError(w, "error removing transaction", err)
		return
	}

	respond(w, http.StatusOK, "transaction removed successfully", nil)
}

func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", ledger.DefaultPerPage)

	transactions, err := s.ledger.ListTransactions(r.Context(), page, perPage)
	if err != nil {
		s.ledgerError(w, "error fetching transactions", err)
		return
	}

	result := make([]*transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		result = append(result, newTransactionResponse(t))
	}

	respond(w, http.StatusOK, "transactions found", result)
}

func (s *Server) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.ledgerError(w, "error fetching transaction", err)
		return
	}

	respond(w, http.StatusOK, "transaction found", newTransactionResponse(t))
}

func (s *Server) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error", map[string]string{"error": "invalid request body"})
		return
	}
	defer r.Body.Close()

	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "validation error",
			map[string]string{"error": "first_name, last_name and email are required"})
		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		var err error
		balance, err = decimal.NewFromString(req.Balance)
		if err != nil || balance.IsNegative() {
			respondError(w, http.StatusBadRequest, "validation error",
				map[string]string{"error": "balance must be a non-negative decimal"})
			return
		}
	}

	a := &account.Account{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Balance:   balance,
	}
	if err := s.accounts.Create(r.Context(), a); err != nil {
		log.Printf("web: creating account: %v", err)
		respondError(w, http.StatusInternalServerError, "error creating account", nil)
		return
	}

	respond(w, http.StatusCreated, "account created successfully", newAccountResponse(a))
}

func (s *Server) ListAccounts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", ledger.DefaultPerPage)

	accounts, err := s.accounts.Find(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		log.Printf("web: listing accounts: %v", err)
		respondError(w, http.StatusInternalServerError, "error fetching accounts", nil)
		return
	}

	result := make([]*accountResponse, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, newAccountResponse(a))
	}

	respond(w, http.StatusOK, "accounts found", result)
}

func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.accounts.FindById(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			respondError(w, http.StatusNotFound, account.ErrNotFound.Error(), nil)
			return
		}
		log.Printf("web: fetching account: %v", err)
		respondError(w, http.StatusInternalServerError, "error fetching account", nil)
		return
	}

	respond(w, http.StatusOK, "account found", newAccountResponse(a))
}

func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			respondError(w, http.StatusNotFound, account.ErrNotFound.Error(), nil)
			return
		}
		log.Printf("web: deleting account: %v", err)
		respondError(w, http.StatusInternalServerError, "error deleting account", nil)
		return
	}

	respond(w, http.StatusOK, "account deleted successfully", nil)
}

// maps an engine failure kind to a status code and writes the envelope
func (s *Server) ledgerError(w http.ResponseWriter, message string, err error) {
	details := map[string]string{"error": err.Error()}

	switch ledger.KindOf(err) {
	case ledger.KindInvalidInput:
		respondError(w, http.StatusBadRequest, message, details)
	case ledger.KindNotFound:
		respondError(w, http.StatusNotFound, message, details)
	case ledger.KindInsufficientFunds,
		ledger.KindNegativeReceiverBalance,
		ledger.KindNegativeUserBalance,
		ledger.KindAlreadyReversed:
		respondError(w, http.StatusUnprocessableEntity, message, details)
	default:
		log.Printf("web: %s: %v", message, err)
		respondError(w, http.StatusInternalServerError, message, nil)
	}
}

func parseAmount(w http.ResponseWriter, v string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(v)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation error",
			map[string]string{"error": "amount must be a decimal string"})
		return decimal.Decimal{}, false
	}
	return amount, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

type accountResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newAccountResponse(a *account.Account) *accountResponse {
	return &accountResponse{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Balance:   a.Balance.StringFixed(2),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type transactionResponse struct {
	ID          string           `json:"id"`
	Amount      string           `json:"amount"`
	Description *string          `json:"description"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	Sender      *accountResponse `json:"sender"`
	Receiver    *accountResponse `json:"receiver"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func newTransactionResponse(t *transaction.Transaction) *transactionResponse {
	resp := &transactionResponse{
		ID:        t.ID,
		Amount:    t.Amount.StringFixed(2),
		Type:      string(t.Type),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Description.Valid {
		description := t.Description.String
		resp.Description = &description
	}
	if t.Sender != nil {
		resp.Sender = newAccountResponse(t.Sender)
	}
	if t.Receiver != nil {
		resp.Receiver = newAccountResponse(t.Receiver)
	}
	return resp
}
