/**
 * @description
 * This file contains the HTTP handlers for the public API endpoints. Handlers
 * parse and validate incoming requests, call the application service, and
 * translate typed outcomes into the service's JSON error envelope
 * `{error, code, message}`. The error strings are machine-distinct so clients
 * can tell "slow down" from "bad input" from "log in again".
 *
 * @dependencies
 * - encoding/json, errors, fmt, log, net/http, regexp, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameters.
 * - github.com/google/uuid: For transaction identifiers.
 * - internal/app, internal/auth, internal/store: Service logic, credential
 *   issuance, and typed store errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/druidalabs/be/internal/app"
	"github.com/druidalabs/be/internal/auth"
	"github.com/druidalabs/be/internal/store"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// timeNow is swappable in tests.
var timeNow = time.Now

func timeUntil(t time.Time) time.Duration { return t.Sub(timeNow()) }

var (
	handleRe  = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)
	contactRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Handlers holds the application service and credential authority used by
// the HTTP layer.
type Handlers struct {
	service   *app.Service
	authority *auth.Authority
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service, authority *auth.Authority) *Handlers {
	return &Handlers{service: service, authority: authority}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type signupResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

type rateLimitBody struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

type statusResponse struct {
	Status     string        `json:"status"`
	UserID     string        `json:"user_id"`
	TokenValid bool          `json:"token_valid"`
	ExpiresAt  time.Time     `json:"expires_at"`
	RateLimit  rateLimitBody `json:"rate_limit"`
	ServerTime time.Time     `json:"server_time"`
}

type balanceResponse struct {
	Balance   int64     `json:"balance"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type sendRequest struct {
	Amount    int64  `json:"amount"`
	ToAddress string `json:"to_address"`
	Message   string `json:"message,omitempty"`
}

type sendResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

type transactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	ToAddress     string    `json:"to_address"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SignupHandler handles account creation and issues the first credential.
func (h *Handlers) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation Error", "Invalid request body")
		return
	}

	if !handleRe.MatchString(req.Username) {
		writeError(w, http.StatusBadRequest, "Validation Error", "username must be 3-30 alphanumeric characters")
		return
	}
	if !contactRe.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "Validation Error", "email must be a valid email address")
		return
	}

	account, err := h.service.Signup(r.Context(), req.Username, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateIdentity) {
			writeError(w, http.StatusConflict, "Conflict", "Username or email already exists")
			return
		}
		log.Printf("level=error component=api endpoint=signup msg=\"account creation failed\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create account")
		return
	}

	token, expiresAt, err := h.authority.Issue(account.ID, account.Handle)
	if err != nil {
		log.Printf("level=error component=api endpoint=signup msg=\"credential issuance failed\" account_id=%s err=%v", account.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create account")
		return
	}

	writeJSON(w, http.StatusOK, signupResponse{
		Token:     token,
		UserID:    account.ID.String(),
		ExpiresAt: expiresAt,
		Message:   "Account created successfully. Welcome to Bitcoin Efectivo!",
	})
}

// StatusHandler reports token validity and the caller's rate budget.
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Could not get account from context")
		return
	}

	snapshot, err := h.service.Status(r.Context(), account, clientSubject(r))
	if err != nil {
		log.Printf("level=error component=api endpoint=status msg=\"status query failed\" account_id=%s err=%v", account.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read status")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:     "active",
		UserID:     snapshot.AccountID.String(),
		TokenValid: snapshot.TokenValid,
		ExpiresAt:  snapshot.ExpiresAt,
		RateLimit: rateLimitBody{
			Limit:     snapshot.RateLimit.Limit,
			Remaining: snapshot.RateLimit.Remaining,
			Reset:     snapshot.RateLimit.Reset,
		},
		ServerTime: snapshot.ServerTime,
	})
}

// BalanceHandler reports the account's current balance.
func (h *Handlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Could not get account from context")
		return
	}

	snapshot, err := h.service.Balance(r.Context(), account)
	if err != nil {
		log.Printf("level=error component=api endpoint=balance msg=\"balance query failed\" account_id=%s err=%v", account.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read balance")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Balance:   snapshot.Balance,
		UserID:    snapshot.AccountID.String(),
		Timestamp: snapshot.Timestamp,
	})
}

// SendHandler submits a transfer.
func (h *Handlers) SendHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Could not get account from context")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation Error", "Invalid request body")
		return
	}

	if req.Amount < 1 {
		writeError(w, http.StatusBadRequest, "Validation Error", "amount must be a positive integer")
		return
	}
	if len(req.ToAddress) < 26 || len(req.ToAddress) > 90 {
		writeError(w, http.StatusBadRequest, "Validation Error", "to_address must be between 26 and 90 characters")
		return
	}
	if len(req.Message) > 200 {
		writeError(w, http.StatusBadRequest, "Validation Error", "message must be at most 200 characters")
		return
	}

	txRecord, err := h.service.SubmitTransfer(r.Context(), account, req.Amount, req.ToAddress, req.Message)
	if err != nil {
		var insufficient *app.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			writeError(w, http.StatusBadRequest, "Insufficient Balance",
				fmt.Sprintf("Insufficient balance. Available: %d satoshis", insufficient.Available))
			return
		}
		log.Printf("level=error component=api endpoint=send msg=\"transfer failed\" account_id=%s err=%v", account.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process transaction")
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		TransactionID: txRecord.ID.String(),
		Status:        txRecord.Status,
		Message:       "Transaction submitted successfully",
	})
}

// TransactionStatusHandler reports the state of one of the caller's transactions.
func (h *Handlers) TransactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Could not get account from context")
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation Error", "transaction id must be a valid UUID")
		return
	}

	txRecord, err := h.service.TransactionStatus(r.Context(), account, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			writeError(w, http.StatusNotFound, "Not Found", "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=transaction_status msg=\"lookup failed\" account_id=%s err=%v", account.ID, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read transaction")
		return
	}

	writeJSON(w, http.StatusOK, transactionResponse{
		TransactionID: txRecord.ID.String(),
		Status:        txRecord.Status,
		Amount:        txRecord.Amount,
		ToAddress:     txRecord.ToAddress,
		Message:       txRecord.Message,
		CreatedAt:     txRecord.CreatedAt,
	})
}

// HealthHandler is the unauthenticated liveness probe.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": timeNow().UTC(),
		"version":   Version,
	})
}

// NotFoundHandler keeps unknown paths inside the JSON envelope.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found", "The requested resource was not found.")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, errName, message string) {
	writeJSON(w, status, errorResponse{Error: errName, Code: status, Message: message})
}
