/**
 * @description
 * Typed HTTP client for the Bitcoin Efectivo API, used by the be CLI. It
 * wraps the request/response cycle, attaches the bearer credential, and
 * decodes the service's JSON error envelope into Go errors.
 *
 * @dependencies
 * - bytes, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */

package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds every API call.
	DefaultTimeout = 30 * time.Second

	// UserAgent identifies the CLI; the server rejects browser agents.
	UserAgent = "be-cli/1.0"
)

// Client is a thin typed wrapper over the HTTP API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

// SignupRequest is the payload for account creation.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SignupResponse carries the issued credential.
type SignupResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

// RateLimit describes the caller's remaining request budget.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// StatusResponse is the authenticated status snapshot.
type StatusResponse struct {
	Status     string    `json:"status"`
	UserID     string    `json:"user_id"`
	TokenValid bool      `json:"token_valid"`
	ExpiresAt  time.Time `json:"expires_at"`
	RateLimit  RateLimit `json:"rate_limit"`
	ServerTime time.Time `json:"server_time"`
}

// BalanceResponse is the balance snapshot.
type BalanceResponse struct {
	Balance   int64     `json:"balance"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SendRequest is the payload for a transfer submission.
type SendRequest struct {
	Amount    int64  `json:"amount"`
	ToAddress string `json:"to_address"`
	Message   string `json:"message,omitempty"`
}

// SendResponse acknowledges a submitted transfer.
type SendResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// ErrorResponse is the service's JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a client against the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetToken attaches the bearer credential used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.Token = token
}

func (c *Client) doRequest(method, endpoint string, body interface{}, result interface{}) error {
	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}

	url := fmt.Sprintf("%s/api/v1%s", c.BaseURL, endpoint)
	req, err := http.NewRequest(method, url, requestBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(responseBody, &errorResp); err != nil {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(responseBody))
		}
		return fmt.Errorf("API error: %s", errorResp.Message)
	}

	if result != nil {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// Signup creates a new account and returns the issued credential.
func (c *Client) Signup(username, email string) (*SignupResponse, error) {
	req := SignupRequest{Username: username, Email: email}

	var resp SignupResponse
	if err := c.doRequest("POST", "/signup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the authenticated status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doRequest("GET", "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Balance fetches the account balance.
func (c *Client) Balance() (*BalanceResponse, error) {
	var resp BalanceResponse
	if err := c.doRequest("GET", "/balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send submits a transfer.
func (c *Client) Send(amount int64, toAddress string, message string) (*SendResponse, error) {
	req := SendRequest{Amount: amount, ToAddress: toAddress, Message: message}

	var resp SendResponse
	if err := c.doRequest("POST", "/send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
