/**
 * @description
 * Credential authority for the Bitcoin Efectivo API. Tokens are signed,
 * time-bounded JWTs binding to exactly one account; no session state is kept
 * server-side, so validity is recomputed from the token and the account
 * record on every use. The token's own expiry and the account's validity
 * deadline are enforced independently and the more restrictive one wins.
 *
 * @dependencies
 * - errors, time: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT signing and verification.
 * - github.com/google/uuid: For the bound account identifier.
 */

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenValidity is the fixed lifetime of an issued credential.
const TokenValidity = 30 * 24 * time.Hour

var (
	ErrMalformedToken = errors.New("token is malformed or has an invalid signature")
	ErrTokenExpired   = errors.New("token has expired")
)

// Claims are the statements embedded in every issued credential.
type Claims struct {
	AccountID string `json:"user_id"`
	Handle    string `json:"username"`
	jwt.RegisteredClaims
}

// Authority issues and verifies session credentials against a single
// HMAC-SHA256 signing key.
type Authority struct {
	secret []byte
	now    func() time.Time
}

// NewAuthority creates a credential authority signing with the given secret.
func NewAuthority(secret string) *Authority {
	return &Authority{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the authority's time source. Used by tests to probe the
// expiry boundary.
func (a *Authority) WithClock(now func() time.Time) *Authority {
	a.now = now
	return a
}

// Issue produces a signed token bound to the given account, valid for a fixed
// period from issuance. Issuing has no side effects on account state.
func (a *Authority) Issue(accountID uuid.UUID, handle string) (string, time.Time, error) {
	now := a.now().UTC()
	expiresAt := now.Add(TokenValidity)

	claims := Claims{
		AccountID: accountID.String(),
		Handle:    handle,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   accountID.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token and returns the bound account id.
// A token evaluated at exactly its expiry instant is already expired.
func (a *Authority) Verify(token string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, nil, ErrTokenExpired
		}
		return uuid.Nil, nil, ErrMalformedToken
	}
	if !parsed.Valid {
		return uuid.Nil, nil, ErrMalformedToken
	}

	accountID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return uuid.Nil, nil, ErrMalformedToken
	}
	return accountID, claims, nil
}
