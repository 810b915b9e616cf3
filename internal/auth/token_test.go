package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	authority := NewAuthority("test-secret")
	accountID := uuid.New()

	token, expiresAt, err := authority.Issue(accountID, "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if until := time.Until(expiresAt); until < TokenValidity-time.Minute || until > TokenValidity {
		t.Fatalf("expected expiry roughly %v out, got %v", TokenValidity, until)
	}

	gotID, claims, err := authority.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if gotID != accountID {
		t.Fatalf("expected account id %s, got %s", accountID, gotID)
	}
	if claims.Handle != "alice" {
		t.Fatalf("expected handle alice, got %q", claims.Handle)
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := issuedAt.Add(TokenValidity)

	issuer := NewAuthority("test-secret").WithClock(func() time.Time { return issuedAt })
	token, _, err := issuer.Issue(uuid.New(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	cases := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "one second before expiry", now: expiry.Add(-time.Second), wantErr: nil},
		{name: "at exactly expiry", now: expiry, wantErr: ErrTokenExpired},
		{name: "after expiry", now: expiry.Add(time.Hour), wantErr: ErrTokenExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := NewAuthority("test-secret").WithClock(func() time.Time { return tc.now })
			_, _, err := verifier.Verify(token)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected valid token, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestVerify_Malformed(t *testing.T) {
	authority := NewAuthority("test-secret")

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, _, err := authority.Verify(token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", token, err)
		}
	}
}

func TestVerify_WrongKey(t *testing.T) {
	token, _, err := NewAuthority("one-secret").Issue(uuid.New(), "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, _, err := NewAuthority("another-secret").Verify(token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for wrong key, got %v", err)
	}
}
