/**
 * @description
 * Local credential storage for the be CLI. The issued token and its metadata
 * live in ~/.be/config.json so authenticated commands work without
 * re-prompting.
 */

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	credentialsDir  = ".be"
	credentialsFile = "config.json"
)

// Credentials is the on-disk state of a signed-up CLI.
type Credentials struct {
	APIToken  string    `json:"api_token"`
	APIURL    string    `json:"api_url"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Valid reports whether a token is present and not past its expiry.
func (c *Credentials) Valid() bool {
	return c.APIToken != "" && time.Now().Before(c.ExpiresAt)
}

func credentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, credentialsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, credentialsFile), nil
}

// LoadCredentials reads the stored credentials; a missing file yields an
// empty (invalid) set rather than an error.
func LoadCredentials() (*Credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveCredentials writes the credentials back, stamping last use.
func SaveCredentials(creds *Credentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}

	creds.LastUsed = time.Now()
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
