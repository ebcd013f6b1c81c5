// Package envfile loads app credentials from a dotenv file and persists the
// acquired access token back into it, so consecutive runs inside the token
// validity window skip the token endpoint entirely.
package envfile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	keyTenantID     = "TENANT_ID"
	keyClientID     = "CLIENT_ID"
	keyClientSecret = "CLIENT_SECRET"
	keyAccessToken  = "ACCESS_TOKEN"
	keyTimestamp    = "TOKEN_TIMESTAMP"
)

// Credentials holds the app registration read from the env file, plus the
// cached token from a previous run when one is present and parseable.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	AccessToken    string
	TokenTimestamp time.Time
}

// Load reads the env file at path. TENANT_ID, CLIENT_ID and CLIENT_SECRET are
// required; a cached ACCESS_TOKEN/TOKEN_TIMESTAMP pair is optional and is
// dropped silently when the timestamp does not parse.
func Load(path string) (*Credentials, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("could not read env file %s: %w", path, err)
	}

	creds := &Credentials{
		TenantID:     strings.TrimSpace(values[keyTenantID]),
		ClientID:     strings.TrimSpace(values[keyClientID]),
		ClientSecret: strings.TrimSpace(values[keyClientSecret]),
	}

	var missing []string
	if creds.TenantID == "" {
		missing = append(missing, keyTenantID)
	}
	if creds.ClientID == "" {
		missing = append(missing, keyClientID)
	}
	if creds.ClientSecret == "" {
		missing = append(missing, keyClientSecret)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("env file %s is missing required keys: %s", path, strings.Join(missing, ", "))
	}

	if token := values[keyAccessToken]; token != "" {
		ts, err := time.Parse(time.RFC3339, values[keyTimestamp])
		if err == nil {
			creds.AccessToken = token
			creds.TokenTimestamp = ts
		}
	}

	return creds, nil
}

// SaveToken rewrites the ACCESS_TOKEN and TOKEN_TIMESTAMP lines in the env
// file, appending them when absent. All other lines, including comments and
// ordering, are preserved as-is.
func SaveToken(path, token string, acquiredAt time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read env file %s: %w", path, err)
	}

	tokenLine := keyAccessToken + "=" + token
	tsLine := keyTimestamp + "=" + acquiredAt.Format(time.RFC3339)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	sawToken, sawTimestamp := false, false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, keyAccessToken+"="):
			lines[i] = tokenLine
			sawToken = true
		case strings.HasPrefix(line, keyTimestamp+"="):
			lines[i] = tsLine
			sawTimestamp = true
		}
	}
	if !sawToken {
		lines = append(lines, tokenLine)
	}
	if !sawTimestamp {
		lines = append(lines, tsLine)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		return fmt.Errorf("could not write env file %s: %w", path, err)
	}
	return nil
}

// TokenStore adapts SaveToken to the token cache's persistence hook.
type TokenStore struct {
	Path string
}

func (s TokenStore) SaveToken(token string, acquiredAt time.Time) error {
	return SaveToken(s.Path, token, acquiredAt)
}
