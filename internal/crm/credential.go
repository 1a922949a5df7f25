package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConnected is returned when no usable access token can be resolved.
var ErrNotConnected = errors.New("crm not connected")

// Credential is an access token and the time it stops being accepted. A zero
// ExpiresAt means the token does not expire.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can be used at now.
func (c Credential) Valid(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || c.ExpiresAt.After(now)
}

// CredentialSource resolves a fresh credential. Implementations are called
// once per sync; callers must not keep the result around.
type CredentialSource interface {
	Credential(ctx context.Context) (Credential, error)
}

// StaticToken is a private-app token that never expires.
type StaticToken string

func (s StaticToken) Credential(context.Context) (Credential, error) {
	if s == "" {
		return Credential{}, ErrNotConnected
	}
	return Credential{Token: string(s)}, nil
}

// Connector fetches OAuth credentials from a connection broker that returns
// {"items":[{"settings":{...}}]}.
type Connector struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

type connectorResponse struct {
	Items []struct {
		Settings struct {
			AccessToken string `json:"access_token"`
			ExpiresAt   string `json:"expires_at"`
			OAuth       struct {
				Credentials struct {
					AccessToken string `json:"access_token"`
				} `json:"credentials"`
			} `json:"oauth"`
		} `json:"settings"`
	} `json:"items"`
}

func (c Connector) Credential(ctx context.Context) (Credential, error) {
	if c.URL == "" {
		return Credential{}, ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("X-Connector-Token", c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("connector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("connector status %d", resp.StatusCode)
	}

	var payload connectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, fmt.Errorf("failed to decode connector response: %w", err)
	}
	if len(payload.Items) == 0 {
		return Credential{}, ErrNotConnected
	}

	settings := payload.Items[0].Settings
	cred := Credential{Token: settings.AccessToken}
	if cred.Token == "" {
		cred.Token = settings.OAuth.Credentials.AccessToken
	}
	if cred.Token == "" {
		return Credential{}, ErrNotConnected
	}
	if settings.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, settings.ExpiresAt)
		if err != nil {
			return Credential{}, fmt.Errorf("invalid connector expiry %q: %w", settings.ExpiresAt, err)
		}
		cred.ExpiresAt = expires
	}
	return cred, nil
}
