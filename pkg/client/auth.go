package client

import (
	"context"
	"fmt"
	"net/http"
)

// AuthClient resolves opaque bearer tokens against the identity provider's
// introspection endpoint. The identity provider itself is outside this
// module; only the lookup lives here.
type AuthClient struct {
	httpClient *HttpClient
}

func NewAuthClient(baseURL string) *AuthClient {
	return &AuthClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id"`
}

// Verify returns the user ID owning the token, or an error when the token is
// unknown, expired, or the identity provider is unreachable.
func (c *AuthClient) Verify(ctx context.Context, token string) (string, error) {
	resp, err := c.httpClient.POST(ctx, "/v1/introspect", map[string]string{"token": token})
	if err != nil {
		return "", fmt.Errorf("token introspection failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token introspection returned status %d", resp.StatusCode)
	}

	var result introspectResponse
	if err := resp.DecodeJSON(&result); err != nil {
		return "", fmt.Errorf("failed to decode introspection response: %w", err)
	}

	if !result.Active || result.UserID == "" {
		return "", fmt.Errorf("token is not active")
	}

	return result.UserID, nil
}
