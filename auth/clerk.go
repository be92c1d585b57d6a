package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/contactbook/contactbook-api/core"
)

// ClerkClient calls the Clerk REST API with the instance secret key.
type ClerkClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClerkClient creates a Clerk REST client.
func NewClerkClient(baseURL, secretKey string, logger *zap.Logger) *ClerkClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClerkClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// User holds the subset of a Clerk user record the service reads.
type User struct {
	ID               string            `json:"id"`
	ExternalAccounts []ExternalAccount `json:"external_accounts"`
}

// ExternalAccount is a linked OAuth provider account.
type ExternalAccount struct {
	Provider     string `json:"provider"`
	EmailAddress string `json:"email_address"`
}

// User fetches a user record.
func (c *ClerkClient) User(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/"+userID, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GoogleAccessToken fetches the user's Google OAuth access token that
// Clerk holds from the sign-in flow. An empty result means the user
// never linked Google, which the caller maps to a 401.
func (c *ClerkClient) GoogleAccessToken(ctx context.Context, userID string) (string, error) {
	path := "/users/" + userID + "/oauth_access_tokens/google"

	body, err := c.getRaw(ctx, path)
	if err != nil {
		c.logger.Warn("no google token for user", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", core.ErrGoogleNotLinked, err)
	}

	// Clerk has returned both a bare object and a list of token
	// objects for this endpoint; accept either shape.
	var obj struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &obj); err == nil && obj.Token != "" {
		return obj.Token, nil
	}
	var list []struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 && list[0].Token != "" {
		return list[0].Token, nil
	}

	return "", core.ErrGoogleNotLinked
}

func (c *ClerkClient) get(ctx context.Context, path string, out any) error {
	body, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *ClerkClient) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clerk request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clerk api status %d", resp.StatusCode)
	}
	return body, nil
}
