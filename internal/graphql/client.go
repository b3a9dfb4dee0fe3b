// Package graphql implements the remote auth endpoint client.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/shipperhq/productpage-api/internal/domain"
)

const createSecretTokenMutation = `mutation createSecretToken($api_key: String!, $auth_code: String!) {
  createSecretToken(api_key: $api_key, auth_code: $auth_code) {
    token
  }
}`

// maxResponseBytes bounds auth responses; token envelopes are small.
const maxResponseBytes = 1 << 20

// Client calls the remote auth endpoint over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient constructs a client. A nil httpClient selects http.DefaultClient.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		CreateSecretToken struct {
			Token string `json:"token"`
		} `json:"createSecretToken"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateSecretToken requests a new secret token for the given credentials.
// Any transport or protocol failure is returned as an error; the caller owns
// the logging policy.
func (c *Client) CreateSecretToken(ctx context.Context, apiKey, authCode, endpoint string, timeout time.Duration) (domain.TokenEnvelope, error) {
	if strings.TrimSpace(endpoint) == "" {
		return domain.TokenEnvelope{}, errors.New("graphql: auth endpoint is not configured")
	}

	body, err := json.Marshal(gqlRequest{
		Query: createSecretTokenMutation,
		Variables: map[string]any{
			"api_key":   apiKey,
			"auth_code": authCode,
		},
	})
	if err != nil {
		return domain.TokenEnvelope{}, fmt.Errorf("graphql: encode request: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.TokenEnvelope{}, fmt.Errorf("graphql: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TokenEnvelope{}, fmt.Errorf("graphql: auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.TokenEnvelope{}, fmt.Errorf("graphql: read response: %w", err)
	}

	envelope := domain.TokenEnvelope{
		Debug: domain.AuthDebug{Request: string(body), Response: string(respBody)},
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return envelope, fmt.Errorf("graphql: auth endpoint returned status %d", resp.StatusCode)
	}

	var parsed gqlResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return envelope, fmt.Errorf("graphql: decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return envelope, fmt.Errorf("graphql: auth endpoint error: %s", parsed.Errors[0].Message)
	}
	if parsed.Data.CreateSecretToken.Token == "" {
		return envelope, errors.New("graphql: response carries no token")
	}

	envelope.Token = parsed.Data.CreateSecretToken.Token
	return envelope, nil
}
