// Package secrets resolves secret:// references via Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const referencePrefix = "secret://"

// AccessClient is the Secret Manager surface the fetcher depends on.
type AccessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references with in-process caching.
type Fetcher struct {
	client     AccessClient
	ownsClient bool
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises the fetcher.
type Option func(*Fetcher)

// WithClient injects a pre-built client, primarily for tests. The fetcher
// will not close an injected client.
func WithClient(client AccessClient) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
			f.ownsClient = false
		}
	}
}

// NewFetcher constructs a fetcher, creating a Secret Manager client unless one
// is injected.
func NewFetcher(ctx context.Context, logger *zap.Logger, clientOpts []option.ClientOption, opts ...Option) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := &Fetcher{logger: logger, cache: make(map[string]string)}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}

	if fetcher.client == nil {
		client, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}
	return fetcher, nil
}

// Resolve fetches the referenced secret version payload.
func (f *Fetcher) Resolve(ctx context.Context, reference string) (string, error) {
	name, err := canonicalName(reference)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", redactName(name), err)
	}
	payload := resp.GetPayload().GetData()
	if len(payload) == 0 {
		return "", fmt.Errorf("secrets: %s has an empty payload", redactName(name))
	}

	value := string(payload)
	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()

	f.logger.Debug("secret resolved", zap.String("secret", redactName(name)))
	return value, nil
}

// Close releases the underlying client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

// canonicalName turns secret://projects/P/secrets/S[/versions/V] into the
// full resource name, defaulting to the latest version.
func canonicalName(reference string) (string, error) {
	trimmed := strings.TrimSpace(reference)
	if !strings.HasPrefix(trimmed, referencePrefix) {
		return "", errors.New("secrets: reference must start with secret://")
	}
	name := strings.Trim(strings.TrimPrefix(trimmed, referencePrefix), "/")

	parts := strings.Split(name, "/")
	switch {
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "secrets":
		return name + "/versions/latest", nil
	case len(parts) == 6 && parts[0] == "projects" && parts[2] == "secrets" && parts[4] == "versions":
		return name, nil
	default:
		return "", fmt.Errorf("secrets: malformed reference %q", redactName(trimmed))
	}
}

// redactName keeps only the secret id segment for logs and errors.
func redactName(name string) string {
	parts := strings.Split(name, "/")
	for i, part := range parts {
		if part == "secrets" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return "unknown"
}
