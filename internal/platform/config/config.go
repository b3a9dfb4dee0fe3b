// Package config loads runtime configuration from the environment, resolving
// secret:// references through an injected resolver.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultRemoteTimeout  = 30 * time.Second
	defaultConfigSection  = "carriers/shqserver"
	defaultMaxAllowedQty  = 10000
	secretReferencePrefix = "secret://"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Remote      RemoteConfig
	Site        SiteConfig
	Page        PageConfig
	Credentials CredentialsConfig
	Fixtures    FixtureConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig selects the Firestore-backed config store. An empty
// ProjectID selects the in-memory store instead.
type FirestoreConfig struct {
	ProjectID    string
	Collection   string
	EmulatorHost string
}

// PubSubConfig configures the cache-invalidation broadcast topic. An empty
// Topic disables broadcasting.
type PubSubConfig struct {
	ProjectID string
	Topic     string
}

// RemoteConfig holds fallbacks for the remote auth endpoint; the per-scope
// values in scoped config take precedence.
type RemoteConfig struct {
	Endpoint  string
	Timeout   time.Duration
	KeyPrefix string
}

// SiteConfig describes the hosting storefront platform.
type SiteConfig struct {
	PlatformName    string
	PlatformEdition string
}

// PageConfig carries the product-page bundle settings served to the client.
type PageConfig struct {
	JSBundleURL       string
	CSSBundleURL      string
	MaximumAllowedQty int
}

// CredentialsConfig optionally seeds default-scope API credentials at boot.
// Both values accept secret:// references.
type CredentialsConfig struct {
	APIKey   string
	AuthCode string
}

// FixtureConfig points at local JSON fixtures for the in-memory catalog and
// store directory used in development runs.
type FixtureConfig struct {
	CatalogPath   string
	DirectoryPath string
}

// SecretResolver resolves secret:// references into plaintext values.
type SecretResolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(context.Context, string) (string, error)

// Resolve implements SecretResolver.
func (f SecretResolverFunc) Resolve(ctx context.Context, reference string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("config: secret resolver not configured")
	}
	return f(ctx, reference)
}

type loader struct {
	lookup   func(string) (string, bool)
	resolver SecretResolver
}

// Option customises configuration loading.
type Option func(*loader)

// WithSecretResolver enables secret:// reference resolution.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(l *loader) {
		l.resolver = resolver
	}
}

// WithLookup overrides the environment lookup, primarily for tests.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(l *loader) {
		if lookup != nil {
			l.lookup = lookup
		}
	}
}

// Load reads configuration from the environment.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	l := &loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         l.value("PORT", defaultPort),
			ReadTimeout:  l.duration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: l.duration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  l.duration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    l.value("FIRESTORE_PROJECT_ID", ""),
			Collection:   l.value("FIRESTORE_CONFIG_COLLECTION", ""),
			EmulatorHost: l.value("FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID: l.value("PUBSUB_PROJECT_ID", ""),
			Topic:     l.value("CONFIG_INVALIDATION_TOPIC", ""),
		},
		Remote: RemoteConfig{
			Endpoint:  l.value("SHQ_AUTH_ENDPOINT", ""),
			Timeout:   l.duration("SHQ_AUTH_TIMEOUT", defaultRemoteTimeout),
			KeyPrefix: l.value("SHQ_CONFIG_PREFIX", defaultConfigSection),
		},
		Site: SiteConfig{
			PlatformName:    l.value("SITE_PLATFORM_NAME", "Magento 2"),
			PlatformEdition: l.value("SITE_PLATFORM_EDITION", "Community"),
		},
		Page: PageConfig{
			JSBundleURL:       l.value("PAGE_JS_BUNDLE_URL", ""),
			CSSBundleURL:      l.value("PAGE_CSS_BUNDLE_URL", ""),
			MaximumAllowedQty: l.integer("PAGE_MAX_ALLOWED_QTY", defaultMaxAllowedQty),
		},
		Fixtures: FixtureConfig{
			CatalogPath:   l.value("CATALOG_FIXTURE", ""),
			DirectoryPath: l.value("DIRECTORY_FIXTURE", ""),
		},
	}

	apiKey, err := l.secret(ctx, "SHQ_API_KEY")
	if err != nil {
		return Config{}, err
	}
	authCode, err := l.secret(ctx, "SHQ_AUTH_CODE")
	if err != nil {
		return Config{}, err
	}
	cfg.Credentials = CredentialsConfig{APIKey: apiKey, AuthCode: authCode}

	return cfg, nil
}

func (l *loader) value(key, fallback string) string {
	if v, ok := l.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := l.lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func (l *loader) integer(key string, fallback int) int {
	raw, ok := l.lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// secret reads a value that may be a secret:// reference.
func (l *loader) secret(ctx context.Context, key string) (string, error) {
	raw := l.value(key, "")
	if raw == "" || !strings.HasPrefix(raw, secretReferencePrefix) {
		return raw, nil
	}
	if l.resolver == nil {
		return "", fmt.Errorf("config: %s is a secret reference but no resolver is configured", key)
	}
	resolved, err := l.resolver.Resolve(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("config: resolving %s: %w", key, err)
	}
	return resolved, nil
}
