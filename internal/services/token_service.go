package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/graphql"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

// TokenCacheMode controls how SecretToken treats the persisted token.
type TokenCacheMode int

const (
	// CachePrefer returns the persisted token when it is still usable and
	// fetches a fresh one otherwise.
	CachePrefer TokenCacheMode = iota
	// CacheOnly never contacts the auth endpoint.
	CacheOnly
	// CacheIgnore always fetches a fresh token.
	CacheIgnore
)

// tokenRefreshWindow is how close to expiry a token may get before a
// refetch is suggested. The boundary is inclusive.
const tokenRefreshWindow = time.Hour

const (
	pathGraphQLURL   = "graphql_url"
	pathWSTimeout    = "ws_timeout"
	pathAPIKey       = "api_key"
	pathPassword     = "password"
	pathSecretToken  = "secret_token"
	pathPublicToken  = "public_token"
	pathTokenExpires = "token_expires"
)

type tokenClaims struct {
	APIKey      string `json:"api_key"`
	PublicToken string `json:"public_token"`
	jwt.RegisteredClaims
}

// RefreshSummary accounts for one bulk refresh pass.
type RefreshSummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
}

// TokenServiceDeps bundles the token service's collaborators.
type TokenServiceDeps struct {
	Gateway *ConfigGateway
	Client  AuthClient
	Stores  repositories.StoreDirectory
	Clock   Clock
	Logger  *zap.Logger
	Meter   metric.Meter

	// KeyPrefix is the config section holding the carrier credentials,
	// e.g. "carriers/shqserver".
	KeyPrefix string
	// Endpoint is the auth endpoint used when no graphql_url is configured.
	Endpoint string
	// Timeout is the auth call timeout used when no ws_timeout is configured.
	Timeout time.Duration
}

// TokenService owns the secret and public token lifecycle for every scope.
type TokenService struct {
	gateway   *ConfigGateway
	client    AuthClient
	stores    repositories.StoreDirectory
	clock     Clock
	logger    *zap.Logger
	keyPrefix string
	endpoint  string
	timeout   time.Duration

	fetchCount   metric.Int64Counter
	fetchFailure metric.Int64Counter
}

// NewTokenService validates deps and constructs a TokenService.
func NewTokenService(deps TokenServiceDeps) (*TokenService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("token service: config gateway is required")
	}
	if deps.Client == nil {
		return nil, errors.New("token service: auth client is required")
	}
	if deps.Stores == nil {
		return nil, errors.New("token service: store directory is required")
	}
	if deps.KeyPrefix == "" {
		return nil, errors.New("token service: key prefix is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}

	s := &TokenService{
		gateway:   deps.Gateway,
		client:    deps.Client,
		stores:    deps.Stores,
		clock:     deps.Clock,
		logger:    deps.Logger,
		keyPrefix: deps.KeyPrefix,
		endpoint:  deps.Endpoint,
		timeout:   deps.Timeout,
	}
	if deps.Meter != nil {
		var err error
		s.fetchCount, err = deps.Meter.Int64Counter("shq.token.fetch.total")
		if err != nil {
			return nil, fmt.Errorf("token service: register fetch counter: %w", err)
		}
		s.fetchFailure, err = deps.Meter.Int64Counter("shq.token.fetch.failures")
		if err != nil {
			return nil, fmt.Errorf("token service: register failure counter: %w", err)
		}
	}
	return s, nil
}

func (s *TokenService) path(name string) string {
	return s.keyPrefix + "/" + name
}

// SecretToken returns the secret token for a scope. Failures to obtain a
// token are soft: the caller receives the empty string and the cause is
// logged. Only config store failures surface as errors.
func (s *TokenService) SecretToken(ctx context.Context, scope Scope, mode TokenCacheMode) (string, error) {
	cached, err := s.gateway.Value(ctx, s.path(pathSecretToken), scope)
	if err != nil {
		return "", err
	}
	if mode == CacheOnly {
		return cached, nil
	}

	if mode == CachePrefer {
		refetch, err := s.refetchSuggested(ctx, scope, cached)
		if err != nil {
			return "", err
		}
		if cached != "" && !refetch {
			return cached, nil
		}
	}

	apiKey, authCode, err := s.credentials(ctx, scope)
	if err != nil {
		return "", err
	}
	if apiKey == "" || authCode == "" {
		return cached, nil
	}

	envelope, err := s.fetch(ctx, scope, apiKey, authCode)
	if err != nil {
		return "", nil
	}
	if !s.persistNewToken(ctx, scope, envelope, apiKey, authCode) {
		return "", nil
	}
	return envelope.Token, nil
}

// PublicToken returns the public token for a scope. A missing public token,
// or credentials with no secret token behind them, triggers a token fetch and
// a re-read so a freshly configured scope heals itself on first use.
func (s *TokenService) PublicToken(ctx context.Context, scope Scope) (string, error) {
	public, err := s.gateway.Value(ctx, s.path(pathPublicToken), scope)
	if err != nil {
		return "", err
	}

	missing, err := s.hasCredentialsButNoToken(ctx, scope)
	if err != nil {
		return "", err
	}
	if public != "" && !missing {
		return public, nil
	}

	if _, err := s.SecretToken(ctx, scope, CachePrefer); err != nil {
		return "", err
	}
	s.gateway.FlushInvalidation()
	return s.gateway.Value(ctx, s.path(pathPublicToken), scope)
}

// IsSecretTokenValid reports whether the token's signature verifies against
// the auth code. Claim windows are checked separately against the injected
// clock, not here.
func (s *TokenService) IsSecretTokenValid(token, authCode string) bool {
	if token == "" || authCode == "" {
		return false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(token, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return []byte(authCode), nil
	})
	return err == nil
}

// RefreshAllTokens fetches a fresh token for the default scope and every
// website that carries its own credentials. Scopes without credentials are
// skipped, not failed.
func (s *TokenService) RefreshAllTokens(ctx context.Context) (RefreshSummary, error) {
	var summary RefreshSummary

	refresh := func(scope Scope, hasCreds bool) error {
		if !hasCreds {
			summary.Skipped++
			return nil
		}
		summary.Attempted++
		token, err := s.SecretToken(ctx, scope, CacheIgnore)
		if err != nil {
			return err
		}
		if token != "" {
			summary.Succeeded++
		}
		return nil
	}

	apiKey, authCode, err := s.credentials(ctx, DefaultScope())
	if err != nil {
		return summary, err
	}
	if err := refresh(DefaultScope(), apiKey != "" && authCode != ""); err != nil {
		return summary, err
	}

	websites, err := s.stores.Websites(ctx)
	if err != nil {
		return summary, fmt.Errorf("token service: list websites: %w", err)
	}
	for _, w := range websites {
		own, err := s.hasOwnCredentials(ctx, w.ID)
		if err != nil {
			return summary, err
		}
		if err := refresh(WebsiteScope(w.ID), own); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (s *TokenService) credentials(ctx context.Context, scope Scope) (apiKey, authCode string, err error) {
	apiKey, err = s.gateway.Value(ctx, s.path(pathAPIKey), scope)
	if err != nil {
		return "", "", err
	}
	authCode, err = s.gateway.Value(ctx, s.path(pathPassword), scope)
	if err != nil {
		return "", "", err
	}
	return apiKey, authCode, nil
}

// hasOwnCredentials reports whether a website holds both credential values as
// direct assignments, without inheriting them from the default scope.
func (s *TokenService) hasOwnCredentials(ctx context.Context, websiteID int64) (bool, error) {
	section, err := s.gateway.SectionOwnValues(ctx, s.keyPrefix, domain.ScopeWebsite, websiteID)
	if err != nil {
		return false, err
	}
	return section[s.path(pathAPIKey)] != "" && section[s.path(pathPassword)] != "", nil
}

func (s *TokenService) hasCredentialsButNoToken(ctx context.Context, scope Scope) (bool, error) {
	apiKey, _, err := s.credentials(ctx, scope)
	if err != nil {
		return false, err
	}
	if apiKey == "" {
		return false, nil
	}
	token, err := s.gateway.Value(ctx, s.path(pathSecretToken), scope)
	if err != nil {
		return false, err
	}
	return token == "", nil
}

// refetchSuggested decides whether the cached token should be replaced:
// credentials without a token, a token inside the refresh window, or a token
// whose signature no longer verifies.
func (s *TokenService) refetchSuggested(ctx context.Context, scope Scope, cached string) (bool, error) {
	missing, err := s.hasCredentialsButNoToken(ctx, scope)
	if err != nil {
		return false, err
	}
	if missing {
		return true, nil
	}
	if cached == "" {
		return false, nil
	}

	soon, err := s.expiringSoon(ctx, scope)
	if err != nil {
		return false, err
	}
	if soon {
		return true, nil
	}

	_, authCode, err := s.credentials(ctx, scope)
	if err != nil {
		return false, err
	}
	return !s.IsSecretTokenValid(cached, authCode), nil
}

// expiringSoon reports whether the persisted expiry falls within the refresh
// window. An absent or unparsable expiry counts as expiring.
func (s *TokenService) expiringSoon(ctx context.Context, scope Scope) (bool, error) {
	raw, err := s.gateway.Value(ctx, s.path(pathTokenExpires), scope)
	if err != nil {
		return false, err
	}
	exp, perr := time.Parse(time.RFC3339, raw)
	if perr != nil {
		return true, nil
	}
	return !s.clock().Add(tokenRefreshWindow).Before(exp), nil
}

func (s *TokenService) fetch(ctx context.Context, scope Scope, apiKey, authCode string) (domain.TokenEnvelope, error) {
	endpoint, err := s.gateway.Value(ctx, s.path(pathGraphQLURL), scope)
	if err != nil {
		return domain.TokenEnvelope{}, err
	}
	if endpoint == "" {
		endpoint = s.endpoint
	}

	timeout := s.timeout
	if raw, err := s.gateway.Value(ctx, s.path(pathWSTimeout), scope); err == nil && raw != "" {
		if secs, perr := strconv.Atoi(raw); perr == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	s.add(ctx, s.fetchCount)
	envelope, err := s.client.CreateSecretToken(ctx, apiKey, authCode, endpoint, timeout)
	if err != nil {
		s.add(ctx, s.fetchFailure)
		s.logger.Error("secret token fetch failed",
			zap.String("scope", string(scope.Type)),
			zap.Int64("website_id", scope.WebsiteID),
			zap.Any("exchange", graphql.SanitizeDebug(envelope.Debug)),
			zap.Error(err))
		return domain.TokenEnvelope{}, err
	}
	s.logger.Info("secret token exchange",
		zap.String("scope", string(scope.Type)),
		zap.Int64("website_id", scope.WebsiteID),
		zap.Any("exchange", graphql.SanitizeDebug(envelope.Debug)))
	return envelope, nil
}

// persistNewToken stores a fetched token and its derived fields, but only
// when the token verifies against the auth code, names the configured api
// key, and its claim window contains the current time. A website whose
// credentials are inherited writes at the default scope instead of its own.
// It reports whether the token was accepted and stored; a rejected token must
// never reach callers.
func (s *TokenService) persistNewToken(ctx context.Context, scope Scope, envelope domain.TokenEnvelope, apiKey, authCode string) bool {
	claims, ok := s.verifiedClaims(envelope.Token, apiKey, authCode)
	if !ok {
		s.logger.Warn("fetched token failed verification, not persisting",
			zap.String("scope", string(scope.Type)),
			zap.Int64("website_id", scope.WebsiteID))
		return false
	}

	writeType, writeID, err := s.writeTarget(ctx, scope)
	if err != nil {
		s.logger.Warn("token persist scope resolution failed", zap.Error(err))
		return false
	}

	expires := ""
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}

	writes := []struct {
		path  string
		value string
	}{
		{s.path(pathSecretToken), envelope.Token},
		{s.path(pathPublicToken), claims.PublicToken},
		{s.path(pathTokenExpires), expires},
	}
	for _, w := range writes {
		if err := s.gateway.Write(ctx, w.path, writeType, writeID, w.value); err != nil {
			s.logger.Warn("token persist failed", zap.String("path", w.path), zap.Error(err))
			return false
		}
	}
	return true
}

func (s *TokenService) verifiedClaims(token, apiKey, authCode string) (*tokenClaims, bool) {
	if !s.IsSecretTokenValid(token, authCode) {
		return nil, false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &tokenClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(authCode), nil
	}); err != nil {
		return nil, false
	}
	if claims.APIKey != apiKey {
		return nil, false
	}
	now := s.clock()
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, false
	}
	if now.Before(claims.IssuedAt.Time) || now.After(claims.ExpiresAt.Time) {
		return nil, false
	}
	return claims, true
}

// writeTarget picks where freshly fetched token state lands. A website scope
// keeps its own assignment only when it holds its own credentials; otherwise
// the write downgrades to the default scope.
func (s *TokenService) writeTarget(ctx context.Context, scope Scope) (domain.ScopeType, int64, error) {
	scopeType, scopeID := scope.ConfigTarget()
	if scopeType != domain.ScopeWebsite {
		return domain.ScopeDefault, 0, nil
	}
	own, err := s.hasOwnCredentials(ctx, scopeID)
	if err != nil {
		return "", 0, err
	}
	if !own {
		return domain.ScopeDefault, 0, nil
	}
	return domain.ScopeWebsite, scopeID, nil
}

func (s *TokenService) add(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}
