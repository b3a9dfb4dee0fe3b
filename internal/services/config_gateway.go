package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

type cacheKey struct {
	path    string
	scope   domain.ScopeType
	scopeID int64
}

// ConfigGatewayDeps bundles the gateway's collaborators. Invalidator is
// optional; without one, writes only refresh the local cache.
type ConfigGatewayDeps struct {
	Store       repositories.ConfigStore
	Invalidator repositories.CacheInvalidator
	Logger      *zap.Logger
}

// ConfigGateway serves scoped configuration with website-to-default fallback
// and a process-local read cache. Writes mark the cache dirty; the next read
// flushes it before touching the store, so a request never mixes values from
// before and after its own writes.
type ConfigGateway struct {
	store       repositories.ConfigStore
	invalidator repositories.CacheInvalidator
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[cacheKey]string
	dirty bool
}

// NewConfigGateway validates deps and constructs a ConfigGateway.
func NewConfigGateway(deps ConfigGatewayDeps) (*ConfigGateway, error) {
	if deps.Store == nil {
		return nil, errors.New("config gateway: store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ConfigGateway{
		store:       deps.Store,
		invalidator: deps.Invalidator,
		logger:      deps.Logger,
		cache:       make(map[cacheKey]string),
	}, nil
}

// MarkDirty flags the local cache for a flush before the next read. External
// invalidation listeners call this when a broadcast arrives.
func (g *ConfigGateway) MarkDirty() {
	g.mu.Lock()
	g.dirty = true
	g.mu.Unlock()
}

// FlushInvalidation drops the read cache if a write has dirtied it.
func (g *ConfigGateway) FlushInvalidation() {
	g.mu.Lock()
	g.flushLocked()
	g.mu.Unlock()
}

func (g *ConfigGateway) flushLocked() {
	if !g.dirty {
		return
	}
	g.cache = make(map[cacheKey]string)
	g.dirty = false
}

// Value reads a config path at the given scope. Website scopes fall back to
// the default scope when the website carries no own assignment; a path with
// no assignment anywhere reads as the empty string, not an error.
func (g *ConfigGateway) Value(ctx context.Context, path string, scope Scope) (string, error) {
	scopeType, scopeID := scope.ConfigTarget()

	g.mu.Lock()
	g.flushLocked()
	key := cacheKey{path: path, scope: scopeType, scopeID: scopeID}
	if v, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return v, nil
	}
	g.mu.Unlock()

	v, err := g.lookup(ctx, path, scopeType, scopeID)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	if !g.dirty {
		g.cache[key] = v
	}
	g.mu.Unlock()
	return v, nil
}

func (g *ConfigGateway) lookup(ctx context.Context, path string, scopeType domain.ScopeType, scopeID int64) (string, error) {
	if scopeType == domain.ScopeWebsite {
		v, err := g.store.Get(ctx, path, domain.ScopeWebsite, scopeID)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, repositories.ErrConfigNotFound) {
			return "", fmt.Errorf("config: read %s at website %d: %w", path, scopeID, err)
		}
	}
	v, err := g.store.Get(ctx, path, domain.ScopeDefault, 0)
	if err != nil {
		if errors.Is(err, repositories.ErrConfigNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("config: read %s at default: %w", path, err)
	}
	return v, nil
}

// OwnValue reads a path at the exact scope with no fallback. A missing
// assignment reads as ("", false, nil).
func (g *ConfigGateway) OwnValue(ctx context.Context, path string, scopeType domain.ScopeType, scopeID int64) (string, bool, error) {
	v, err := g.store.Get(ctx, path, scopeType, scopeID)
	if err != nil {
		if errors.Is(err, repositories.ErrConfigNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("config: read %s at %s %d: %w", path, scopeType, scopeID, err)
	}
	return v, true, nil
}

// Flag reads a path as a boolean. "1" and "true" are truthy; everything else,
// including a missing assignment, is false.
func (g *ConfigGateway) Flag(ctx context.Context, path string, scope Scope) (bool, error) {
	v, err := g.Value(ctx, path, scope)
	if err != nil {
		return false, err
	}
	return v == "1" || v == "true", nil
}

// Write persists a value at the exact scope. Writing the value already stored
// there is a no-op: nothing is persisted and no invalidation is broadcast.
func (g *ConfigGateway) Write(ctx context.Context, path string, scopeType domain.ScopeType, scopeID int64, value string) error {
	current, found, err := g.OwnValue(ctx, path, scopeType, scopeID)
	if err != nil {
		return err
	}
	if found && current == value {
		return nil
	}
	if err := g.store.Set(ctx, path, value, scopeType, scopeID); err != nil {
		return fmt.Errorf("config: write %s at %s %d: %w", path, scopeType, scopeID, err)
	}
	g.MarkDirty()
	g.broadcast(ctx)
	return nil
}

// Delete removes an assignment at the exact scope.
func (g *ConfigGateway) Delete(ctx context.Context, path string, scopeType domain.ScopeType, scopeID int64) error {
	if err := g.store.Delete(ctx, path, scopeType, scopeID); err != nil {
		return fmt.Errorf("config: delete %s at %s %d: %w", path, scopeType, scopeID, err)
	}
	g.MarkDirty()
	g.broadcast(ctx)
	return nil
}

// SectionOwnValues lists the assignments a scope holds directly under a
// section prefix. Inherited values are not included.
func (g *ConfigGateway) SectionOwnValues(ctx context.Context, section string, scopeType domain.ScopeType, scopeID int64) (map[string]string, error) {
	values, err := g.store.ListSection(ctx, section, scopeType, scopeID)
	if err != nil {
		return nil, fmt.Errorf("config: list section %s at %s %d: %w", section, scopeType, scopeID, err)
	}
	return values, nil
}

func (g *ConfigGateway) broadcast(ctx context.Context) {
	if g.invalidator == nil {
		return
	}
	if err := g.invalidator.Invalidate(ctx); err != nil {
		g.logger.Warn("config invalidation broadcast failed", zap.Error(err))
	}
}
