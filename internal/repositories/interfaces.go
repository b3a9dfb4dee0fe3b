package repositories

import (
	"context"
	"errors"

	domain "github.com/shipperhq/productpage-api/internal/domain"
)

// ErrConfigNotFound reports that no value is assigned at the requested scope.
// Scope inheritance is resolved above this layer; stores are scope-exact.
var ErrConfigNotFound = errors.New("repositories: config value not found")

// ErrNoSuchStore reports a store id with no directory entry.
var ErrNoSuchStore = errors.New("repositories: no such store")

// ErrNoSuchProduct reports a product id unknown to the catalog.
var ErrNoSuchProduct = errors.New("repositories: no such product")

// ConfigStore persists string-keyed configuration values per scope.
type ConfigStore interface {
	// Get returns the value assigned exactly at the given scope, or
	// ErrConfigNotFound when the scope has no own assignment for the path.
	Get(ctx context.Context, path string, scope domain.ScopeType, scopeID int64) (string, error)
	Set(ctx context.Context, path, value string, scope domain.ScopeType, scopeID int64) error
	Delete(ctx context.Context, path string, scope domain.ScopeType, scopeID int64) error
	// ListSection returns every path under the section prefix assigned exactly
	// at the given scope, excluding values inherited from parent scopes.
	ListSection(ctx context.Context, section string, scope domain.ScopeType, scopeID int64) (map[string]string, error)
}

// CacheInvalidator broadcasts a configuration cache reinitialisation to other
// instances. Implementations must be safe to call repeatedly.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// StoreDirectory enumerates websites and stores and resolves store metadata.
type StoreDirectory interface {
	Websites(ctx context.Context) ([]domain.Website, error)
	Stores(ctx context.Context) ([]domain.Store, error)
	// Store resolves a single store, returning ErrNoSuchStore when unknown.
	Store(ctx context.Context, storeID int64) (domain.Store, error)
}
