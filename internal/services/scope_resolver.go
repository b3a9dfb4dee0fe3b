package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

// ErrScopeInvalidInput indicates the requested scope identifiers do not
// resolve to a known website or store.
var ErrScopeInvalidInput = errors.New("scope: invalid input")

// Scope is the resolved evaluation scope for one operation. A zero value is
// the default scope.
type Scope struct {
	Type      domain.ScopeType
	WebsiteID int64
	StoreID   int64
}

// DefaultScope returns the global fallback scope.
func DefaultScope() Scope {
	return Scope{Type: domain.ScopeDefault}
}

// WebsiteScope returns a scope pinned to one website.
func WebsiteScope(websiteID int64) Scope {
	return Scope{Type: domain.ScopeWebsite, WebsiteID: websiteID}
}

// ConfigTarget returns the scope level configuration is read at. Store views
// carry no configuration of their own, so store scopes read through their
// parent website.
func (s Scope) ConfigTarget() (domain.ScopeType, int64) {
	switch s.Type {
	case domain.ScopeStore, domain.ScopeWebsite:
		return domain.ScopeWebsite, s.WebsiteID
	default:
		return domain.ScopeDefault, 0
	}
}

// ScopeResolverDeps bundles the resolver's collaborators.
type ScopeResolverDeps struct {
	Stores repositories.StoreDirectory
}

// ScopeResolver turns request-level website/store identifiers into a resolved
// Scope. Resolvers are stateless; one instance serves all requests.
type ScopeResolver struct {
	stores repositories.StoreDirectory
}

// NewScopeResolver validates deps and constructs a ScopeResolver.
func NewScopeResolver(deps ScopeResolverDeps) (*ScopeResolver, error) {
	if deps.Stores == nil {
		return nil, errors.New("scope resolver: store directory is required")
	}
	return &ScopeResolver{stores: deps.Stores}, nil
}

// Resolve maps the optional identifiers to a Scope. A store id wins over a
// website id; both zero means the default scope. Unknown ids surface
// ErrScopeInvalidInput.
func (r *ScopeResolver) Resolve(ctx context.Context, websiteID, storeID int64) (Scope, error) {
	if storeID != 0 {
		store, err := r.stores.Store(ctx, storeID)
		if err != nil {
			if errors.Is(err, repositories.ErrNoSuchStore) {
				return Scope{}, fmt.Errorf("%w: store %d", ErrScopeInvalidInput, storeID)
			}
			return Scope{}, fmt.Errorf("scope: look up store %d: %w", storeID, err)
		}
		return Scope{Type: domain.ScopeStore, WebsiteID: store.WebsiteID, StoreID: store.ID}, nil
	}
	if websiteID != 0 {
		websites, err := r.stores.Websites(ctx)
		if err != nil {
			return Scope{}, fmt.Errorf("scope: list websites: %w", err)
		}
		for _, w := range websites {
			if w.ID == websiteID {
				return WebsiteScope(websiteID), nil
			}
		}
		return Scope{}, fmt.Errorf("%w: website %d", ErrScopeInvalidInput, websiteID)
	}
	return DefaultScope(), nil
}
