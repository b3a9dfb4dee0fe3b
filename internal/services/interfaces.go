// Package services contains the application core: scope resolution, scoped
// configuration, token lifecycle, cart mapping, and the product page
// orchestrator.
package services

import (
	"context"
	"time"

	domain "github.com/shipperhq/productpage-api/internal/domain"
)

// Clock supplies the current time. Services never call time.Now directly so
// tests can pin the clock.
type Clock func() time.Time

// AuthClient requests secret tokens from the remote auth endpoint.
type AuthClient interface {
	CreateSecretToken(ctx context.Context, apiKey, authCode, endpoint string, timeout time.Duration) (domain.TokenEnvelope, error)
}

// ProductRepository loads catalog products for a store view.
type ProductRepository interface {
	ByID(ctx context.Context, productID, storeID int64) (domain.Product, error)
}

// CandidateResolver expands a product plus buy-request options into the line
// items that would enter a cart, mimicking the platform's add-to-cart
// resolution.
type CandidateResolver interface {
	PrepareForCart(ctx context.Context, product domain.Product, buyRequest map[string]any) ([]domain.CartCandidate, error)
}

// AssociatedProductLoader prefetches the purchasable children of a grouped
// product in one pass.
type AssociatedProductLoader interface {
	InStockAssociatedProducts(ctx context.Context, product domain.Product) ([]domain.Product, error)
}

// CustomerGroupDirectory resolves customer group ids to their codes.
type CustomerGroupDirectory interface {
	GroupCode(ctx context.Context, groupID int64) (string, error)
}

// CountryDirectory lists the countries offered in the destination selector.
type CountryDirectory interface {
	Countries(ctx context.Context) ([]domain.Country, error)
}

// QuoteSession carries the per-request quote identity used for preview carts.
type QuoteSession interface {
	SessionID(ctx context.Context) string
	CurrencyCode(ctx context.Context, storeID int64) (string, error)
}
