package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/shipperhq/productpage-api/internal/repositories"
)

// PageSession implements QuoteSession for anonymous product page visits.
// Each request gets a fresh ULID; the preview quote has no server-side state
// to tie the id to, so uniqueness is all the remote service needs.
type PageSession struct {
	stores repositories.StoreDirectory
}

// NewPageSession constructs a PageSession.
func NewPageSession(stores repositories.StoreDirectory) (*PageSession, error) {
	if stores == nil {
		return nil, errors.New("page session: store directory is required")
	}
	return &PageSession{stores: stores}, nil
}

// SessionID implements QuoteSession.
func (s *PageSession) SessionID(context.Context) string {
	return ulid.Make().String()
}

// CurrencyCode implements QuoteSession. An anonymous visit has no quote
// currency of its own, so the store view's currency applies.
func (s *PageSession) CurrencyCode(ctx context.Context, storeID int64) (string, error) {
	store, err := s.stores.Store(ctx, storeID)
	if err != nil {
		return "", fmt.Errorf("page session: resolve store %d: %w", storeID, err)
	}
	return store.CurrencyCode, nil
}
