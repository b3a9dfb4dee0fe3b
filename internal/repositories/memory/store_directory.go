package memory

import (
	"context"
	"sync"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

// StoreDirectory is a fixed in-memory website/store directory.
type StoreDirectory struct {
	mu       sync.RWMutex
	websites []domain.Website
	stores   []domain.Store
}

// NewStoreDirectory constructs a directory from the given entries.
func NewStoreDirectory(websites []domain.Website, stores []domain.Store) *StoreDirectory {
	return &StoreDirectory{
		websites: append([]domain.Website(nil), websites...),
		stores:   append([]domain.Store(nil), stores...),
	}
}

// Websites implements repositories.StoreDirectory.
func (d *StoreDirectory) Websites(context.Context) ([]domain.Website, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Website(nil), d.websites...), nil
}

// Stores implements repositories.StoreDirectory.
func (d *StoreDirectory) Stores(context.Context) ([]domain.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Store(nil), d.stores...), nil
}

// Store implements repositories.StoreDirectory.
func (d *StoreDirectory) Store(_ context.Context, storeID int64) (domain.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, store := range d.stores {
		if store.ID == storeID {
			return store, nil
		}
	}
	return domain.Store{}, repositories.ErrNoSuchStore
}
