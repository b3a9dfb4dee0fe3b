// Package memory provides in-memory repository implementations used by tests
// and local development runs.
package memory

import (
	"context"
	"strings"
	"sync"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

type configKey struct {
	scope   domain.ScopeType
	scopeID int64
	path    string
}

// ConfigStore is a scope-exact in-memory configuration store.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[configKey]string
}

// NewConfigStore constructs an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[configKey]string)}
}

// Seed assigns a batch of path/value pairs at the given scope.
func (s *ConfigStore) Seed(scope domain.ScopeType, scopeID int64, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, value := range values {
		s.values[configKey{scope: scope, scopeID: scopeID, path: path}] = value
	}
}

// Get implements repositories.ConfigStore.
func (s *ConfigStore) Get(_ context.Context, path string, scope domain.ScopeType, scopeID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[configKey{scope: scope, scopeID: scopeID, path: path}]
	if !ok {
		return "", repositories.ErrConfigNotFound
	}
	return value, nil
}

// Set implements repositories.ConfigStore.
func (s *ConfigStore) Set(_ context.Context, path, value string, scope domain.ScopeType, scopeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[configKey{scope: scope, scopeID: scopeID, path: path}] = value
	return nil
}

// Delete implements repositories.ConfigStore.
func (s *ConfigStore) Delete(_ context.Context, path string, scope domain.ScopeType, scopeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, configKey{scope: scope, scopeID: scopeID, path: path})
	return nil
}

// ListSection implements repositories.ConfigStore. Only values assigned
// exactly at the given scope are returned.
func (s *ConfigStore) ListSection(_ context.Context, section string, scope domain.ScopeType, scopeID int64) (map[string]string, error) {
	prefix := strings.TrimSuffix(section, "/") + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string)
	for key, value := range s.values {
		if key.scope != scope || key.scopeID != scopeID {
			continue
		}
		if strings.HasPrefix(key.path, prefix) {
			out[key.path] = value
		}
	}
	return out, nil
}
