// Package firestore provides the Firestore-backed persistent config store.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

const defaultConfigCollection = "shq_config"

type configDocument struct {
	Scope     string    `firestore:"scope"`
	ScopeID   int64     `firestore:"scopeId"`
	Path      string    `firestore:"path"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// ConfigStore implements repositories.ConfigStore on a Firestore collection,
// one document per (scope, scopeId, path) assignment.
type ConfigStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// ConfigStoreOption customises the store.
type ConfigStoreOption func(*ConfigStore)

// WithCollection overrides the backing collection name.
func WithCollection(name string) ConfigStoreOption {
	return func(s *ConfigStore) {
		if strings.TrimSpace(name) != "" {
			s.collection = name
		}
	}
}

// WithClock injects a custom clock, primarily for tests.
func WithClock(now func() time.Time) ConfigStoreOption {
	return func(s *ConfigStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewConfigStore constructs a Firestore-backed config store.
func NewConfigStore(client *firestore.Client, opts ...ConfigStoreOption) (*ConfigStore, error) {
	if client == nil {
		return nil, errors.New("firestore config store requires a client")
	}
	store := &ConfigStore{
		client:     client,
		collection: defaultConfigCollection,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Get implements repositories.ConfigStore.
func (s *ConfigStore) Get(ctx context.Context, path string, scope domain.ScopeType, scopeID int64) (string, error) {
	snap, err := s.client.Collection(s.collection).Doc(docID(path, scope, scopeID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", repositories.ErrConfigNotFound
		}
		return "", fmt.Errorf("config get %q: %w", path, err)
	}

	var doc configDocument
	if err := snap.DataTo(&doc); err != nil {
		return "", fmt.Errorf("config decode %q: %w", path, err)
	}
	return doc.Value, nil
}

// Set implements repositories.ConfigStore.
func (s *ConfigStore) Set(ctx context.Context, path, value string, scope domain.ScopeType, scopeID int64) error {
	doc := configDocument{
		Scope:     string(scope),
		ScopeID:   scopeID,
		Path:      path,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	if _, err := s.client.Collection(s.collection).Doc(docID(path, scope, scopeID)).Set(ctx, doc); err != nil {
		return fmt.Errorf("config set %q: %w", path, err)
	}
	return nil
}

// Delete implements repositories.ConfigStore.
func (s *ConfigStore) Delete(ctx context.Context, path string, scope domain.ScopeType, scopeID int64) error {
	if _, err := s.client.Collection(s.collection).Doc(docID(path, scope, scopeID)).Delete(ctx); err != nil {
		return fmt.Errorf("config delete %q: %w", path, err)
	}
	return nil
}

// ListSection implements repositories.ConfigStore. Prefix matching uses the
// usual Firestore range-query trick on the path field.
func (s *ConfigStore) ListSection(ctx context.Context, section string, scope domain.ScopeType, scopeID int64) (map[string]string, error) {
	prefix := strings.TrimSuffix(section, "/") + "/"

	iter := s.client.Collection(s.collection).
		Where("scope", "==", string(scope)).
		Where("scopeId", "==", scopeID).
		Where("path", ">=", prefix).
		Where("path", "<", prefix+"\uf8ff").
		Documents(ctx)
	defer iter.Stop()

	out := make(map[string]string)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("config list %q: %w", section, err)
		}
		var doc configDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("config decode in list %q: %w", section, err)
		}
		out[doc.Path] = doc.Value
	}
	return out, nil
}

// docID builds a deterministic document id; config paths never contain '~'.
func docID(path string, scope domain.ScopeType, scopeID int64) string {
	return fmt.Sprintf("%s~%d~%s", scope, scopeID, strings.ReplaceAll(path, "/", "~"))
}
