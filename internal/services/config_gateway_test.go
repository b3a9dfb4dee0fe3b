package services

import (
	"context"
	"testing"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories/memory"
)

type countingStore struct {
	*memory.ConfigStore
	gets int
	sets int
}

func (s *countingStore) Get(ctx context.Context, path string, scope domain.ScopeType, scopeID int64) (string, error) {
	s.gets++
	return s.ConfigStore.Get(ctx, path, scope, scopeID)
}

func (s *countingStore) Set(ctx context.Context, path, value string, scope domain.ScopeType, scopeID int64) error {
	s.sets++
	return s.ConfigStore.Set(ctx, path, value, scope, scopeID)
}

type countingInvalidator struct {
	calls int
}

func (i *countingInvalidator) Invalidate(context.Context) error {
	i.calls++
	return nil
}

func newTestGateway(t *testing.T) (*ConfigGateway, *countingStore, *countingInvalidator) {
	t.Helper()
	store := &countingStore{ConfigStore: memory.NewConfigStore()}
	invalidator := &countingInvalidator{}
	gateway, err := NewConfigGateway(ConfigGatewayDeps{Store: store, Invalidator: invalidator})
	if err != nil {
		t.Fatalf("NewConfigGateway returned error: %v", err)
	}
	return gateway, store, invalidator
}

func TestValueWebsiteFallsBackToDefault(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	store.Seed(domain.ScopeDefault, 0, map[string]string{"carriers/shqserver/api_key": "default-key"})
	store.Seed(domain.ScopeWebsite, 2, map[string]string{"carriers/shqserver/api_key": "eu-key"})

	ctx := context.Background()

	v, err := gateway.Value(ctx, "carriers/shqserver/api_key", WebsiteScope(2))
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != "eu-key" {
		t.Fatalf("website own value = %q, want eu-key", v)
	}

	v, err = gateway.Value(ctx, "carriers/shqserver/api_key", WebsiteScope(1))
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != "default-key" {
		t.Fatalf("inherited value = %q, want default-key", v)
	}
}

func TestValueMissingEverywhereIsEmptyNotError(t *testing.T) {
	gateway, _, _ := newTestGateway(t)

	v, err := gateway.Value(context.Background(), "carriers/shqserver/password", WebsiteScope(1))
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != "" {
		t.Fatalf("missing value = %q, want empty", v)
	}
}

func TestValueCachesUntilDirty(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	store.Seed(domain.ScopeDefault, 0, map[string]string{"general/country/default": "US"})

	ctx := context.Background()
	scope := DefaultScope()

	if _, err := gateway.Value(ctx, "general/country/default", scope); err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	before := store.gets
	if _, err := gateway.Value(ctx, "general/country/default", scope); err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if store.gets != before {
		t.Fatalf("second read hit the store: %d gets, want %d", store.gets, before)
	}

	store.Seed(domain.ScopeDefault, 0, map[string]string{"general/country/default": "GB"})
	gateway.MarkDirty()

	v, err := gateway.Value(ctx, "general/country/default", scope)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != "GB" {
		t.Fatalf("value after invalidation = %q, want GB", v)
	}
}

func TestWriteSkipsUnchangedValue(t *testing.T) {
	gateway, store, invalidator := newTestGateway(t)
	ctx := context.Background()

	if err := gateway.Write(ctx, "carriers/shqserver/secret_token", domain.ScopeDefault, 0, "tok-1"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if store.sets != 1 || invalidator.calls != 1 {
		t.Fatalf("first write: sets=%d invalidations=%d, want 1/1", store.sets, invalidator.calls)
	}

	if err := gateway.Write(ctx, "carriers/shqserver/secret_token", domain.ScopeDefault, 0, "tok-1"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if store.sets != 1 || invalidator.calls != 1 {
		t.Fatalf("unchanged write should be a no-op: sets=%d invalidations=%d", store.sets, invalidator.calls)
	}

	if err := gateway.Write(ctx, "carriers/shqserver/secret_token", domain.ScopeDefault, 0, "tok-2"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if store.sets != 2 || invalidator.calls != 2 {
		t.Fatalf("changed write: sets=%d invalidations=%d, want 2/2", store.sets, invalidator.calls)
	}
}

func TestWriteDirtiesReadCache(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	store.Seed(domain.ScopeDefault, 0, map[string]string{"carriers/shqserver/public_token": "old"})

	ctx := context.Background()
	scope := DefaultScope()

	if v, _ := gateway.Value(ctx, "carriers/shqserver/public_token", scope); v != "old" {
		t.Fatalf("primed value = %q, want old", v)
	}

	if err := gateway.Write(ctx, "carriers/shqserver/public_token", domain.ScopeDefault, 0, "new"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	v, err := gateway.Value(ctx, "carriers/shqserver/public_token", scope)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != "new" {
		t.Fatalf("value after write = %q, want new", v)
	}
}

func TestFlagParsing(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	store.Seed(domain.ScopeDefault, 0, map[string]string{
		"tax/calculation/discount_tax": "1",
		"carriers/shqserver/active":    "0",
	})

	ctx := context.Background()
	scope := DefaultScope()

	if v, _ := gateway.Flag(ctx, "tax/calculation/discount_tax", scope); !v {
		t.Fatal("flag '1' should be true")
	}
	if v, _ := gateway.Flag(ctx, "carriers/shqserver/active", scope); v {
		t.Fatal("flag '0' should be false")
	}
	if v, _ := gateway.Flag(ctx, "carriers/shqserver/missing", scope); v {
		t.Fatal("missing flag should be false")
	}
}

func TestSectionOwnValuesExcludesInherited(t *testing.T) {
	gateway, store, _ := newTestGateway(t)
	store.Seed(domain.ScopeDefault, 0, map[string]string{
		"carriers/shqserver/api_key":  "default-key",
		"carriers/shqserver/password": "default-pass",
	})
	store.Seed(domain.ScopeWebsite, 2, map[string]string{
		"carriers/shqserver/api_key": "eu-key",
	})

	values, err := gateway.SectionOwnValues(context.Background(), "carriers/shqserver", domain.ScopeWebsite, 2)
	if err != nil {
		t.Fatalf("SectionOwnValues returned error: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("own values = %#v, want only the website's own assignment", values)
	}
	if values["carriers/shqserver/api_key"] != "eu-key" {
		t.Fatalf("own api_key = %q, want eu-key", values["carriers/shqserver/api_key"])
	}
}
