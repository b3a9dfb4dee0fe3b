package memory

import (
	"context"
	"errors"
	"testing"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

func TestConfigStoreScopeExact(t *testing.T) {
	store := NewConfigStore()
	ctx := context.Background()

	store.Seed(domain.ScopeDefault, 0, map[string]string{"carriers/shqserver/api_key": "default-key"})

	if _, err := store.Get(ctx, "carriers/shqserver/api_key", domain.ScopeWebsite, 1); !errors.Is(err, repositories.ErrConfigNotFound) {
		t.Fatalf("website read of default-only value: err = %v, want ErrConfigNotFound", err)
	}

	v, err := store.Get(ctx, "carriers/shqserver/api_key", domain.ScopeDefault, 0)
	if err != nil || v != "default-key" {
		t.Fatalf("default read = %q (%v)", v, err)
	}
}

func TestConfigStoreSetDelete(t *testing.T) {
	store := NewConfigStore()
	ctx := context.Background()

	if err := store.Set(ctx, "carriers/shqserver/secret_token", "tok", domain.ScopeWebsite, 2); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	v, err := store.Get(ctx, "carriers/shqserver/secret_token", domain.ScopeWebsite, 2)
	if err != nil || v != "tok" {
		t.Fatalf("Get after Set = %q (%v)", v, err)
	}

	if err := store.Delete(ctx, "carriers/shqserver/secret_token", domain.ScopeWebsite, 2); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "carriers/shqserver/secret_token", domain.ScopeWebsite, 2); !errors.Is(err, repositories.ErrConfigNotFound) {
		t.Fatalf("Get after Delete: err = %v, want ErrConfigNotFound", err)
	}
}

func TestConfigStoreListSection(t *testing.T) {
	store := NewConfigStore()
	store.Seed(domain.ScopeWebsite, 2, map[string]string{
		"carriers/shqserver/api_key":  "k",
		"carriers/shqserver/password": "p",
		"carriers/other/api_key":      "x",
	})
	store.Seed(domain.ScopeDefault, 0, map[string]string{
		"carriers/shqserver/api_key": "default",
	})

	values, err := store.ListSection(context.Background(), "carriers/shqserver", domain.ScopeWebsite, 2)
	if err != nil {
		t.Fatalf("ListSection returned error: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("values = %#v, want the two shqserver assignments", values)
	}
	if values["carriers/shqserver/api_key"] != "k" || values["carriers/shqserver/password"] != "p" {
		t.Fatalf("values = %#v", values)
	}
}
