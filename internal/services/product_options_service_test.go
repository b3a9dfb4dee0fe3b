package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
	"github.com/shipperhq/productpage-api/internal/repositories/memory"
)

type stubProducts struct {
	products map[int64]domain.Product
}

func (s *stubProducts) ByID(_ context.Context, productID, _ int64) (domain.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return domain.Product{}, repositories.ErrNoSuchProduct
	}
	return p, nil
}

type stubResolver struct {
	candidates []domain.CartCandidate
	err        error
	gotProduct domain.Product
}

func (s *stubResolver) PrepareForCart(_ context.Context, product domain.Product, _ map[string]any) ([]domain.CartCandidate, error) {
	s.gotProduct = product
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

type stubAssociated struct {
	products []domain.Product
	calls    int
}

func (s *stubAssociated) InStockAssociatedProducts(context.Context, domain.Product) ([]domain.Product, error) {
	s.calls++
	return s.products, nil
}

type stubCountries struct {
	countries []domain.Country
}

func (s *stubCountries) Countries(context.Context) ([]domain.Country, error) {
	return s.countries, nil
}

type stubSession struct {
	currency string
}

func (s *stubSession) SessionID(context.Context) string { return "sess-1" }

func (s *stubSession) CurrencyCode(context.Context, int64) (string, error) {
	return s.currency, nil
}

type optionsFixture struct {
	service    *ProductOptionsService
	store      *memory.ConfigStore
	client     *stubAuthClient
	resolver   *stubResolver
	associated *stubAssociated
}

func newOptionsFixture(t *testing.T, products map[int64]domain.Product, resolver *stubResolver) *optionsFixture {
	t.Helper()

	store := memory.NewConfigStore()
	gateway, err := NewConfigGateway(ConfigGatewayDeps{Store: store})
	if err != nil {
		t.Fatalf("NewConfigGateway returned error: %v", err)
	}

	client := &stubAuthClient{envelope: domain.TokenEnvelope{
		Token: signToken(t, testAPIKey, "pub-fresh", testAuthCode, testNow, testNow.Add(24*time.Hour)),
	}}
	tokens, err := NewTokenService(TokenServiceDeps{
		Gateway:   gateway,
		Client:    client,
		Stores:    testDirectory(),
		Clock:     func() time.Time { return testNow },
		KeyPrefix: testPrefix,
	})
	if err != nil {
		t.Fatalf("NewTokenService returned error: %v", err)
	}

	mapper, err := NewMapperService(MapperServiceDeps{
		Gateway:   gateway,
		Stores:    testDirectory(),
		Groups:    &stubGroups{codes: map[int64]string{0: "NOT LOGGED IN"}},
		KeyPrefix: testPrefix,
	})
	if err != nil {
		t.Fatalf("NewMapperService returned error: %v", err)
	}

	associated := &stubAssociated{}
	service, err := NewProductOptionsService(ProductOptionsServiceDeps{
		Gateway:    gateway,
		Tokens:     tokens,
		Mapper:     mapper,
		Products:   &stubProducts{products: products},
		Resolver:   resolver,
		Associated: associated,
		Countries: &stubCountries{countries: []domain.Country{
			{Code: "US", Name: "United States", Regions: []domain.Region{{Code: "CA", Name: "California"}}},
			{Code: "GB", Name: "United Kingdom"},
		}},
		Session:   &stubSession{currency: "USD"},
		KeyPrefix: testPrefix,
		Page: PageConfig{
			JSBundleURL:       "https://cdn.example.test/shq.js",
			CSSBundleURL:      "https://cdn.example.test/shq.css",
			MaximumAllowedQty: 10000,
		},
		PostCodes: PostcodeRules{"US": `^[0-9]{5}$`},
	})
	if err != nil {
		t.Fatalf("NewProductOptionsService returned error: %v", err)
	}
	return &optionsFixture{service: service, store: store, client: client, resolver: resolver, associated: associated}
}

func simpleProductSet() map[int64]domain.Product {
	return map[int64]domain.Product{
		100: {ID: 100, SKU: "plain", TypeID: domain.ProductTypeSimple, Price: 10, Weight: 1},
		200: {ID: 200, SKU: "grouped", TypeID: domain.ProductTypeGrouped},
	}
}

func TestOptionsLiteVariant(t *testing.T) {
	resolver := &stubResolver{candidates: []domain.CartCandidate{
		{Item: domain.LineItem{SKU: "plain", Qty: 2, ProductType: domain.ProductTypeSimple, Product: domain.Product{ID: 100}}},
	}}
	f := newOptionsFixture(t, simpleProductSet(), resolver)
	f.store.Seed(domain.ScopeDefault, 0, map[string]string{
		testPrefix + "/public_token": "pub-1",
		testPrefix + "/secret_token": signToken(t, testAPIKey, "pub-1", testAuthCode, testNow, testNow.Add(24*time.Hour)),
		testPrefix + "/api_key":      testAPIKey,
		testPrefix + "/password":     testAuthCode,
	})

	out, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{
		ProductID: 100,
		StoreID:   10,
		Variant:   VariantLite,
	})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if out.SessionID == "" {
		t.Fatal("session id must be populated")
	}
	if out.PublicToken != "pub-1" {
		t.Fatalf("public token = %q, want pub-1", out.PublicToken)
	}
	if out.Cart == nil || len(out.Cart.Items) != 1 || out.Cart.Items[0].SKU != "plain" {
		t.Fatalf("cart = %#v", out.Cart)
	}
	if out.Cart.Items[0].ItemID != 100 {
		t.Fatalf("item id = %d, want the candidate's product id", out.Cart.Items[0].ItemID)
	}
	if out.CartError != "" {
		t.Fatalf("cart error = %q, want empty", out.CartError)
	}
	if out.QuoteCurrencyCode != "USD" {
		t.Fatalf("currency = %q, want USD", out.QuoteCurrencyCode)
	}
	if out.Countries != "" || out.PostCodes != "" {
		t.Fatal("lite variant must not carry reference data")
	}
}

func TestOptionsFullVariantCarriesReferenceData(t *testing.T) {
	resolver := &stubResolver{}
	f := newOptionsFixture(t, simpleProductSet(), resolver)

	out, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{
		ProductID: 100,
		StoreID:   10,
		Variant:   VariantFull,
	})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}

	var countries []any
	if err := json.Unmarshal([]byte(out.Countries), &countries); err != nil {
		t.Fatalf("countries not valid JSON: %v", err)
	}
	if len(countries) != 2 {
		t.Fatalf("countries = %d entries, want 2", len(countries))
	}
	us := countries[0].([]any)
	if us[0] != "US" || us[1] != "United States" || len(us) != 3 {
		t.Fatalf("US entry = %#v, want [code, name, regions]", us)
	}
	gb := countries[1].([]any)
	if len(gb) != 2 {
		t.Fatalf("GB entry = %#v, want no regions element", gb)
	}

	if !strings.Contains(out.PostCodes, "US") {
		t.Fatalf("postcodes = %q, want US rule present", out.PostCodes)
	}
}

func TestOptionsCartResolutionErrorIsSoft(t *testing.T) {
	resolver := &stubResolver{err: &domain.CartResolutionError{Reason: "You need to choose options for your item."}}
	f := newOptionsFixture(t, simpleProductSet(), resolver)

	out, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{
		ProductID: 100,
		StoreID:   10,
	})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if out.Cart != nil {
		t.Fatal("cart must be absent when resolution fails")
	}
	if out.CartError != "You need to choose options for your item." {
		t.Fatalf("cart error = %q", out.CartError)
	}
}

func TestOptionsUnknownProduct(t *testing.T) {
	f := newOptionsFixture(t, simpleProductSet(), &stubResolver{})

	_, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{ProductID: 999, StoreID: 10})
	if !errors.Is(err, ErrOptionsInvalidInput) {
		t.Fatalf("err = %v, want ErrOptionsInvalidInput", err)
	}
}

func TestOptionsGroupedPrefetchesAssociated(t *testing.T) {
	resolver := &stubResolver{}
	f := newOptionsFixture(t, simpleProductSet(), resolver)
	f.associated.products = []domain.Product{{ID: 201, SKU: "child", InStock: true, Visible: true}}

	if _, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{ProductID: 200, StoreID: 10}); err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if f.associated.calls != 1 {
		t.Fatalf("associated loader calls = %d, want 1", f.associated.calls)
	}
	if len(resolver.gotProduct.Associated) != 1 || resolver.gotProduct.Associated[0].SKU != "child" {
		t.Fatalf("resolver product associated = %#v", resolver.gotProduct.Associated)
	}
}

func TestOptionsNestsChildCandidates(t *testing.T) {
	resolver := &stubResolver{candidates: []domain.CartCandidate{
		{Item: domain.LineItem{SKU: "conf", Qty: 1, ProductType: domain.ProductTypeConfigurable, Product: domain.Product{ID: 100}}},
		{Item: domain.LineItem{SKU: "conf-red", Qty: 1, ProductType: domain.ProductTypeSimple, Product: domain.Product{ID: 101}}, ParentProductID: 100},
	}}
	f := newOptionsFixture(t, simpleProductSet(), resolver)

	out, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{ProductID: 100, StoreID: 10})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if out.Cart == nil || len(out.Cart.Items) != 1 {
		t.Fatalf("cart = %#v, want one top-level item", out.Cart)
	}
	parent := out.Cart.Items[0]
	if len(parent.Items) != 1 || parent.Items[0].SKU != "conf-red" {
		t.Fatalf("child nesting wrong: %#v", parent)
	}
}

func TestOptionsSelfHealsMissingPublicToken(t *testing.T) {
	resolver := &stubResolver{}
	f := newOptionsFixture(t, simpleProductSet(), resolver)
	f.store.Seed(domain.ScopeDefault, 0, map[string]string{
		testPrefix + "/api_key":  testAPIKey,
		testPrefix + "/password": testAuthCode,
	})

	out, err := f.service.Options(context.Background(), DefaultScope(), OptionsRequest{ProductID: 100, StoreID: 10})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if f.client.calls != 1 {
		t.Fatalf("auth client calls = %d, want a healing fetch", f.client.calls)
	}
	if out.PublicToken != "pub-fresh" {
		t.Fatalf("public token = %q, want pub-fresh", out.PublicToken)
	}
}

func TestSettingsBlob(t *testing.T) {
	f := newOptionsFixture(t, simpleProductSet(), &stubResolver{})
	f.store.Seed(domain.ScopeDefault, 0, map[string]string{
		"general/country/default":         "US",
		testPrefix + "/graphql_url":       "https://api.example.test/graphql",
		testPrefix + "/environment_scope": "LIVE",
	})

	settings, err := f.service.Settings(context.Background(), DefaultScope(), 100)
	if err != nil {
		t.Fatalf("Settings returned error: %v", err)
	}
	if settings.DefaultCountry != "US" {
		t.Fatalf("default country = %q", settings.DefaultCountry)
	}
	if settings.Endpoint != "https://api.example.test/graphql" {
		t.Fatalf("endpoint = %q", settings.Endpoint)
	}
	if settings.Scope != "LIVE" {
		t.Fatalf("scope = %q", settings.Scope)
	}
	if settings.ProductID != "100" {
		t.Fatalf("product id = %q, want \"100\"", settings.ProductID)
	}
	if settings.MaximumAllowedQty != 10000 {
		t.Fatalf("max qty = %d", settings.MaximumAllowedQty)
	}
	if settings.JSBundleURL == "" || settings.CSSBundleURL == "" {
		t.Fatal("bundle urls must come from page config")
	}
}
