package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

// OptionsVariant selects how much reference data rides along with the cart.
type OptionsVariant string

const (
	// VariantLite returns the cart and tokens only.
	VariantLite OptionsVariant = "lite"
	// VariantFull additionally carries the country list and postcode rules.
	VariantFull OptionsVariant = "full"
)

const (
	pathEnvironmentScope = "environment_scope"
	pathDefaultCountry   = "general/country/default"
)

// ErrOptionsInvalidInput rejects malformed product options requests.
var ErrOptionsInvalidInput = errors.New("product options: invalid input")

// PageSettings is the storefront bootstrap blob embedded on the product page.
type PageSettings struct {
	DefaultCountry    string `json:"defaultCountry"`
	Endpoint          string `json:"endpoint"`
	Scope             string `json:"scope"`
	JSBundleURL       string `json:"jsBundleUrl"`
	CSSBundleURL      string `json:"cssBundleUrl"`
	ProductID         string `json:"productId"`
	MaximumAllowedQty int    `json:"maximumAllowedQty"`
}

// PageConfig carries the static page settings shared by every product.
type PageConfig struct {
	JSBundleURL       string
	CSSBundleURL      string
	MaximumAllowedQty int
}

// PostcodeRules maps country codes to their postcode validation patterns.
type PostcodeRules map[string]string

// ProductOptionsServiceDeps bundles the orchestrator's collaborators.
type ProductOptionsServiceDeps struct {
	Gateway    *ConfigGateway
	Tokens     *TokenService
	Mapper     *MapperService
	Products   ProductRepository
	Resolver   CandidateResolver
	Associated AssociatedProductLoader
	Countries  CountryDirectory
	Session    QuoteSession
	Logger     *zap.Logger

	KeyPrefix string
	Page      PageConfig
	PostCodes PostcodeRules
}

// ProductOptionsService assembles the product page payloads: the preview cart
// with its tokens and reference data, and the page bootstrap settings.
type ProductOptionsService struct {
	gateway    *ConfigGateway
	tokens     *TokenService
	mapper     *MapperService
	products   ProductRepository
	resolver   CandidateResolver
	associated AssociatedProductLoader
	countries  CountryDirectory
	session    QuoteSession
	logger     *zap.Logger
	keyPrefix  string
	page       PageConfig
	postCodes  PostcodeRules
}

// NewProductOptionsService validates deps and constructs the orchestrator.
func NewProductOptionsService(deps ProductOptionsServiceDeps) (*ProductOptionsService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("product options: config gateway is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("product options: token service is required")
	}
	if deps.Mapper == nil {
		return nil, errors.New("product options: mapper service is required")
	}
	if deps.Products == nil {
		return nil, errors.New("product options: product repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("product options: candidate resolver is required")
	}
	if deps.Associated == nil {
		return nil, errors.New("product options: associated product loader is required")
	}
	if deps.Countries == nil {
		return nil, errors.New("product options: country directory is required")
	}
	if deps.Session == nil {
		return nil, errors.New("product options: quote session is required")
	}
	if deps.KeyPrefix == "" {
		return nil, errors.New("product options: key prefix is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ProductOptionsService{
		gateway:    deps.Gateway,
		tokens:     deps.Tokens,
		mapper:     deps.Mapper,
		products:   deps.Products,
		resolver:   deps.Resolver,
		associated: deps.Associated,
		countries:  deps.Countries,
		session:    deps.Session,
		logger:     deps.Logger,
		keyPrefix:  deps.KeyPrefix,
		page:       deps.Page,
		postCodes:  deps.PostCodes,
	}, nil
}

// OptionsRequest is one product options call.
type OptionsRequest struct {
	ProductID  int64
	StoreID    int64
	Variant    OptionsVariant
	BuyRequest map[string]any
}

// Options builds the preview cart payload for a product and its selected
// options. A cart that cannot be resolved is not an error: the payload
// carries the user-facing reason instead of a cart.
func (s *ProductOptionsService) Options(ctx context.Context, scope Scope, req OptionsRequest) (domain.ProductOptions, error) {
	if req.ProductID <= 0 {
		return domain.ProductOptions{}, fmt.Errorf("%w: product id is required", ErrOptionsInvalidInput)
	}
	if req.Variant == "" {
		req.Variant = VariantLite
	}

	product, err := s.products.ByID(ctx, req.ProductID, req.StoreID)
	if err != nil {
		if errors.Is(err, repositories.ErrNoSuchProduct) {
			return domain.ProductOptions{}, fmt.Errorf("%w: product %d", ErrOptionsInvalidInput, req.ProductID)
		}
		return domain.ProductOptions{}, fmt.Errorf("product options: load product %d: %w", req.ProductID, err)
	}

	publicToken, err := s.tokens.PublicToken(ctx, scope)
	if err != nil {
		return domain.ProductOptions{}, err
	}

	out := domain.ProductOptions{
		SessionID:   s.session.SessionID(ctx),
		PublicToken: publicToken,
	}

	cart, resolutionErr, err := s.previewCart(ctx, scope, product, req.BuyRequest)
	if err != nil {
		return domain.ProductOptions{}, err
	}
	if resolutionErr != nil {
		out.CartError = resolutionErr.Reason
	} else {
		out.Cart = &cart
	}

	currency, err := s.session.CurrencyCode(ctx, req.StoreID)
	if err != nil {
		return domain.ProductOptions{}, fmt.Errorf("product options: resolve currency: %w", err)
	}
	out.QuoteCurrencyCode = currency

	if req.Variant == VariantFull {
		countries, err := s.countryList(ctx)
		if err != nil {
			return domain.ProductOptions{}, err
		}
		out.Countries = countries
		postCodes, err := json.Marshal(s.postCodes)
		if err != nil {
			return domain.ProductOptions{}, fmt.Errorf("product options: encode postcodes: %w", err)
		}
		out.PostCodes = string(postCodes)
	}
	return out, nil
}

// previewCart expands the buy request into cart candidates and maps them.
// A *domain.CartResolutionError in the second return means the shopper has
// not finished selecting options; infrastructure failures use the third.
func (s *ProductOptionsService) previewCart(ctx context.Context, scope Scope, product domain.Product, buyRequest map[string]any) (domain.RMSCart, *domain.CartResolutionError, error) {
	if product.TypeID == domain.ProductTypeGrouped {
		associated, err := s.associated.InStockAssociatedProducts(ctx, product)
		if err != nil {
			return domain.RMSCart{}, nil, fmt.Errorf("product options: load associated products: %w", err)
		}
		product.Associated = associated
	}

	candidates, err := s.resolver.PrepareForCart(ctx, product, buyRequest)
	if err != nil {
		var resolution *domain.CartResolutionError
		if errors.As(err, &resolution) {
			return domain.RMSCart{}, resolution, nil
		}
		return domain.RMSCart{}, nil, fmt.Errorf("product options: resolve cart candidates: %w", err)
	}

	discountTax, err := s.gateway.Flag(ctx, pathDiscountTaxFlag, scope)
	if err != nil {
		return domain.RMSCart{}, nil, err
	}

	// Child candidates of composite products nest under the first top-level
	// item; a preview cart holds one composite at most.
	var items []domain.RMSItem
	var children []domain.RMSItem
	for _, candidate := range candidates {
		mapped := s.mapper.mapItem(candidate.Item, discountTax)
		mapped.ItemID = candidate.Item.Product.ID
		if candidate.ParentProductID != 0 {
			children = append(children, mapped)
			continue
		}
		items = append(items, mapped)
	}
	if len(children) > 0 && len(items) > 0 {
		items[0].Items = append(items[0].Items, children...)
	}

	return domain.RMSCart{Items: items, PackageValue: 0, FreeShipping: false}, nil, nil
}

// Settings builds the page bootstrap blob for one product.
func (s *ProductOptionsService) Settings(ctx context.Context, scope Scope, productID int64) (PageSettings, error) {
	if productID <= 0 {
		return PageSettings{}, fmt.Errorf("%w: product id is required", ErrOptionsInvalidInput)
	}

	defaultCountry, err := s.gateway.Value(ctx, pathDefaultCountry, scope)
	if err != nil {
		return PageSettings{}, err
	}
	endpoint, err := s.gateway.Value(ctx, s.keyPrefix+"/"+pathGraphQLURL, scope)
	if err != nil {
		return PageSettings{}, err
	}
	envScope, err := s.gateway.Value(ctx, s.keyPrefix+"/"+pathEnvironmentScope, scope)
	if err != nil {
		return PageSettings{}, err
	}

	return PageSettings{
		DefaultCountry:    defaultCountry,
		Endpoint:          endpoint,
		Scope:             envScope,
		JSBundleURL:       s.page.JSBundleURL,
		CSSBundleURL:      s.page.CSSBundleURL,
		ProductID:         strconv.FormatInt(productID, 10),
		MaximumAllowedQty: s.page.MaximumAllowedQty,
	}, nil
}

// countryList serialises the directory into the compact wire shape: each
// entry is [code, name] with an optional third element of [code, name] region
// pairs.
func (s *ProductOptionsService) countryList(ctx context.Context) (string, error) {
	countries, err := s.countries.Countries(ctx)
	if err != nil {
		return "", fmt.Errorf("product options: list countries: %w", err)
	}

	entries := make([]any, 0, len(countries))
	for _, c := range countries {
		entry := []any{c.Code, c.Name}
		if len(c.Regions) > 0 {
			regions := make([][]string, 0, len(c.Regions))
			for _, r := range c.Regions {
				regions = append(regions, []string{r.Code, r.Name})
			}
			entry = append(entry, regions)
		}
		entries = append(entries, entry)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("product options: encode countries: %w", err)
	}
	return string(raw), nil
}
