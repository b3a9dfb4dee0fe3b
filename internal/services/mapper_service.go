package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	domain "github.com/shipperhq/productpage-api/internal/domain"
	"github.com/shipperhq/productpage-api/internal/repositories"
)

const (
	useDefaultSentinel = "--- Use Default ---"
	dimGroupAttribute  = "shipperhq_dim_group"

	pathExtensionVersion = "extension_version"
	pathPlatformVersion  = "platform_version"
	pathDiscountTaxFlag  = "tax/calculation/discount_tax"
)

// conditionalDims are omitted when the product belongs to a dimension group;
// the group supplies those values remotely.
var conditionalDims = []string{
	"shipperhq_poss_boxes",
	"shipperhq_volume_weight",
	"ship_box_tolerance",
	"ship_separately",
}

// stdAttributeNames are the shipping attributes forwarded with every item.
var stdAttributeNames = []string{
	"shipperhq_shipping_group",
	"shipperhq_warehouse",
	"shipperhq_post_shipping_group",
	"shipperhq_location",
	"shipperhq_royal_mail_group",
	"shipperhq_shipping_qty",
	"shipperhq_shipping_fee",
	"shipperhq_additional_price",
	"freight_class",
	"shipperhq_nmfc_class",
	"shipperhq_nmfc_sub",
	"shipperhq_handling_fee",
	"shipperhq_carrier_code",
	"shipperhq_volume_weight",
	"shipperhq_declared_value",
	"ship_separately",
	"shipperhq_dim_group",
	"shipperhq_poss_boxes",
	"shipperhq_master_boxes",
	"ship_box_tolerance",
	"must_ship_freight",
	"packing_section_name",
	"ship_height",
	"ship_length",
	"ship_width",
}

// MapperServiceDeps bundles the mapper's collaborators.
type MapperServiceDeps struct {
	Gateway *ConfigGateway
	Stores  repositories.StoreDirectory
	Groups  CustomerGroupDirectory
	Logger  *zap.Logger

	// KeyPrefix is the config section holding the carrier settings.
	KeyPrefix string
	// PlatformName and PlatformEdition make up the ecommerce cart label,
	// e.g. "Magento 2" + "Community".
	PlatformName    string
	PlatformEdition string
}

// MapperService normalises platform carts into the rating service schema.
type MapperService struct {
	gateway         *ConfigGateway
	stores          repositories.StoreDirectory
	groups          CustomerGroupDirectory
	logger          *zap.Logger
	keyPrefix       string
	platformName    string
	platformEdition string
	labelPolicy     *bluemonday.Policy
}

// NewMapperService validates deps and constructs a MapperService.
func NewMapperService(deps MapperServiceDeps) (*MapperService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("mapper service: config gateway is required")
	}
	if deps.Stores == nil {
		return nil, errors.New("mapper service: store directory is required")
	}
	if deps.Groups == nil {
		return nil, errors.New("mapper service: customer group directory is required")
	}
	if deps.KeyPrefix == "" {
		return nil, errors.New("mapper service: key prefix is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.PlatformName == "" {
		deps.PlatformName = "Magento 2"
	}
	return &MapperService{
		gateway:         deps.Gateway,
		stores:          deps.Stores,
		groups:          deps.Groups,
		logger:          deps.Logger,
		keyPrefix:       deps.KeyPrefix,
		platformName:    deps.PlatformName,
		platformEdition: deps.PlatformEdition,
		labelPolicy:     bluemonday.StrictPolicy(),
	}, nil
}

// MapRatingInfo assembles the full rate request for a preview cart.
func (m *MapperService) MapRatingInfo(ctx context.Context, scope Scope, query domain.RateQuery, remoteIP string) (domain.RatingInfo, error) {
	cart, err := m.MapCart(ctx, scope, query)
	if err != nil {
		return domain.RatingInfo{}, err
	}
	customer, err := m.mapCustomer(ctx, query.Items)
	if err != nil {
		return domain.RatingInfo{}, err
	}
	site, err := m.SiteDetails(ctx, scope, query.StoreID, remoteIP)
	if err != nil {
		return domain.RatingInfo{}, err
	}
	return domain.RatingInfo{
		Cart:        cart,
		Destination: mapDestination(query),
		Customer:    customer,
		Type:        "STD",
		SiteDetails: site,
	}, nil
}

// MapCart normalises the query's line items into the cart schema. Children of
// configurable and bundle lines nest under their parent; grouped children are
// already top-level lines and stay that way.
func (m *MapperService) MapCart(ctx context.Context, scope Scope, query domain.RateQuery) (domain.RMSCart, error) {
	discountTax, err := m.gateway.Flag(ctx, pathDiscountTaxFlag, scope)
	if err != nil {
		return domain.RMSCart{}, err
	}

	packageValue := query.PackageValue
	if packageValue == 0 {
		packageValue = query.PackageValueWithDiscount
	}

	children := make(map[int64][]domain.LineItem)
	for _, item := range query.Items {
		if item.ParentID != 0 {
			children[item.ParentID] = append(children[item.ParentID], item)
		}
	}

	var items []domain.RMSItem
	for _, item := range query.Items {
		if item.ParentID != 0 {
			continue
		}
		mapped := m.mapItem(item, discountTax)
		switch item.ProductType {
		case domain.ProductTypeConfigurable, domain.ProductTypeBundle:
			for _, child := range children[item.ID] {
				mapped.Items = append(mapped.Items, m.mapItem(child, discountTax))
			}
		}
		items = append(items, mapped)
	}

	return domain.RMSCart{
		Items:        items,
		PackageValue: packageValue,
		FreeShipping: query.FreeShipping,
	}, nil
}

// mapItem normalises a single line. Fractional quantities below one round up
// to a whole unit with the weight scaled down to compensate, so the packed
// weight stays truthful.
func (m *MapperService) mapItem(item domain.LineItem, discountTax bool) domain.RMSItem {
	discount := item.DiscountAmount
	baseDiscount := item.BaseDiscountAmount
	if discountTax && item.TaxPercent > 0 {
		discount = round2(discount / (item.TaxPercent/100 + 1))
		baseDiscount = round2(baseDiscount / (item.TaxPercent/100 + 1))
	}

	realQty := item.Qty
	qty := realQty
	weight := item.Weight
	if realQty > 0 && realQty < 1 {
		qty = 1
		weight = weight * realQty
		m.logger.Info("rounding fractional quantity up to one unit",
			zap.String("sku", item.SKU),
			zap.Float64("weight", weight))
	}

	out := domain.RMSItem{
		ItemID:       item.ID,
		SKU:          item.SKU,
		Name:         item.Name,
		StorePrice:   item.Price,
		Weight:       weight,
		Qty:          qty,
		Type:         strings.ToUpper(item.ProductType),
		TaxInclPrice: item.PriceInclTax,
		FreeShipping: item.FreeShipping,
		FixedPrice:   item.Product.PriceTypeFixed,
		FixedWeight:  item.Product.WeightIsFixed,
	}

	nonBaseCurrency := item.BasePrice != item.Price
	if nonBaseCurrency {
		out.BasePrice = ptr(item.BasePrice)
		out.TaxInclBasePrice = ptr(item.BasePriceInclTax)
	}

	if discount > 0 || baseDiscount > 0 {
		out.DiscountPercent = ptr(item.DiscountPercent)
		out.DiscountedStorePrice = ptr(item.Price - discount/realQty)
		out.DiscountedTaxInclStorePrice = ptr(item.Price - discount/realQty + item.TaxAmount/realQty)
		if nonBaseCurrency {
			out.DiscountedBasePrice = ptr(item.BasePrice - baseDiscount/realQty)
			out.DiscountedTaxInclBasePrice = ptr(item.BasePrice - baseDiscount/realQty + item.BaseTaxAmount/realQty)
		}
	}

	out.Attributes = m.mapItemAttributes(item.Product)
	return out
}

// mapItemAttributes collects the shipping attributes forwarded with an item.
// Values holding the storefront's use-default sentinel are dropped, and
// products in a dimension group omit the per-product packing dimensions.
func (m *MapperService) mapItemAttributes(product domain.Product) []domain.RMSAttribute {
	names := stdAttributeNames
	if attr, ok := product.Attribute(dimGroupAttribute); ok && m.attributeValue(attr) != "" {
		names = excluding(stdAttributeNames, conditionalDims)
	}

	var out []domain.RMSAttribute
	for _, name := range names {
		attr, ok := product.Attribute(name)
		if !ok {
			continue
		}
		value := m.attributeValue(attr)
		if value == "" || strings.Contains(value, useDefaultSentinel) {
			continue
		}
		out = append(out, domain.RMSAttribute{Name: name, Value: value})
	}
	return out
}

// attributeValue resolves an attribute to its transmitted string form.
// Select and multiselect attributes use their admin-scope option labels,
// stripped of markup, entity-decoded, and joined with '#'.
func (m *MapperService) attributeValue(attr domain.ProductAttribute) string {
	if attr.FrontendInput != "select" && attr.FrontendInput != "multiselect" {
		return attr.RawValue
	}
	var labels []string
	for _, optionID := range strings.Split(attr.RawValue, ",") {
		label, ok := attr.OptionLabels[optionID]
		if !ok || label == "" {
			continue
		}
		labels = append(labels, html.UnescapeString(m.labelPolicy.Sanitize(label)))
	}
	return strings.Join(labels, "#")
}

func mapDestination(query domain.RateQuery) domain.RMSDestination {
	street := strings.Split(query.DestStreet, "\n")
	street1 := street[0]
	street2 := strings.Join(street[1:], " ")
	return domain.RMSDestination{
		Country:  query.DestCountry,
		Region:   query.DestRegion,
		City:     query.DestCity,
		Street:   street1,
		Street2:  street2,
		Postcode: query.DestPostcode,
	}
}

// mapCustomer resolves the buyer's group code from the first line's quote.
// An empty cart maps to the guest group.
func (m *MapperService) mapCustomer(ctx context.Context, items []domain.LineItem) (domain.RMSCustomer, error) {
	var groupID int64
	if len(items) > 0 {
		groupID = items[0].CustomerGroupID
	}
	code, err := m.groups.GroupCode(ctx, groupID)
	if err != nil {
		return domain.RMSCustomer{}, fmt.Errorf("mapper: resolve customer group %d: %w", groupID, err)
	}
	return domain.RMSCustomer{CustomerGroup: code}, nil
}

// SiteDetails describes the storefront for the rating service. Requests
// arriving with a remote address are flagged as enhanced checkout traffic;
// the admin path carries the bare platform label.
func (m *MapperService) SiteDetails(ctx context.Context, scope Scope, storeID int64, remoteIP string) (domain.RMSSiteDetails, error) {
	store, err := m.stores.Store(ctx, storeID)
	if err != nil {
		return domain.RMSSiteDetails{}, fmt.Errorf("mapper: resolve store %d: %w", storeID, err)
	}

	appVersion, err := m.gateway.Value(ctx, m.keyPrefix+"/"+pathExtensionVersion, scope)
	if err != nil {
		return domain.RMSSiteDetails{}, err
	}
	platformVersion, err := m.gateway.Value(ctx, m.keyPrefix+"/"+pathPlatformVersion, scope)
	if err != nil {
		return domain.RMSSiteDetails{}, err
	}

	cart := strings.TrimSpace(m.platformName + " " + m.platformEdition)
	if remoteIP != "" {
		cart += " Enhanced Checkout"
	}

	return domain.RMSSiteDetails{
		AppVersion:       appVersion,
		EcommerceCart:    cart,
		EcommerceVersion: platformVersion,
		WebsiteURL:       store.BaseURL,
		IPAddress:        remoteIP,
	}, nil
}

func excluding(names, drop []string) []string {
	dropped := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		dropped[d] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, skip := dropped[n]; skip {
			continue
		}
		out = append(out, n)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}
