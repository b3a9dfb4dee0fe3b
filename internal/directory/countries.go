// Package directory supplies the country and region reference data offered
// in the destination selector.
package directory

import (
	"context"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	domain "github.com/shipperhq/productpage-api/internal/domain"
)

// Countries enumerates every ISO 3166-1 country with English display names.
// Region subdivisions are attached from the optional overrides, since the
// platform only ships subdivision lists for a handful of countries.
type Countries struct {
	regions map[string][]domain.Region
	list    []domain.Country
}

// Option configures a Countries directory.
type Option func(*Countries)

// WithRegions attaches subdivision lists keyed by country code.
func WithRegions(regions map[string][]domain.Region) Option {
	return func(c *Countries) {
		c.regions = regions
	}
}

// NewCountries builds the directory once; lookups afterwards are allocation
// free.
func NewCountries(opts ...Option) *Countries {
	c := &Countries{regions: map[string][]domain.Region{}}
	for _, opt := range opts {
		opt(c)
	}
	c.list = c.build()
	return c
}

func (c *Countries) build() []domain.Country {
	namer := display.English.Regions()
	seen := make(map[string]struct{})
	var out []domain.Country

	for _, a := range twoLetterCodes() {
		region, err := language.ParseRegion(a)
		if err != nil || !region.IsCountry() {
			continue
		}
		code := region.String()
		if _, dup := seen[code]; dup {
			continue
		}
		name := namer.Name(region)
		if name == "" {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, domain.Country{
			Code:    code,
			Name:    name,
			Regions: c.regions[code],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Countries implements services.CountryDirectory.
func (c *Countries) Countries(context.Context) ([]domain.Country, error) {
	return append([]domain.Country(nil), c.list...), nil
}

// twoLetterCodes yields every candidate ISO code pair; ParseRegion filters
// the unassigned ones.
func twoLetterCodes() []string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	out := make([]string, 0, len(letters)*len(letters))
	for _, a := range letters {
		for _, b := range letters {
			out = append(out, string(a)+string(b))
		}
	}
	return out
}
