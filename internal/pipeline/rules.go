package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// maxMarginPct caps margin so the sell price formula stays finite.
const maxMarginPct = 99

// VolumeDiscount grants a percentage off at or above a quantity.
type VolumeDiscount struct {
	MinQty      int     `yaml:"min_qty"`
	DiscountPct float64 `yaml:"discount_pct"`
}

// Rules drives the pricing stage's local arithmetic.
type Rules struct {
	TaxRate          float64          `yaml:"tax_rate"`
	DefaultMarginPct float64          `yaml:"default_margin_pct"`
	VolumeDiscounts  []VolumeDiscount `yaml:"volume_discounts"`
}

// DefaultRules returns the standard commercial terms: 18% GST, 20%
// margin, and the 100/500/1000 unit discount tiers.
func DefaultRules() Rules {
	return Rules{
		TaxRate:          0.18,
		DefaultMarginPct: 20,
		VolumeDiscounts: []VolumeDiscount{
			{MinQty: 100, DiscountPct: 5},
			{MinQty: 500, DiscountPct: 10},
			{MinQty: 1000, DiscountPct: 15},
		},
	}
}

// LoadRules reads a YAML rules file. A missing path returns the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, eris.Wrapf(err, "pipeline: read pricing rules %s", path)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, eris.Wrap(err, "pipeline: parse pricing rules")
	}
	return rules, nil
}

// DiscountFor returns the discount percentage earned by qty.
func (r Rules) DiscountFor(qty int) float64 {
	var best float64
	for _, tier := range r.VolumeDiscounts {
		if qty > tier.MinQty && tier.DiscountPct > best {
			best = tier.DiscountPct
		}
	}
	return best
}

// SellPrice converts a base cost into a sell price at the given margin.
// Margin is clamped to maxMarginPct.
func SellPrice(baseCost, marginPct float64) float64 {
	if marginPct > maxMarginPct {
		marginPct = maxMarginPct
	}
	if marginPct < 0 {
		marginPct = 0
	}
	return baseCost / (1 - marginPct/100)
}
