package pricing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SlabCount is the number of weight slabs per table and of flat fallback rates.
const SlabCount = 6

// Slab is one weight band. A nil CommissionRate means the positional flat rate applies.
type Slab struct {
	WeightFrom     float64  `yaml:"weightFrom" json:"weightFrom"`
	WeightTo       float64  `yaml:"weightTo" json:"weightTo"`
	CommissionRate *float64 `yaml:"commissionRate,omitempty" json:"commissionRate,omitempty"`
}

// Handling is the per-commodity handling charge.
type Handling struct {
	Metro    float64 `yaml:"metroHandlingCharges" json:"metroHandlingCharges"`
	NonMetro float64 `yaml:"nonMetroHandlingCharges" json:"nonMetroHandlingCharges"`
}

// Config is the rate table the calculator runs against.
type Config struct {
	MetroSlabs    []Slab    `yaml:"metroSlabs" json:"metroSlabs"`
	NonMetroSlabs []Slab    `yaml:"nonMetroSlabs" json:"nonMetroSlabs"`
	FlatRates     []float64 `yaml:"flatRates" json:"flatRates"`

	// Insurance rates are percentages of the invoice value.
	MetroInsuranceRate    float64            `yaml:"metroInsuranceRate" json:"metroInsuranceRate"`
	NonMetroInsuranceRate float64            `yaml:"nonMetroInsuranceRate" json:"nonMetroInsuranceRate"`
	CustomInsuranceRates  map[string]float64 `yaml:"customInsuranceRates,omitempty" json:"customInsuranceRates,omitempty"`

	// Commodities maps commodity ID to its handling charge; unknown IDs use DefaultHandling.
	Commodities     map[string]Handling `yaml:"commodities,omitempty" json:"commodities,omitempty"`
	DefaultHandling Handling            `yaml:"defaultHandling" json:"defaultHandling"`

	MetroCities []string `yaml:"metroCities,omitempty" json:"metroCities,omitempty"`
	GSTRate     float64  `yaml:"gstRate" json:"gstRate"`
}

func rate(v float64) *float64 { return &v }

// DefaultConfig is the built-in table used when no PRICING_FILE is configured.
func DefaultConfig() Config {
	return Config{
		MetroSlabs: []Slab{
			{WeightFrom: 0, WeightTo: 500, CommissionRate: rate(0.15)},
			{WeightFrom: 501, WeightTo: 1000, CommissionRate: rate(0.12)},
			{WeightFrom: 1001, WeightTo: 2000, CommissionRate: rate(0.10)},
			{WeightFrom: 2001, WeightTo: 5000, CommissionRate: rate(0.09)},
			{WeightFrom: 5001, WeightTo: 10000, CommissionRate: rate(0.08)},
			{WeightFrom: 10001, WeightTo: 999999, CommissionRate: rate(0.07)},
		},
		NonMetroSlabs: []Slab{
			{WeightFrom: 0, WeightTo: 500, CommissionRate: rate(0.18)},
			{WeightFrom: 501, WeightTo: 1000},
			{WeightFrom: 1001, WeightTo: 2000, CommissionRate: rate(0.13)},
			{WeightFrom: 2001, WeightTo: 5000},
			{WeightFrom: 5001, WeightTo: 10000, CommissionRate: rate(0.10)},
			{WeightFrom: 10001, WeightTo: 999999, CommissionRate: rate(0.09)},
		},
		FlatRates:             []float64{0.20, 0.16, 0.14, 0.12, 0.11, 0.10},
		MetroInsuranceRate:    0.5,
		NonMetroInsuranceRate: 0.75,
		Commodities: map[string]Handling{
			"1": {Metro: 25, NonMetro: 35},
			"2": {Metro: 40, NonMetro: 55},
			"3": {Metro: 15, NonMetro: 20},
		},
		DefaultHandling: Handling{Metro: 25, NonMetro: 35},
		MetroCities: []string{
			"817", "706", "1127", "3659", "4460", "5583",
			"mumbai", "delhi", "new delhi", "bengaluru", "bangalore", "chennai", "hyderabad", "kolkata",
		},
		GSTRate: 0.18,
	}
}

// LoadFile reads a YAML rate table. Missing keys keep their default values.
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read pricing file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse pricing file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks table shape and rejects negative rates.
func (c Config) Validate() error {
	var errs []error
	if len(c.MetroSlabs) != SlabCount {
		errs = append(errs, fmt.Errorf("metroSlabs: want %d slabs, got %d", SlabCount, len(c.MetroSlabs)))
	}
	if len(c.NonMetroSlabs) != SlabCount {
		errs = append(errs, fmt.Errorf("nonMetroSlabs: want %d slabs, got %d", SlabCount, len(c.NonMetroSlabs)))
	}
	if len(c.FlatRates) != SlabCount {
		errs = append(errs, fmt.Errorf("flatRates: want %d rates, got %d", SlabCount, len(c.FlatRates)))
	}
	for name, slabs := range map[string][]Slab{"metroSlabs": c.MetroSlabs, "nonMetroSlabs": c.NonMetroSlabs} {
		for i, s := range slabs {
			if s.WeightTo < s.WeightFrom {
				errs = append(errs, fmt.Errorf("%s[%d]: weightTo < weightFrom", name, i))
			}
			if s.CommissionRate != nil && *s.CommissionRate < 0 {
				errs = append(errs, fmt.Errorf("%s[%d]: negative commissionRate", name, i))
			}
		}
	}
	for i, r := range c.FlatRates {
		if r < 0 {
			errs = append(errs, fmt.Errorf("flatRates[%d]: negative", i))
		}
	}
	if c.MetroInsuranceRate < 0 || c.NonMetroInsuranceRate < 0 {
		errs = append(errs, errors.New("insurance rates must be >= 0"))
	}
	for id, r := range c.CustomInsuranceRates {
		if r < 0 {
			errs = append(errs, fmt.Errorf("customInsuranceRates[%s]: negative", id))
		}
	}
	for id, h := range c.Commodities {
		if h.Metro < 0 || h.NonMetro < 0 {
			errs = append(errs, fmt.Errorf("commodities[%s]: negative handling charge", id))
		}
	}
	if c.DefaultHandling.Metro < 0 || c.DefaultHandling.NonMetro < 0 {
		errs = append(errs, errors.New("defaultHandling: negative handling charge"))
	}
	if c.GSTRate < 0 {
		errs = append(errs, errors.New("gstRate must be >= 0"))
	}
	return errors.Join(errs...)
}

// IsMetroCity reports whether a city ID or name is in the metro list.
func (c Config) IsMetroCity(city string) bool {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return false
	}
	for _, m := range c.MetroCities {
		if strings.ToLower(m) == city {
			return true
		}
	}
	return false
}
