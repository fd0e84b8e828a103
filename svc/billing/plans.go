package billing

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// amountEpsilon absorbs floating-point rounding at band boundaries, so a
// charge of 198.99 still lands on the 199 plan.
const amountEpsilon = 0.01

// Plan is a priced tier in the catalog. Price is in major currency units.
type Plan struct {
	Tier  PlanTier `yaml:"tier"`
	Name  string   `yaml:"name"`
	Price float64  `yaml:"price"`
}

// Catalog maps paid amounts to plan tiers using descending price bands.
type Catalog struct {
	plans []Plan // sorted by price, highest first
}

// DefaultCatalog returns the ReconcileBook pricing as shipped: starter $29,
// professional $79, enterprise $199 per month.
func DefaultCatalog() Catalog {
	c, err := NewCatalog(
		Plan{Tier: TierEnterprise, Name: "Enterprise", Price: 199},
		Plan{Tier: TierProfessional, Name: "Professional", Price: 79},
		Plan{Tier: TierStarter, Name: "Starter", Price: 29},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog builds a catalog from the given plans. At least one plan is
// required, prices must be positive and tiers unique.
func NewCatalog(plans ...Plan) (Catalog, error) {
	if len(plans) == 0 {
		return Catalog{}, fmt.Errorf("%w: at least one plan is required", ErrInvalidCatalog)
	}

	seen := make(map[PlanTier]bool, len(plans))
	for _, p := range plans {
		if p.Tier == "" {
			return Catalog{}, fmt.Errorf("%w: plan tier is required", ErrInvalidCatalog)
		}
		if p.Price <= 0 {
			return Catalog{}, fmt.Errorf("%w: plan %s has non-positive price %.2f", ErrInvalidCatalog, p.Tier, p.Price)
		}
		if seen[p.Tier] {
			return Catalog{}, fmt.Errorf("%w: duplicate tier %s", ErrInvalidCatalog, p.Tier)
		}
		seen[p.Tier] = true
	}

	sorted := make([]Plan, len(plans))
	copy(sorted, plans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })

	return Catalog{plans: sorted}, nil
}

// LoadCatalog reads a plan catalog from a YAML file:
//
//	plans:
//	  - tier: enterprise
//	    name: Enterprise
//	    price: 199
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	return NewCatalog(doc.Plans...)
}

// Classify maps a paid amount in major currency units to a plan tier.
// Bands are checked highest first with a small epsilon tolerance. Amounts
// below the lowest band (including zero and negative) fall through to the
// lowest tier; anomalous is true so the caller can log them. This permissive
// fallback is deliberate: a captured payment is never rejected over an
// unexpected amount.
func (c Catalog) Classify(amount float64) (tier PlanTier, anomalous bool) {
	// A zero-value Catalog has no bands; classify against the defaults.
	if len(c.plans) == 0 {
		return DefaultCatalog().Classify(amount)
	}
	for _, p := range c.plans {
		if amount >= p.Price-amountEpsilon {
			return p.Tier, false
		}
	}
	return c.plans[len(c.plans)-1].Tier, true
}

// Plans returns the catalog contents, highest price first.
func (c Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
