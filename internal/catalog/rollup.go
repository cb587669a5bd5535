package catalog

// rollup.go derives a product's canonical sellable price and availability
// from its full set of supplier offers. Compute is a pure function: given
// the same offers, product fields and coefficient table it always produces
// the same rollup, so recomputing is idempotent and the stored fields can be
// re-derived for verification at any time.

import (
	"github.com/shopspring/decimal"
)

// Rollup holds the four derived product fields.
type Rollup struct {
	PublicPriceTTC    decimal.NullDecimal
	PublicPriceSource PriceSource
	AvailableQtyTotal int
	IsAvailable       bool
}

// Equal reports whether two rollups carry the same derived values.
func (r Rollup) Equal(other Rollup) bool {
	if r.PublicPriceSource != other.PublicPriceSource ||
		r.AvailableQtyTotal != other.AvailableQtyTotal ||
		r.IsAvailable != other.IsAvailable ||
		r.PublicPriceTTC.Valid != other.PublicPriceTTC.Valid {
		return false
	}
	if !r.PublicPriceTTC.Valid {
		return true
	}
	return r.PublicPriceTTC.Decimal.Equal(other.PublicPriceTTC.Decimal)
}

// RollupEngine reconciles competing supplier offers into one rollup using a
// fixed supplier priority cascade and a coefficient fallback.
type RollupEngine struct {
	priority []Supplier
}

// NewRollupEngine creates an engine with the given cascade order, defaulting
// to ALKOR, COMLANDI, SOFT.
func NewRollupEngine(priority []Supplier) *RollupEngine {
	if len(priority) == 0 {
		priority = DefaultSupplierPriority
	}
	return &RollupEngine{priority: priority}
}

// Compute reconciles offers into the product's canonical rollup:
//
//  1. Only active offers participate.
//  2. Walking the supplier priority list, the first supplier whose offer
//     carries a pvp_ttc sets the public price and the PVP_* source tag.
//  3. Otherwise the price falls back to cost_price_ht * (1 + vat/100) *
//     coefficient, looked up by (family, sub_family) then (family, "").
//  4. With neither a pvp nor a coefficient the product is non-sellable.
//
// Availability is independent of the price source: the total is the sum of
// active stock and the flag is true as soon as any active offer has stock.
func (e *RollupEngine) Compute(offers []SupplierOffer, product Product, coefficients []PricingCoefficient) Rollup {
	var r Rollup

	active := make([]SupplierOffer, 0, len(offers))
	for _, o := range offers {
		if o.IsActive {
			active = append(active, o)
		}
	}

	for _, o := range active {
		r.AvailableQtyTotal += o.StockQty
		if o.StockQty > 0 {
			r.IsAvailable = true
		}
	}

	for _, supplier := range e.priority {
		o, ok := bestOfferFor(active, supplier)
		if !ok || !o.PvpTTC.Valid {
			continue
		}
		r.PublicPriceTTC = o.PvpTTC
		r.PublicPriceSource = pvpSourceFor(supplier)
		return r
	}

	if price, ok := e.coefficientPrice(active, product, coefficients); ok {
		r.PublicPriceTTC = decimal.NullDecimal{Decimal: price, Valid: true}
		r.PublicPriceSource = SourceCoefficient
		return r
	}

	r.PublicPriceSource = SourceNone
	return r
}

// bestOfferFor selects a supplier's offer among possibly several references.
// Lowest priority_rank wins; ties break on the most recent updated_at.
func bestOfferFor(offers []SupplierOffer, supplier Supplier) (SupplierOffer, bool) {
	var best SupplierOffer
	found := false
	for _, o := range offers {
		if o.Supplier != supplier {
			continue
		}
		if !found ||
			o.PriorityRank < best.PriorityRank ||
			(o.PriorityRank == best.PriorityRank && o.UpdatedAt.After(best.UpdatedAt)) {
			best = o
			found = true
		}
	}
	return best, found
}

// coefficientPrice computes the fallback price when no active offer supplies
// a pvp_ttc. The VAT rate comes from the first active offer in priority
// order that carries one; without any VAT rate the price stays net.
func (e *RollupEngine) coefficientPrice(active []SupplierOffer, product Product, coefficients []PricingCoefficient) (decimal.Decimal, bool) {
	if !product.CostPriceHT.Valid {
		return decimal.Decimal{}, false
	}

	coef, ok := LookupCoefficient(coefficients, product.Family, product.SubFamily)
	if !ok {
		return decimal.Decimal{}, false
	}

	price := product.CostPriceHT.Decimal
	if vat, ok := e.vatRate(active); ok {
		hundred := decimal.NewFromInt(100)
		price = price.Mul(hundred.Add(vat)).Div(hundred)
	}
	return price.Mul(coef.Multiplier), true
}

func (e *RollupEngine) vatRate(active []SupplierOffer) (decimal.Decimal, bool) {
	for _, supplier := range e.priority {
		if o, ok := bestOfferFor(active, supplier); ok && o.VatRate.Valid {
			return o.VatRate.Decimal, true
		}
	}
	return decimal.Decimal{}, false
}

// LookupCoefficient finds the multiplier for a category: an exact
// (family, sub_family) entry wins over the family-wide (family, "") entry.
func LookupCoefficient(coefficients []PricingCoefficient, family, subFamily string) (PricingCoefficient, bool) {
	var familyWide PricingCoefficient
	foundWide := false

	for _, c := range coefficients {
		if c.Family != family {
			continue
		}
		if c.SubFamily == subFamily && subFamily != "" {
			return c, true
		}
		if c.SubFamily == "" {
			familyWide = c
			foundWide = true
		}
	}

	return familyWide, foundWide
}
