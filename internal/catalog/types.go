// Package catalog provides the domain model and pure business logic for the
// multi-supplier catalog: canonical field dictionaries, spreadsheet column
// mapping, row validation, and the price/availability rollup engine.
// This package has no storage or HTTP dependencies.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier identifies one of the wholesale suppliers feeding the catalog.
type Supplier string

const (
	SupplierAlkor    Supplier = "ALKOR"
	SupplierComlandi Supplier = "COMLANDI"
	SupplierSoft     Supplier = "SOFT"
)

// DefaultSupplierPriority is the cascade order used by the rollup engine:
// the first supplier in this list whose active offer carries a suggested
// retail price wins.
var DefaultSupplierPriority = []Supplier{SupplierAlkor, SupplierComlandi, SupplierSoft}

// PriceSource tags which rule produced a product's public price.
type PriceSource string

const (
	SourcePVPAlkor    PriceSource = "PVP_ALKOR"
	SourcePVPComlandi PriceSource = "PVP_COMLANDI"
	SourcePVPSoft     PriceSource = "PVP_SOFT"
	SourceCoefficient PriceSource = "COEF"
	SourceNone        PriceSource = ""
)

// pvpSourceFor maps a supplier to its price-source tag.
func pvpSourceFor(s Supplier) PriceSource {
	switch s {
	case SupplierAlkor:
		return SourcePVPAlkor
	case SupplierComlandi:
		return SourcePVPComlandi
	case SupplierSoft:
		return SourcePVPSoft
	default:
		return PriceSource("PVP_" + string(s))
	}
}

// TaxBreakdown maps an eco-tax code (d3e, cop, deee, sorecop) to its amount.
type TaxBreakdown map[string]decimal.Decimal

// SupplierOffer is one supplier's price/stock record for one product.
type SupplierOffer struct {
	ID                int64
	ProductID         int64
	Supplier          Supplier
	SupplierReference string
	PurchasePriceHT   decimal.NullDecimal
	PvpTTC            decimal.NullDecimal // supplier-suggested retail price, TTC
	VatRate           decimal.NullDecimal // percent
	TaxBreakdown      TaxBreakdown
	StockQty          int
	MinQty            int
	DeliveryDelayDays *int
	IsActive          bool
	IsPreferred       bool
	PriorityRank      int
	UpdatedAt         time.Time
}

// Product carries the descriptive fields the importer writes plus the four
// rollup-derived fields the storefront reads.
type Product struct {
	ID          int64
	EAN         string
	Name        string
	Description string
	Family      string
	SubFamily   string
	CostPriceHT decimal.NullDecimal

	// Rollup-derived, written only by the rollup engine.
	PublicPriceTTC    decimal.NullDecimal
	PublicPriceSource PriceSource
	AvailableQtyTotal int
	IsAvailable       bool

	UpdatedAt time.Time
}

// PricingCoefficient is a category multiplier used when no supplier supplies
// a retail price. Configured out of band; read-only to the rollup engine.
type PricingCoefficient struct {
	Family     string
	SubFamily  string // empty matches any sub-family of the family
	Multiplier decimal.Decimal
}

// JobStatus is the import job state machine:
// staging -> applying -> {done, error} -> rolled_back.
type JobStatus string

const (
	JobStaging    JobStatus = "staging"
	JobApplying   JobStatus = "applying"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
	JobRolledBack JobStatus = "rolled_back"
)

// RowStatus is the per-row state machine:
// staging -> {applied, invalid, error} -> rolled_back.
type RowStatus string

const (
	RowStaging    RowStatus = "staging"
	RowApplied    RowStatus = "applied"
	RowInvalid    RowStatus = "invalid"
	RowError      RowStatus = "error"
	RowRolledBack RowStatus = "rolled_back"
)

// ImportKind selects which canonical field dictionary an import uses.
type ImportKind string

const (
	KindCatalogue ImportKind = "catalogue"
	KindPricing   ImportKind = "pricing"
)

// ImportMode is a closed variant controlling how valid rows mutate the
// catalog. Each mode carries its own matching and mutation rules.
type ImportMode string

const (
	// ModeCreate matches by supplier reference or EAN and creates products
	// that do not exist yet.
	ModeCreate ImportMode = "create"
	// ModeEnrich matches strictly by EAN and never creates products.
	ModeEnrich ImportMode = "enrich"
	// ModePriceOnly matches offers by supplier reference and updates only
	// price, tax and stock fields. Creates nothing.
	ModePriceOnly ImportMode = "price_only"
)

// Valid reports whether the mode is one of the closed set.
func (m ImportMode) Valid() bool {
	switch m {
	case ModeCreate, ModeEnrich, ModePriceOnly:
		return true
	}
	return false
}

// ImportJob is the audit record of one upload. Created once per upload,
// mutated only by the pipeline, never deleted.
type ImportJob struct {
	ID           string
	Supplier     Supplier // empty for supplier-agnostic enrich imports
	Filename     string
	Kind         ImportKind
	Mode         ImportMode
	TotalRows    int
	OkRows       int
	ErrorRows    int
	Status       JobStatus
	CreatedAt    time.Time
	RolledBackAt *time.Time
}

// ImportJobRow is one staged spreadsheet row with its lifecycle outcome.
type ImportJobRow struct {
	JobID            string
	RowIndex         int // 1-based, unique within the job
	RawData          map[string]string
	MappedData       map[string]string
	Status           RowStatus
	ErrorMessages    []string
	ProductID        *int64
	PreviousSnapshot *RowSnapshot // nil when the row created the product
}

// RowSnapshot records the state a rollback must restore. For catalogue and
// enrich rows it holds the product fields before the write; for price-only
// rows it additionally holds the touched offer's prior values.
type RowSnapshot struct {
	Product *ProductSnapshot `json:"product,omitempty"`
	Offer   *OfferSnapshot   `json:"offer,omitempty"`
}

// ProductSnapshot is the restorable subset of product fields.
type ProductSnapshot struct {
	EAN         string              `json:"ean"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Family      string              `json:"family"`
	SubFamily   string              `json:"sub_family"`
	CostPriceHT decimal.NullDecimal `json:"cost_price_ht"`
}

// OfferSnapshot is the restorable subset of offer fields for price-only rows.
type OfferSnapshot struct {
	OfferID         int64               `json:"offer_id"`
	PurchasePriceHT decimal.NullDecimal `json:"purchase_price_ht"`
	PvpTTC          decimal.NullDecimal `json:"pvp_ttc"`
	VatRate         decimal.NullDecimal `json:"vat_rate"`
	TaxBreakdown    TaxBreakdown        `json:"tax_breakdown"`
	StockQty        int                 `json:"stock_qty"`
	MinQty          int                 `json:"min_qty"`
}

// SnapshotProduct captures the restorable fields of p.
func SnapshotProduct(p Product) *ProductSnapshot {
	return &ProductSnapshot{
		EAN:         p.EAN,
		Name:        p.Name,
		Description: p.Description,
		Family:      p.Family,
		SubFamily:   p.SubFamily,
		CostPriceHT: p.CostPriceHT,
	}
}

// SnapshotOffer captures the restorable fields of o.
func SnapshotOffer(o SupplierOffer) *OfferSnapshot {
	tb := make(TaxBreakdown, len(o.TaxBreakdown))
	for k, v := range o.TaxBreakdown {
		tb[k] = v
	}
	return &OfferSnapshot{
		OfferID:         o.ID,
		PurchasePriceHT: o.PurchasePriceHT,
		PvpTTC:          o.PvpTTC,
		VatRate:         o.VatRate,
		TaxBreakdown:    tb,
		StockQty:        o.StockQty,
		MinQty:          o.MinQty,
	}
}

// ImportMappingTemplate is a saved field-key -> source-column mapping an
// operator can reuse across uploads from the same supplier.
type ImportMappingTemplate struct {
	ID        string
	Supplier  Supplier // empty for global templates
	Name      string
	Mapping   map[FieldKey]string
	CreatedAt time.Time
	UpdatedAt time.Time
}
