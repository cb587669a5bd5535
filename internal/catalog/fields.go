package catalog

// fields.go defines the canonical field dictionaries for the two import
// kinds. Each field carries an ordered list of header patterns; the column
// mapper matches the first pattern that appears in a normalized header, so
// specific patterns must precede generic ones.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldKey is a canonical spreadsheet field understood by the importer.
type FieldKey string

// Canonical field keys. The pricing dictionary is a strict subset of keys
// shared with the catalogue dictionary plus the eco-tax codes.
const (
	FieldRefArt          FieldKey = "ref_art"
	FieldEAN             FieldKey = "ean"
	FieldName            FieldKey = "name"
	FieldDescription     FieldKey = "description"
	FieldFamily          FieldKey = "family"
	FieldSubFamily       FieldKey = "sub_family"
	FieldBrand           FieldKey = "brand"
	FieldPurchasePriceHT FieldKey = "purchase_price_ht"
	FieldPvpTTC          FieldKey = "pvp_ttc"
	FieldVatRate         FieldKey = "vat_rate"
	FieldStockQty        FieldKey = "stock_qty"
	FieldMinQty          FieldKey = "min_qty"
	FieldDeliveryDelay   FieldKey = "delivery_delay_days"
	FieldTaxD3E          FieldKey = "d3e"
	FieldTaxCOP          FieldKey = "cop"
	FieldTaxDEEE         FieldKey = "deee"
	FieldTaxSorecop      FieldKey = "sorecop"
	FieldWeightKg        FieldKey = "weight_kg"
	FieldLengthCm        FieldKey = "length_cm"
	FieldWidthCm         FieldKey = "width_cm"
	FieldHeightCm        FieldKey = "height_cm"
	FieldColor           FieldKey = "color"
	FieldMaterial        FieldKey = "material"
	FieldPackaging       FieldKey = "packaging"
	FieldUnit            FieldKey = "unit"
	FieldKeywords        FieldKey = "keywords"
	FieldImageURL        FieldKey = "image_url"
	FieldManufacturerRef FieldKey = "manufacturer_ref"
	FieldCountryOrigin   FieldKey = "country_origin"
	FieldWarrantyMonths  FieldKey = "warranty_months"
)

// FieldType is the expected data type of a canonical field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDecimal
	FieldInt
	FieldBool
)

// FieldSpec defines the contract for one canonical field.
type FieldSpec struct {
	Key      FieldKey
	Type     FieldType
	Required bool     // unmapped or empty blocks the row (and apply, for headers)
	Patterns []string // ordered header patterns, most specific first
}

// TaxFieldKeys lists the eco-tax codes that feed SupplierOffer.TaxBreakdown.
var TaxFieldKeys = []FieldKey{FieldTaxD3E, FieldTaxCOP, FieldTaxDEEE, FieldTaxSorecop}

// CatalogueFields is the descriptive dictionary used by catalogue and enrich
// imports. Supplier spreadsheets are mostly French, so patterns cover both
// French and English headers.
var CatalogueFields = []FieldSpec{
	{Key: FieldName, Type: FieldText, Required: true, Patterns: []string{"designation", "libelle", "nom du produit", "nom", "product name", "name"}},
	{Key: FieldRefArt, Type: FieldText, Patterns: []string{"ref. article", "ref art", "reference article", "reference fournisseur", "ref", "sku"}},
	{Key: FieldEAN, Type: FieldText, Patterns: []string{"code ean13", "ean13", "gencod", "ean", "barcode", "code barre"}},
	{Key: FieldDescription, Type: FieldText, Patterns: []string{"description longue", "descriptif", "description"}},
	{Key: FieldSubFamily, Type: FieldText, Patterns: []string{"sous-famille", "sous famille", "subfamily", "sub family"}},
	{Key: FieldFamily, Type: FieldText, Patterns: []string{"famille", "family", "categorie", "category"}},
	{Key: FieldBrand, Type: FieldText, Patterns: []string{"marque", "brand", "fabricant"}},
	{Key: FieldPurchasePriceHT, Type: FieldDecimal, Patterns: []string{"prix achat ht", "prix d'achat", "pa ht", "purchase price", "cost"}},
	{Key: FieldPvpTTC, Type: FieldDecimal, Patterns: []string{"pvp ttc", "prix public ttc", "prix conseille", "pvp", "rrp"}},
	{Key: FieldVatRate, Type: FieldDecimal, Patterns: []string{"taux tva", "tva", "vat rate", "vat"}},
	{Key: FieldStockQty, Type: FieldInt, Patterns: []string{"stock disponible", "qte stock", "stock", "quantity available"}},
	{Key: FieldMinQty, Type: FieldInt, Patterns: []string{"quantite minimum", "qte mini", "min qty", "minimum"}},
	{Key: FieldDeliveryDelay, Type: FieldInt, Patterns: []string{"delai livraison", "delai", "lead time", "delivery delay"}},
	{Key: FieldTaxD3E, Type: FieldDecimal, Patterns: []string{"d3e"}},
	{Key: FieldTaxCOP, Type: FieldDecimal, Patterns: []string{"copie privee", "cop"}},
	{Key: FieldTaxDEEE, Type: FieldDecimal, Patterns: []string{"deee"}},
	{Key: FieldTaxSorecop, Type: FieldDecimal, Patterns: []string{"sorecop"}},
	{Key: FieldWeightKg, Type: FieldDecimal, Patterns: []string{"poids net", "poids", "weight"}},
	{Key: FieldLengthCm, Type: FieldDecimal, Patterns: []string{"longueur", "length"}},
	{Key: FieldWidthCm, Type: FieldDecimal, Patterns: []string{"largeur", "width"}},
	{Key: FieldHeightCm, Type: FieldDecimal, Patterns: []string{"hauteur", "height"}},
	{Key: FieldColor, Type: FieldText, Patterns: []string{"couleur", "color", "colour"}},
	{Key: FieldMaterial, Type: FieldText, Patterns: []string{"matiere", "material"}},
	{Key: FieldPackaging, Type: FieldText, Patterns: []string{"conditionnement", "packaging", "colisage"}},
	{Key: FieldUnit, Type: FieldText, Patterns: []string{"unite de vente", "unite", "unit"}},
	{Key: FieldKeywords, Type: FieldText, Patterns: []string{"mots cles", "keywords", "tags"}},
	{Key: FieldImageURL, Type: FieldText, Patterns: []string{"url image", "image", "photo", "visuel"}},
	{Key: FieldManufacturerRef, Type: FieldText, Patterns: []string{"ref fabricant", "reference fabricant", "mpn"}},
	{Key: FieldCountryOrigin, Type: FieldText, Patterns: []string{"pays origine", "origine", "origin"}},
	{Key: FieldWarrantyMonths, Type: FieldInt, Patterns: []string{"garantie", "warranty"}},
}

// PricingFields is the narrow dictionary used by price-only imports.
var PricingFields = []FieldSpec{
	{Key: FieldRefArt, Type: FieldText, Required: true, Patterns: []string{"ref. article", "ref art", "reference article", "reference fournisseur", "ref", "sku"}},
	{Key: FieldEAN, Type: FieldText, Patterns: []string{"code ean13", "ean13", "gencod", "ean"}},
	{Key: FieldPurchasePriceHT, Type: FieldDecimal, Patterns: []string{"prix achat ht", "prix d'achat", "pa ht", "purchase price"}},
	{Key: FieldPvpTTC, Type: FieldDecimal, Patterns: []string{"pvp ttc", "prix public ttc", "prix conseille", "pvp"}},
	{Key: FieldVatRate, Type: FieldDecimal, Patterns: []string{"taux tva", "tva", "vat"}},
	{Key: FieldStockQty, Type: FieldInt, Patterns: []string{"stock disponible", "qte stock", "stock"}},
	{Key: FieldMinQty, Type: FieldInt, Patterns: []string{"quantite minimum", "qte mini", "min qty"}},
	{Key: FieldDeliveryDelay, Type: FieldInt, Patterns: []string{"delai livraison", "delai", "lead time"}},
	{Key: FieldTaxD3E, Type: FieldDecimal, Patterns: []string{"d3e"}},
	{Key: FieldTaxCOP, Type: FieldDecimal, Patterns: []string{"copie privee", "cop"}},
	{Key: FieldTaxDEEE, Type: FieldDecimal, Patterns: []string{"deee"}},
	{Key: FieldTaxSorecop, Type: FieldDecimal, Patterns: []string{"sorecop"}},
}

// FieldsForKind returns the dictionary for an import kind.
func FieldsForKind(kind ImportKind) []FieldSpec {
	if kind == KindPricing {
		return PricingFields
	}
	return CatalogueFields
}

// SpecFor returns the spec for a key within a dictionary.
func SpecFor(specs []FieldSpec, key FieldKey) (FieldSpec, bool) {
	for _, s := range specs {
		if s.Key == key {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// patternOverrides is the shape of the optional YAML override file. It only
// extends pattern lists; types and required flags stay compiled in.
type patternOverrides struct {
	Catalogue map[string][]string `yaml:"catalogue"`
	Pricing   map[string][]string `yaml:"pricing"`
}

// LoadPatternOverrides merges extra header patterns from a YAML file into the
// built-in dictionaries. Extra patterns are appended after the built-ins so
// they cannot shadow more specific defaults.
func LoadPatternOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pattern overrides: %w", err)
	}

	var ov patternOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse pattern overrides: %w", err)
	}

	applyOverrides(CatalogueFields, ov.Catalogue)
	applyOverrides(PricingFields, ov.Pricing)
	return nil
}

func applyOverrides(specs []FieldSpec, extra map[string][]string) {
	for i := range specs {
		if patterns, ok := extra[string(specs[i].Key)]; ok {
			specs[i].Patterns = append(specs[i].Patterns, patterns...)
		}
	}
}
