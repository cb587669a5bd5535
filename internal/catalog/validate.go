package catalog

// validate.go checks mapped rows against the canonical field contracts.
// Validation is pure: it returns ordered, human-readable messages and never
// mutates the row. An empty result means the row can be applied.

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidateRow validates mapped data against a dictionary. Messages are
// ordered by dictionary position so reports stay stable across runs.
func ValidateRow(mapped map[string]string, specs []FieldSpec) []string {
	var msgs []string

	for _, spec := range specs {
		raw, present := mapped[string(spec.Key)]

		if !present || raw == "" {
			if spec.Required {
				msgs = append(msgs, fmt.Sprintf("missing required field %q", spec.Key))
			}
			continue
		}

		if msg := validateValue(raw, spec); msg != "" {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

func validateValue(raw string, spec FieldSpec) string {
	switch spec.Type {
	case FieldDecimal:
		if !ParseDecimal(raw).Valid {
			return fmt.Sprintf("invalid number for %q: %q", spec.Key, raw)
		}
	case FieldInt:
		n, ok := ParseInt(raw)
		if !ok {
			return fmt.Sprintf("invalid integer for %q: %q", spec.Key, raw)
		}
		switch spec.Key {
		case FieldStockQty:
			if n < 0 {
				return fmt.Sprintf("%q must not be negative: %d", spec.Key, n)
			}
		case FieldMinQty:
			if n < 1 {
				return fmt.Sprintf("%q must be at least 1: %d", spec.Key, n)
			}
		}
	case FieldBool:
		if _, ok := ParseBool(raw); !ok {
			return fmt.Sprintf("invalid boolean for %q: %q", spec.Key, raw)
		}
	}
	return ""
}

// RowDecimal reads a nullable decimal field from mapped data.
func RowDecimal(mapped map[string]string, key FieldKey) decimal.NullDecimal {
	return ParseDecimal(mapped[string(key)])
}

// RowInt reads an integer field from mapped data, returning def when the
// field is absent or unparseable.
func RowInt(mapped map[string]string, key FieldKey, def int) int {
	if n, ok := ParseInt(mapped[string(key)]); ok {
		return n
	}
	return def
}

// RowString reads a text field from mapped data.
func RowString(mapped map[string]string, key FieldKey) string {
	return CleanCell(mapped[string(key)])
}

// RowTaxBreakdown collects the eco-tax columns present in mapped data.
func RowTaxBreakdown(mapped map[string]string) TaxBreakdown {
	tb := make(TaxBreakdown)
	for _, key := range TaxFieldKeys {
		if d := ParseDecimal(mapped[string(key)]); d.Valid {
			tb[string(key)] = d.Decimal
		}
	}
	if len(tb) == 0 {
		return nil
	}
	return tb
}
