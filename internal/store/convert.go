package store

// convert.go bridges domain values and Postgres column types: exact
// decimals ride as pgtype.Numeric, maps and snapshots as JSONB.

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// toNumeric converts a nullable decimal to its pgtype form without loss.
func toNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{
		Int:   d.Decimal.Coefficient(),
		Exp:   d.Decimal.Exponent(),
		Valid: true,
	}
}

// fromNumeric converts a scanned numeric back to a nullable decimal.
func fromNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: decimal.NewFromBigInt(n.Int, n.Exp),
		Valid:   true,
	}
}

// toJSON marshals v for a JSONB column.
func toJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return b, nil
}

// fromJSON unmarshals a JSONB column into dst. Empty and NULL columns
// leave dst untouched.
func fromJSON(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode jsonb: %w", err)
	}
	return nil
}

// taxBreakdownJSON round-trips a TaxBreakdown through JSONB. Decimals
// serialize as JSON numbers via shopspring's MarshalJSON, which keeps the
// exact printed form.
func taxBreakdownJSON(tb catalog.TaxBreakdown) ([]byte, error) {
	if tb == nil {
		tb = catalog.TaxBreakdown{}
	}
	return toJSON(tb)
}
