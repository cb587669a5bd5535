package catalog

// convert.go handles the messy reality of supplier spreadsheet cells:
// decimal commas in French price columns, currency symbols, thousands
// separators, accounting-style negatives, Excel formula artifacts.
// All Parse* functions treat empty input as null rather than an error.

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates a cleaned-up numeric string: integers and decimals,
// optional sign. Scientific notation is not accepted in price columns.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, Excel formula prefixes (="value"), stray quotes
// and non-breaking spaces.
func CleanCell(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// ParseDecimal converts a cell to a nullable decimal.
// Handles currency symbols, accounting negatives "(1 234,56)", French decimal
// commas ("9,90") and thousands separators (spaces, or commas/dots when a
// decimal separator is also present).
func ParseDecimal(s string) decimal.NullDecimal {
	s = CleanCell(s)
	if s == "" {
		return decimal.NullDecimal{}
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"$", "€", "£", "EUR", "eur"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")

	// A single comma with no dot is a French decimal separator; otherwise
	// commas are thousands separators.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ParseInt converts a cell to a nullable integer. Decimal values with a zero
// fractional part ("12.0", common in XLSX exports) are accepted.
func ParseInt(s string) (int, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	d := ParseDecimal(s)
	if !d.Valid || !d.Decimal.IsInteger() {
		return 0, false
	}
	return int(d.Decimal.IntPart()), true
}

// ParseBool converts a cell to a nullable boolean.
// Accepts true/false, yes/no, oui/non, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	s = strings.ToLower(CleanCell(s))
	switch s {
	case "true", "t", "yes", "y", "oui", "o", "1":
		return true, true
	case "false", "f", "no", "n", "non", "0":
		return false, true
	default:
		return false, false
	}
}
