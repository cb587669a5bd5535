package catalog

// mapper.go maps raw spreadsheet headers onto canonical field keys.
// Matching is purely lexical: headers and patterns are normalized the same
// way (lowercase, diacritics stripped, whitespace collapsed) and a header
// matches a field when it equals or contains one of the field's patterns.

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Mapping associates canonical field keys with source column headers.
type Mapping map[FieldKey]string

// diacriticsStripper decomposes characters and drops combining marks, so
// "Désignation" and "Designation" normalize identically.
var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeHeader lowers, strips diacritics and collapses whitespace.
func NormalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	if stripped, _, err := transform.String(diacriticsStripper, h); err == nil {
		h = stripped
	}
	return strings.Join(strings.Fields(h), " ")
}

// AutoDetect produces a best-effort mapping of field key -> matched header.
// For each field, patterns are tried in order against every header; the
// first header that equals or contains a pattern wins. Headers already
// claimed by an earlier field are skipped so two fields never share a column.
func AutoDetect(headers []string, specs []FieldSpec) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	mapping := make(Mapping)
	claimed := make(map[int]bool)

	for _, spec := range specs {
		idx := matchField(normalized, spec, claimed)
		if idx < 0 {
			continue
		}
		mapping[spec.Key] = headers[idx]
		claimed[idx] = true
	}

	return mapping
}

func matchField(normalized []string, spec FieldSpec, claimed map[int]bool) int {
	for _, pattern := range spec.Patterns {
		p := NormalizeHeader(pattern)
		if p == "" {
			continue
		}
		// Exact matches first so "tva" does not grab "code tva intracom"
		// when a plain "tva" column exists.
		for i, h := range normalized {
			if !claimed[i] && h == p {
				return i
			}
		}
		for i, h := range normalized {
			if !claimed[i] && strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}

// MissingRequired returns the required field keys a mapping leaves unbound.
// A non-empty result blocks progression from staging to apply.
func MissingRequired(mapping Mapping, specs []FieldSpec) []FieldKey {
	var missing []FieldKey
	for _, spec := range specs {
		if spec.Required && mapping[spec.Key] == "" {
			missing = append(missing, spec.Key)
		}
	}
	return missing
}

// ApplyMapping projects a raw row (header -> value) onto canonical keys.
// Headers are compared in normalized form so a mapping saved from one file
// still applies to a re-export with different capitalization.
func ApplyMapping(raw map[string]string, mapping Mapping) map[string]string {
	byNormalized := make(map[string]string, len(raw))
	for header, value := range raw {
		byNormalized[NormalizeHeader(header)] = value
	}

	mapped := make(map[string]string, len(mapping))
	for key, header := range mapping {
		if v, ok := byNormalized[NormalizeHeader(header)]; ok {
			mapped[string(key)] = CleanCell(v)
		}
	}
	return mapped
}

// MatchScore reports the fraction of a template's source columns present in
// the given headers, used to rank saved templates against a new upload.
func MatchScore(headers []string, tpl ImportMappingTemplate) float64 {
	if len(tpl.Mapping) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		seen[NormalizeHeader(h)] = true
	}

	matched := 0
	for _, col := range tpl.Mapping {
		if seen[NormalizeHeader(col)] {
			matched++
		}
	}
	return float64(matched) / float64(len(tpl.Mapping))
}

// RankTemplates returns templates scoring at or above threshold, best first.
func RankTemplates(headers []string, templates []ImportMappingTemplate, threshold float64) []ImportMappingTemplate {
	type scored struct {
		tpl   ImportMappingTemplate
		score float64
	}

	var matches []scored
	for _, t := range templates {
		if s := MatchScore(headers, t); s >= threshold {
			matches = append(matches, scored{t, s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	result := make([]ImportMappingTemplate, len(matches))
	for i, m := range matches {
		result[i] = m.tpl
	}
	return result
}
