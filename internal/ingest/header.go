package ingest

import "strings"

// RawRow is one CSV line keyed by the original header text.
// It is ephemeral: the Mapper owns it for the duration of one row.
type RawRow map[string]string

// HeaderMap maps a normalized header name to the original header text.
// It is built once per file and is read-only afterwards.
type HeaderMap map[string]string

// normalizeHeader cleans a header cell for matching: strips the UTF-8 BOM,
// converts non-breaking spaces to regular spaces, trims, and lowercases.
func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	h = strings.ReplaceAll(h, "\u00a0", " ")
	return strings.ToLower(strings.TrimSpace(h))
}

// ResolveHeaders builds a HeaderMap from the header row of one export file.
// Empty headers are dropped. Duplicate normalized names resolve last-one-wins;
// upstream exports are assumed not to carry ambiguous duplicate columns, so
// this is a documented risk rather than a guaranteed-safe behavior.
func ResolveHeaders(fields []string) HeaderMap {
	m := make(HeaderMap, len(fields))
	for _, h := range fields {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		m[key] = h
	}
	return m
}

// GetVal fetches the first present value among candidate header names,
// matching case/whitespace/BOM-insensitively. Returns "" and false when no
// candidate resolves to a value.
//
// Candidate order matters: vendors name the same semantic field differently,
// and the first variant that exists in this file wins.
func GetVal(row RawRow, headers HeaderMap, candidates ...string) (string, bool) {
	for _, cand := range candidates {
		orig, ok := headers[normalizeHeader(cand)]
		if !ok {
			continue
		}
		if val, ok := row[orig]; ok {
			return val, true
		}
	}
	return "", false
}
