package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts is the ordered list of accepted call-timestamp formats.
// The first matching layout wins. The order is a tie-break policy for raw
// strings that are structurally ambiguous across two layouts, so it must be
// preserved exactly; do not reorder or "optimize" it.
var timestampLayouts = []string{
	"2006-01-02 15:04:05", // 2025-08-23 15:08:58
	"2006-01-02 15:04",
	"1/2/2006 15:04:05", // 09/02/2025 11:02:00
	"1/2/2006 15:04",
	"1/2/06 15:04:05", // 9/2/25 11:02:00
	"1/2/06 15:04",    // 9/2/25 11:02
	"1/2/06 3:04 PM",  // 9/2/25 11:02 AM
	"1/2/2006 3:04 PM",
}

// ParsedInstant pairs the original timestamp text with its resolved absolute
// UTC instant. A ParsedInstant is only ever produced from a successful parse;
// the resolver never fabricates a value.
type ParsedInstant struct {
	Text string
	UTC  time.Time
}

// TemporalResolver parses row timestamps against the accepted layouts and
// resolves them to UTC, honoring per-row timezone overrides.
type TemporalResolver struct {
	defaultZone *time.Location
	defaultName string
}

// NewTemporalResolver builds a resolver whose default zone comes from a
// configuration string (see ResolveZone). The original config string is kept
// as the provenance label for rows that carry no override.
func NewTemporalResolver(sourceTZ string) *TemporalResolver {
	return &TemporalResolver{
		defaultZone: ResolveZone(sourceTZ),
		defaultName: sourceTZ,
	}
}

// DefaultZoneName returns the configured timezone label for provenance.
func (r *TemporalResolver) DefaultZoneName() string {
	return r.defaultName
}

// Parse resolves a timestamp string to a ParsedInstant. The naive local time
// is interpreted in override when non-nil, else the configured default zone.
// Returns false when no accepted layout matches; the caller must treat that
// as a per-row rejection, never as a fatal file error.
func (r *TemporalResolver) Parse(s string, override *time.Location) (ParsedInstant, bool) {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return ParsedInstant{}, false
	}

	zone := r.defaultZone
	if override != nil {
		zone = override
	}

	for _, layout := range timestampLayouts {
		local, err := time.ParseInLocation(layout, txt, zone)
		if err != nil {
			continue
		}
		return ParsedInstant{Text: txt, UTC: local.UTC()}, true
	}
	return ParsedInstant{}, false
}

// ResolveZone resolves a configuration string to a timezone. Strings of the
// form "UTC±H" yield a fixed-offset zone; any other non-empty string is
// attempted as a named zone identifier (e.g. "America/Denver"). Resolution
// failure of any kind degrades to UTC rather than failing: availability over
// strictness, surfaced by the caller's logging rather than by an error.
func ResolveZone(s string) *time.Location {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.UTC
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "UTC") && (strings.Contains(s, "+") || strings.Contains(s, "-")) {
		hours, err := strconv.Atoi(strings.TrimSpace(upper[len("UTC"):]))
		if err != nil {
			return time.UTC
		}
		return fixedOffsetZone(hours)
	}

	loc, err := time.LoadLocation(s)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ZoneFromRowOffset converts a row-level numeric GMT offset (e.g. "-4") into
// a fixed-offset zone for that row only. Invalid values mean "no override",
// not an error.
func ZoneFromRowOffset(s string) *time.Location {
	hours, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return fixedOffsetZone(hours)
}

func fixedOffsetZone(hours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600)
}
