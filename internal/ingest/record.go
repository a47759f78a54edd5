package ingest

import (
	"encoding/json"
	"strings"
	"time"
)

// leadIDCandidates is the ordered list of identity fields tried first when
// resolving a lead identifier.
var leadIDCandidates = []string{"lead_id", "vendor_lead_code", "LeadID"}

// isoUTCLayout encodes UTC instants with an explicit +00:00 offset, matching
// the column semantics of the existing clean dataset.
const isoUTCLayout = "2006-01-02T15:04:05-07:00"

// CanonicalRecord is the normalized representation of one accepted row.
// The field set and JSON names are fixed: they must line up with the clean
// dataset's columns, so renames here are breaking changes.
//
// Records are immutable after construction and are never mutated in place.
type CanonicalRecord struct {
	Date      string  `json:"Date"` // UTC, ISO-8601
	FirstName *string `json:"FirstName"`
	LastName  *string `json:"LastName"`
	Address   *string `json:"Address"`
	CallNotes *string `json:"CallNotes"`
	// TalkTime deliberately carries campaign_id: the existing clean table
	// stores the campaign identifier in this column. Schema-mapping decision,
	// not a parsing artifact.
	TalkTime        *string `json:"TalkTime"`
	SiteName        *string `json:"SiteName"`
	Phone           *string `json:"Phone"`
	Email           *string `json:"Email"`
	LeadID          *string `json:"LeadID"`
	ListDescription *string `json:"ListDescription"`
	ListID          *string `json:"ListID"`
	Disposition     *string `json:"Disposition"`
	TermReason      *string `json:"TermReason"`
	SubscriberID    *string `json:"SubscriberID"`
	Source          *string `json:"Source"`
	LeadType        *string `json:"LeadType"`

	// Provenance. Never part of the fingerprint.
	SourceLocalTime string `json:"SourceLocalTime"`
	SourceTimezone  string `json:"SourceTimezone"`
	SourceFile      string `json:"SourceFile"`

	DedupKey string `json:"DedupKey"`
	RowHash  string `json:"RowHash"`

	// Raw is the original row serialized verbatim for audit/debugging.
	// It is opaque downstream and never parsed again.
	Raw string `json:"_raw"`

	// UTC is the resolved call instant, used by the merge engine.
	// Excluded from the NDJSON batch: Date is the serialized form.
	UTC time.Time `json:"-"`
}

// Mapper assembles CanonicalRecords from raw rows using a file's HeaderMap
// and the shared TemporalResolver.
type Mapper struct {
	temporal *TemporalResolver
}

// NewMapper returns a Mapper bound to the given temporal resolver.
func NewMapper(temporal *TemporalResolver) *Mapper {
	return &Mapper{temporal: temporal}
}

// Map produces a CanonicalRecord from one raw row, or false when the row is
// rejected. The only rejection cause is an unparseable primary call
// timestamp; every other field is optional and defaults to absent.
func (m *Mapper) Map(row RawRow, headers HeaderMap, sourceFile string) (CanonicalRecord, bool) {
	var rowZone *time.Location
	if off, ok := GetVal(row, headers, "gmt_offset_now"); ok {
		rowZone = ZoneFromRowOffset(off)
	}

	callDate, _ := GetVal(row, headers, "call_date")
	instant, ok := m.temporal.Parse(callDate, rowZone)
	if !ok {
		return CanonicalRecord{}, false
	}

	tzLabel := m.temporal.DefaultZoneName()
	if rowZone != nil {
		tzLabel = rowZone.String()
	}

	rawJSON, err := json.Marshal(row)
	if err != nil {
		// Raw capture is best-effort; map values are strings so this should
		// not happen in practice.
		rawJSON = []byte("{}")
	}

	rec := CanonicalRecord{
		Date:            instant.UTC.Format(isoUTCLayout),
		FirstName:       safeStr(getVal(row, headers, "first_name")),
		LastName:        safeStr(getVal(row, headers, "last_name")),
		Address:         safeStr(getVal(row, headers, "address1")),
		CallNotes:       safeStr(getVal(row, headers, "call_notes")),
		TalkTime:        safeStr(getVal(row, headers, "campaign_id")),
		Phone:           normalizePhone(getVal(row, headers, "phone_number_dialed", "phone_number")),
		Email:           safeStr(getVal(row, headers, "email")),
		LeadID:          pickLeadID(row, headers),
		ListDescription: safeStr(getVal(row, headers, "list_description")),
		ListID:          safeStr(getVal(row, headers, "list_id")),
		Disposition:     safeStr(getVal(row, headers, "status")),
		SourceLocalTime: instant.Text,
		SourceTimezone:  tzLabel,
		SourceFile:      sourceFile,
		Raw:             string(rawJSON),
		UTC:             instant.UTC,
	}

	rec.DedupKey, rec.RowHash = Fingerprint(rec)
	return rec, true
}

// getVal is GetVal without the presence flag, for fields where absence and
// empty are equivalent.
func getVal(row RawRow, headers HeaderMap, candidates ...string) string {
	v, _ := GetVal(row, headers, candidates...)
	return v
}

// safeStr trims a value and coerces empty strings to absent.
func safeStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// normalizePhone strips every non-digit character. An empty or all-non-digit
// value is absent; no punctuation is ever retained.
func normalizePhone(s string) *string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	digits := b.String()
	return &digits
}

// pickLeadID resolves the lead identifier: the primary ordered candidates
// first, then a secondary fallback pair. The result is trimmed with empty
// coerced to absent.
func pickLeadID(row RawRow, headers HeaderMap) *string {
	for _, key := range leadIDCandidates {
		if v, ok := GetVal(row, headers, key); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return &trimmed
			}
		}
	}
	return safeStr(getVal(row, headers, "vendor_lead_code", "lead_id"))
}

// deref returns the value of an optional field, or "" when absent.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
