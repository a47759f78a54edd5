package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// dedupMinuteLayout truncates the call instant to minute granularity.
// Seconds are discarded on purpose: repeated exports of the same call event
// drift by a few seconds, and the minute bucket absorbs that noise.
const dedupMinuteLayout = "2006-01-02 15:04"

// Fingerprint derives the dedup key and its digest from a record.
//
// The key is the ordered join of phone, lead ID, list ID, disposition, and
// the minute-truncated UTC timestamp, with "|" as separator and absent
// fields as empty strings. The digest is the hex SHA-256 of the key.
//
// This is a pure function of those five inputs: no other record field may
// influence it, and identical inputs always yield identical output.
func Fingerprint(rec CanonicalRecord) (key, hash string) {
	parts := []string{
		deref(rec.Phone),
		deref(rec.LeadID),
		deref(rec.ListID),
		deref(rec.Disposition),
		rec.UTC.UTC().Format(dedupMinuteLayout),
	}
	key = strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(key))
	return key, hex.EncodeToString(sum[:])
}
