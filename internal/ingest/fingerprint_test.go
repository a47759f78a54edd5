package ingest

import (
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func fingerprintRecord(phone, lead, list, disp string, at time.Time) CanonicalRecord {
	rec := CanonicalRecord{UTC: at}
	if phone != "" {
		rec.Phone = strPtr(phone)
	}
	if lead != "" {
		rec.LeadID = strPtr(lead)
	}
	if list != "" {
		rec.ListID = strPtr(list)
	}
	if disp != "" {
		rec.Disposition = strPtr(disp)
	}
	return rec
}

func TestFingerprint_ConcreteScenario(t *testing.T) {
	at := time.Date(2025, 9, 2, 15, 2, 0, 0, time.UTC)
	key, hash := Fingerprint(fingerprintRecord("5551234567", "L1", "A", "SALE", at))

	wantKey := "5551234567|L1|A|SALE|2025-09-02 15:02"
	if key != wantKey {
		t.Errorf("key = %q, want %q", key, wantKey)
	}
	if len(hash) != 64 {
		t.Errorf("len(hash) = %d, want 64 hex chars", len(hash))
	}
	if strings.ToLower(hash) != hash {
		t.Errorf("hash = %q, want lowercase hex", hash)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	at := time.Date(2025, 9, 2, 15, 2, 30, 0, time.UTC)
	_, h1 := Fingerprint(fingerprintRecord("5551234567", "L1", "A", "SALE", at))
	_, h2 := Fingerprint(fingerprintRecord("5551234567", "L1", "A", "SALE", at))

	if h1 != h2 {
		t.Errorf("identical inputs produced different hashes: %q vs %q", h1, h2)
	}
}

func TestFingerprint_MinuteTruncationIdempotence(t *testing.T) {
	// Two timestamps within the same UTC minute share the time component
	// regardless of seconds.
	a := time.Date(2025, 9, 2, 15, 2, 1, 0, time.UTC)
	b := time.Date(2025, 9, 2, 15, 2, 59, 0, time.UTC)

	keyA, hashA := Fingerprint(fingerprintRecord("5551234567", "L1", "A", "SALE", a))
	keyB, hashB := Fingerprint(fingerprintRecord("5551234567", "L1", "A", "SALE", b))

	if keyA != keyB {
		t.Errorf("same-minute keys differ: %q vs %q", keyA, keyB)
	}
	if hashA != hashB {
		t.Errorf("same-minute hashes differ: %q vs %q", hashA, hashB)
	}
}

func TestFingerprint_EachInputChangesDigest(t *testing.T) {
	at := time.Date(2025, 9, 2, 15, 2, 0, 0, time.UTC)
	_, base := Fingerprint(fingerprintRecord("5551234567", "L1", "A", "SALE", at))

	variants := []CanonicalRecord{
		fingerprintRecord("5551234568", "L1", "A", "SALE", at),
		fingerprintRecord("5551234567", "L2", "A", "SALE", at),
		fingerprintRecord("5551234567", "L1", "B", "SALE", at),
		fingerprintRecord("5551234567", "L1", "A", "NI", at),
		fingerprintRecord("5551234567", "L1", "A", "SALE", at.Add(time.Minute)),
	}

	for i, rec := range variants {
		if _, h := Fingerprint(rec); h == base {
			t.Errorf("variant %d: hash unchanged, want different digest", i)
		}
	}
}

func TestFingerprint_AbsentFieldsAreEmpty(t *testing.T) {
	at := time.Date(2025, 9, 2, 15, 2, 0, 0, time.UTC)
	key, _ := Fingerprint(fingerprintRecord("", "", "", "", at))

	want := "||||2025-09-02 15:02"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}

func TestFingerprint_IgnoresOtherFields(t *testing.T) {
	at := time.Date(2025, 9, 2, 15, 2, 0, 0, time.UTC)
	rec := fingerprintRecord("5551234567", "L1", "A", "SALE", at)
	_, base := Fingerprint(rec)

	rec.FirstName = strPtr("Ada")
	rec.SourceFile = "s3://bucket/other.csv"
	rec.Raw = `{"extra":"data"}`
	if _, h := Fingerprint(rec); h != base {
		t.Error("non-fingerprint fields influenced the digest")
	}
}
