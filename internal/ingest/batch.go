package ingest

import (
	"bytes"
	"encoding/json"
)

// Batch is the ordered sequence of canonical records produced from one input
// file. It exists only between emission and hand-off to staging and is not
// retained after a successful merge.
type Batch struct {
	Records []CanonicalRecord
}

// Append adds an accepted record, preserving arrival order.
func (b *Batch) Append(rec CanonicalRecord) {
	b.Records = append(b.Records, rec)
}

// Len reports the number of accepted records.
func (b *Batch) Len() int { return len(b.Records) }

// EncodeNDJSON serializes the batch as newline-delimited JSON, one object per
// record in arrival order. The emitter performs no deduplication: all
// fingerprint-based reconciliation happens downstream in the merge engine.
func (b *Batch) EncodeNDJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range b.Records {
		if err := enc.Encode(&b.Records[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
