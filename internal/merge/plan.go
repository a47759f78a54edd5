// Package merge reconciles staged call batches against the clean dataset and
// the legacy pre-existing dataset under a temporal tolerance, inserting only
// rows that are not duplicates of anything already present.
package merge

import "time"

// Fields are the non-temporal dedup fields of a call record. Two records
// describe the same underlying event when their Fields are equal and their
// timestamps differ by no more than the tolerance.
type Fields struct {
	Phone       string
	LeadID      string
	ListID      string
	Disposition string
}

// Candidate is one comparison point: a key plus its UTC instant.
type Candidate struct {
	Fields Fields
	At     time.Time
}

// Plan decides which staged rows to insert. staged must be in arrival order;
// existing holds the indexed clean+legacy candidates relevant to the batch.
// The returned slice contains indexes into staged, ascending.
//
// Matching rule: equal Fields and |Δt| <= tol. The boundary is inclusive: a
// delta exactly equal to the tolerance is a duplicate; one second beyond is
// distinct. Within the batch, the earliest-arriving row of a duplicate group
// wins and suppresses the rest, which keeps the outcome deterministic and
// makes re-running a merge of the same batch a no-op.
func Plan(staged []Candidate, existing []Candidate, tol time.Duration) []int {
	index := make(map[Fields][]time.Time, len(existing))
	for _, c := range existing {
		index[c.Fields] = append(index[c.Fields], c.At)
	}

	var keep []int
	for i, s := range staged {
		if withinTolerance(index[s.Fields], s.At, tol) {
			continue
		}
		keep = append(keep, i)
		// Kept rows join the index so later batch-internal duplicates collapse.
		index[s.Fields] = append(index[s.Fields], s.At)
	}
	return keep
}

func withinTolerance(instants []time.Time, at time.Time, tol time.Duration) bool {
	for _, t := range instants {
		d := at.Sub(t)
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return true
		}
	}
	return false
}
