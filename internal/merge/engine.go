package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Row is one staged record as seen by the engine: its staging sequence
// number (arrival order within the batch) plus the dedup-relevant fields.
type Row struct {
	Seq    int
	Fields Fields
	At     time.Time
}

// Store is the durable side of the merge. Satisfied by the Postgres
// warehouse; tests use an in-memory fake.
type Store interface {
	// StagedBatch returns the batch's rows in arrival (seq) order.
	StagedBatch(ctx context.Context, batchID uuid.UUID) ([]Row, error)

	// Candidates returns clean+legacy rows that could match the batch:
	// any row whose timestamp falls in [from, to]. Implementations may
	// over-return (e.g. narrow only by phone); the planner re-checks the
	// full key.
	Candidates(ctx context.Context, keys []Fields, from, to time.Time) ([]Candidate, error)

	// PromoteAndClear atomically copies the selected staged rows into the
	// clean table and removes the whole batch from staging. If it fails,
	// the batch must remain staged so the merge can be retried.
	PromoteAndClear(ctx context.Context, batchID uuid.UUID, seqs []int) (inserted int, err error)
}

// Outcome reports what the merge did with one staged batch.
type Outcome struct {
	Staged          int
	Inserted        int
	SkippedExisting int
}

// Engine applies the time-tolerant matching rule to staged batches.
type Engine struct {
	store     Store
	tolerance time.Duration
}

// NewEngine builds an engine with the configured tolerance in seconds.
func NewEngine(store Store, toleranceSeconds int) *Engine {
	return &Engine{
		store:     store,
		tolerance: time.Duration(toleranceSeconds) * time.Second,
	}
}

// Reconcile merges one staged batch into the clean dataset. Rows already
// present (by the tolerance rule) in the clean or legacy datasets are
// skipped, as are batch-internal duplicates. Safe to re-run: a batch that
// was already promoted stages nothing and inserts nothing.
func (e *Engine) Reconcile(ctx context.Context, batchID uuid.UUID) (Outcome, error) {
	rows, err := e.store.StagedBatch(ctx, batchID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load staged batch: %w", err)
	}
	if len(rows) == 0 {
		return Outcome{}, nil
	}

	keys := make([]Fields, 0, len(rows))
	seen := make(map[Fields]struct{}, len(rows))
	from, to := rows[0].At, rows[0].At
	staged := make([]Candidate, len(rows))
	for i, r := range rows {
		staged[i] = Candidate{Fields: r.Fields, At: r.At}
		if _, ok := seen[r.Fields]; !ok {
			seen[r.Fields] = struct{}{}
			keys = append(keys, r.Fields)
		}
		if r.At.Before(from) {
			from = r.At
		}
		if r.At.After(to) {
			to = r.At
		}
	}

	existing, err := e.store.Candidates(ctx, keys, from.Add(-e.tolerance), to.Add(e.tolerance))
	if err != nil {
		return Outcome{}, fmt.Errorf("load merge candidates: %w", err)
	}

	plan := Plan(staged, existing, e.tolerance)
	seqs := make([]int, len(plan))
	for i, idx := range plan {
		seqs[i] = rows[idx].Seq
	}

	inserted, err := e.store.PromoteAndClear(ctx, batchID, seqs)
	if err != nil {
		return Outcome{}, fmt.Errorf("promote batch: %w", err)
	}

	return Outcome{
		Staged:          len(rows),
		Inserted:        inserted,
		SkippedExisting: len(rows) - inserted,
	}, nil
}
