// Package warehouse is the Postgres side of the pipeline: the staging table
// normalized batches are bulk-loaded into, the clean table merges promote
// into, the legacy table merges also check against, and the ingestion audit
// table. Table identifiers come from configuration so environments can point
// at their own schemas.
package warehouse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DevKelvin21/call-backfill-cf/internal/ingest"
	"github.com/DevKelvin21/call-backfill-cf/internal/merge"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// identifierPattern restricts configured table names to plain, optionally
// schema-qualified identifiers.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// Tables names the four destination tables.
type Tables struct {
	Staging string
	Clean   string
	Legacy  string
	Audit   string
}

// Warehouse wraps a pgx pool with the pipeline's table layout.
type Warehouse struct {
	pool         *pgxpool.Pool
	staging      string
	stagingIdent pgx.Identifier
	clean        string
	legacy       string
	audit        string
}

// New validates the configured table identifiers and returns a Warehouse.
func New(pool *pgxpool.Pool, tables Tables) (*Warehouse, error) {
	names := map[string]string{
		"staging": tables.Staging,
		"clean":   tables.Clean,
		"legacy":  tables.Legacy,
		"audit":   tables.Audit,
	}
	for role, name := range names {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid %s table identifier %q", role, name)
		}
	}
	return &Warehouse{
		pool:         pool,
		staging:      quoteIdentifier(tables.Staging),
		stagingIdent: pgx.Identifier(strings.Split(tables.Staging, ".")),
		clean:        quoteIdentifier(tables.Clean),
		legacy:       quoteIdentifier(tables.Legacy),
		audit:        quoteIdentifier(tables.Audit),
	}, nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// recordColumns is the canonical column set shared by staging and clean.
// Order matters: COPY and the promote INSERT both rely on it.
var recordColumns = []string{
	"call_date",
	"first_name", "last_name", "address", "call_notes",
	"talk_time", "site_name", "phone", "email", "lead_id",
	"list_description", "list_id", "disposition", "term_reason",
	"subscriber_id", "source", "lead_type",
	"source_local_time", "source_timezone", "source_file",
	"dedup_key", "row_hash", "raw",
}

// LoadStaging bulk-loads one normalized batch into the staging table using
// the COPY protocol. seq preserves arrival order within the batch.
func (w *Warehouse) LoadStaging(ctx context.Context, batchID uuid.UUID, records []ingest.CanonicalRecord) error {
	columns := append([]string{"batch_id", "seq"}, recordColumns...)

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = append([]any{batchID, i}, recordValues(rec)...)
	}

	_, err := w.pool.CopyFrom(ctx, w.stagingIdent, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into staging: %w", err)
	}
	return nil
}

func recordValues(rec ingest.CanonicalRecord) []any {
	return []any{
		rec.UTC,
		rec.FirstName, rec.LastName, rec.Address, rec.CallNotes,
		rec.TalkTime, rec.SiteName, rec.Phone, rec.Email, rec.LeadID,
		rec.ListDescription, rec.ListID, rec.Disposition, rec.TermReason,
		rec.SubscriberID, rec.Source, rec.LeadType,
		rec.SourceLocalTime, rec.SourceTimezone, rec.SourceFile,
		rec.DedupKey, rec.RowHash, rec.Raw,
	}
}

// StagedBatch implements merge.Store: the batch's dedup-relevant fields in
// arrival order.
func (w *Warehouse) StagedBatch(ctx context.Context, batchID uuid.UUID) ([]merge.Row, error) {
	q := fmt.Sprintf(`
		SELECT seq,
		       COALESCE(phone, ''), COALESCE(lead_id, ''),
		       COALESCE(list_id, ''), COALESCE(disposition, ''),
		       call_date
		FROM %s
		WHERE batch_id = $1
		ORDER BY seq`, w.staging)

	rows, err := w.pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []merge.Row
	for rows.Next() {
		var r merge.Row
		if err := rows.Scan(&r.Seq, &r.Fields.Phone, &r.Fields.LeadID,
			&r.Fields.ListID, &r.Fields.Disposition, &r.At); err != nil {
			return nil, err
		}
		r.At = r.At.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Candidates implements merge.Store. It narrows by the batch's time window
// plus the distinct phone values; the planner re-checks the full key, so
// over-returning here is harmless.
func (w *Warehouse) Candidates(ctx context.Context, keys []merge.Fields, from, to time.Time) ([]merge.Candidate, error) {
	phones := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.Phone]; !ok {
			seen[k.Phone] = struct{}{}
			phones = append(phones, k.Phone)
		}
	}

	q := fmt.Sprintf(`
		SELECT COALESCE(phone, ''), COALESCE(lead_id, ''),
		       COALESCE(list_id, ''), COALESCE(disposition, ''),
		       call_date
		FROM %s
		WHERE call_date BETWEEN $1 AND $2 AND COALESCE(phone, '') = ANY($3)
		UNION ALL
		SELECT COALESCE(phone, ''), COALESCE(lead_id, ''),
		       COALESCE(list_id, ''), COALESCE(disposition, ''),
		       call_date
		FROM %s
		WHERE call_date BETWEEN $1 AND $2 AND COALESCE(phone, '') = ANY($3)`,
		w.clean, w.legacy)

	rows, err := w.pool.Query(ctx, q, from, to, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []merge.Candidate
	for rows.Next() {
		var c merge.Candidate
		if err := rows.Scan(&c.Fields.Phone, &c.Fields.LeadID,
			&c.Fields.ListID, &c.Fields.Disposition, &c.At); err != nil {
			return nil, err
		}
		c.At = c.At.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// PromoteAndClear implements merge.Store. The insert and the staging delete
// share one transaction: either the batch is fully promoted and cleared, or
// it stays staged and the merge can be retried.
func (w *Warehouse) PromoteAndClear(ctx context.Context, batchID uuid.UUID, seqs []int) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin promote: %w", err)
	}
	defer tx.Rollback(ctx)

	cols := strings.Join(recordColumns, ", ")
	inserted := 0
	if len(seqs) > 0 {
		q := fmt.Sprintf(`
			INSERT INTO %s (%s)
			SELECT %s FROM %s
			WHERE batch_id = $1 AND seq = ANY($2)`,
			w.clean, cols, cols, w.staging)
		tag, err := tx.Exec(ctx, q, batchID, seqs)
		if err != nil {
			return 0, fmt.Errorf("promote staged rows: %w", err)
		}
		inserted = int(tag.RowsAffected())
	}

	if _, err := tx.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE batch_id = $1", w.staging), batchID); err != nil {
		return 0, fmt.Errorf("clear staged batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit promote: %w", err)
	}
	return inserted, nil
}

// InsertAudit writes one row of the ingestion audit table: exactly one per
// processed file, written regardless of whether any rows were accepted.
func (w *Warehouse) InsertAudit(ctx context.Context, rec ingest.AuditRecord) error {
	q := fmt.Sprintf(`
		INSERT INTO %s
			(id, source_file, rows_total, rows_inserted, rows_skipped_existing, rows_errored, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, w.audit)

	_, err := w.pool.Exec(ctx, q,
		uuid.New(), rec.SourceFile, rec.RowsTotal,
		rec.RowsInserted, rec.RowsSkippedExisting, rec.RowsErrored, rec.Notes)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
