package ingest

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/DevKelvin21/call-backfill-cf/internal/logging"
	"github.com/DevKelvin21/call-backfill-cf/internal/merge"
	"github.com/google/uuid"
)

// processedPrefix is where completed source files are relocated.
const processedPrefix = "processed/"

// ObjectStore is the slice of object storage the pipeline needs.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Move(ctx context.Context, srcKey, dstKey string) error
}

// BatchLoader moves a normalized batch into the durable staging area.
type BatchLoader interface {
	LoadStaging(ctx context.Context, batchID uuid.UUID, records []CanonicalRecord) error
}

// Merger reconciles a staged batch into the clean dataset.
type Merger interface {
	Reconcile(ctx context.Context, batchID uuid.UUID) (merge.Outcome, error)
}

// AuditRecord is the per-file audit row handed to the audit collaborator.
type AuditRecord struct {
	SourceFile          string
	RowsTotal           int
	RowsInserted        *int
	RowsSkippedExisting *int
	RowsErrored         int
	Notes               string
}

// Auditor records exactly one audit row per processed file.
type Auditor interface {
	InsertAudit(ctx context.Context, rec AuditRecord) error
}

// FileOutcome is the per-file counter set.
type FileOutcome struct {
	SourceFile   string `json:"sourceFile"`
	Skipped      bool   `json:"skipped,omitempty"` // outside the input prefix
	RowsTotal    int    `json:"rowsTotal"`
	RowsAccepted int    `json:"rowsAccepted"`
	RowsRejected int    `json:"rowsRejected"`
	RowsInserted int    `json:"rowsInserted"`
	RowsExisting int    `json:"rowsExisting"`
}

// Options holds the pipeline's read-only configuration, established once at
// startup and never mutated during processing.
type Options struct {
	Bucket       string
	InputPrefix  string
	OutputPrefix string
}

// Pipeline normalizes one export file at a time: header resolution once per
// file, per-row mapping, NDJSON emission, staging load, time-tolerant merge,
// audit, and relocation of the source object. Strictly sequential; retried
// invocations are safe because duplicate suppression lives in the merge
// engine, not in exactly-once delivery.
type Pipeline struct {
	store   ObjectStore
	loader  BatchLoader
	merger  Merger
	auditor Auditor
	mapper  *Mapper
	opts    Options
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(store ObjectStore, loader BatchLoader, merger Merger, auditor Auditor, mapper *Mapper, opts Options) *Pipeline {
	return &Pipeline{
		store:   store,
		loader:  loader,
		merger:  merger,
		auditor: auditor,
		mapper:  mapper,
		opts:    opts,
	}
}

// ProcessObject runs the full pipeline for one uploaded object.
//
// Row-level failures (unparseable timestamps) are counted, never surfaced.
// A file with zero accepted rows writes no batch and invokes no load or
// merge, but still gets its audit row and relocation. Infrastructure
// failures propagate and leave the source object in place so a re-invocation
// can reprocess it.
func (p *Pipeline) ProcessObject(ctx context.Context, key string) (*FileOutcome, error) {
	log := logging.FromContext(ctx)

	sourceFile := fmt.Sprintf("s3://%s/%s", p.opts.Bucket, key)
	outcome := &FileOutcome{SourceFile: sourceFile}

	// Unrelated uploads land in the same bucket; only the input prefix is ours.
	if !strings.HasPrefix(key, p.opts.InputPrefix) {
		outcome.Skipped = true
		return outcome, nil
	}

	data, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read source object: %w", err)
	}

	header, rows, err := ReadRows(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sourceFile, err)
	}

	headers := ResolveHeaders(header)

	var batch Batch
	for _, row := range rows {
		outcome.RowsTotal++
		rec, ok := p.mapper.Map(row, headers, sourceFile)
		if !ok {
			outcome.RowsRejected++
			continue
		}
		batch.Append(rec)
	}
	outcome.RowsAccepted = batch.Len()

	var mergeOut *merge.Outcome
	if batch.Len() > 0 {
		ndjson, err := batch.EncodeNDJSON()
		if err != nil {
			return nil, fmt.Errorf("encode batch: %w", err)
		}

		tmpKey := p.opts.OutputPrefix + key + ".ndjson"
		if err := p.store.Put(ctx, tmpKey, ndjson, "application/x-ndjson"); err != nil {
			return nil, fmt.Errorf("write normalized batch: %w", err)
		}

		batchID := uuid.New()
		if err := p.loader.LoadStaging(ctx, batchID, batch.Records); err != nil {
			return nil, fmt.Errorf("load staging: %w", err)
		}

		out, err := p.merger.Reconcile(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("merge batch: %w", err)
		}
		mergeOut = &out
		outcome.RowsInserted = out.Inserted
		outcome.RowsExisting = out.SkippedExisting
	}

	audit := AuditRecord{
		SourceFile:  sourceFile,
		RowsTotal:   outcome.RowsTotal,
		RowsErrored: outcome.RowsRejected,
		Notes:       fmt.Sprintf("Processed good=%d, bad=%d", outcome.RowsAccepted, outcome.RowsRejected),
	}
	if mergeOut != nil {
		audit.RowsInserted = &mergeOut.Inserted
		audit.RowsSkippedExisting = &mergeOut.SkippedExisting
	}
	if err := p.auditor.InsertAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("insert audit record: %w", err)
	}

	if err := p.store.Move(ctx, key, processedPrefix+path.Base(key)); err != nil {
		return nil, fmt.Errorf("relocate source object: %w", err)
	}

	log.Info("file processed",
		"source_file", sourceFile,
		"rows_total", outcome.RowsTotal,
		"rows_accepted", outcome.RowsAccepted,
		"rows_rejected", outcome.RowsRejected,
		"rows_inserted", outcome.RowsInserted,
	)
	return outcome, nil
}
