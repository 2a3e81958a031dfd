// Package pipeline orchestrates one ingestion run: validate raw records,
// reconcile against the remote store, and batch-upload the new subset.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"ingest/internal/docstore"
	"ingest/internal/metrics"
	"ingest/internal/recipe"
)

// Options configures one run.
type Options struct {
	Raw    []recipe.Raw
	Source recipe.Source
	Store  docstore.Store

	BatchSize int
	Workers   int // concurrent batch uploads; <=1 means sequential

	DryRun          bool
	IncludeUploaded bool // bypass dedup: treat every candidate as new

	Verbose bool
}

// Run drives the state machine
//
//	SELECTED -> VALIDATED -> DEDUPED -> (DRY_RUN_STOP | UPLOADING) -> DONE
//
// Per-record problems (validation rejections, store rejections) become
// report entries and never abort the run. Only caller misuse and
// store-connectivity failures return an error; when they do, no report is
// returned because its upload accounting cannot be trusted.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	report := &Report{
		RunID:            uuid.NewString(),
		Source:           opts.Source.String(),
		DryRun:           opts.DryRun,
		StartedAt:        time.Now().UTC(),
		Invalid:          []Entry{},
		SkippedDuplicate: []string{},
		Failed:           []Entry{},
	}
	report.Selected = len(opts.Raw)
	metrics.Count("ingest.selected", int64(report.Selected))

	// VALIDATED: transform every raw record; collect all rejection reasons.
	candidates := make([]*recipe.Recipe, 0, len(opts.Raw))
	for i, raw := range opts.Raw {
		rec, rej := recipe.Transform(raw, opts.Source)
		if rej != nil {
			key := rej.Key
			if key == "" {
				key = fmt.Sprintf("#%d", i)
			}
			for _, reason := range rej.Reasons {
				report.Invalid = append(report.Invalid, Entry{Key: key, Reason: reason})
			}
			continue
		}
		candidates = append(candidates, rec)
	}
	report.Valid = len(candidates)
	metrics.Count("ingest.valid", int64(report.Valid))
	metrics.Count("ingest.invalid", int64(len(report.Invalid)))

	// DEDUPED: one ListIDs snapshot per run, taken before any batch starts.
	// Uploads within this run never see one another as "existing".
	var existing map[string]struct{}
	if !opts.IncludeUploaded {
		var err error
		existing, err = opts.Store.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list existing ids: %w", err)
		}
		if opts.Verbose {
			log.Printf("pipeline: %d documents already in store", len(existing))
		}
	}

	fresh, duplicate := Partition(candidates, existing, opts.IncludeUploaded)
	for _, rec := range duplicate {
		report.SkippedDuplicate = append(report.SkippedDuplicate, rec.ID)
	}
	metrics.Count("ingest.skipped_duplicate", int64(len(duplicate)))

	// DRY_RUN_STOP: no store mutation of any kind in this mode.
	if opts.DryRun {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	// UPLOADING
	if err := upload(ctx, opts, fresh, report); err != nil {
		return nil, err
	}
	metrics.Count("ingest.uploaded", int64(report.Uploaded))
	metrics.Count("ingest.failed", int64(len(report.Failed)))

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// upload sends fresh records in batches of at most opts.BatchSize, up to
// opts.Workers batches in flight. Each record has exactly one outcome slot,
// reserved up front and written at most once by the goroutine that owns its
// batch, so accumulation needs no locking.
func upload(ctx context.Context, opts Options, fresh []*recipe.Recipe, report *Report) error {
	if len(fresh) == 0 {
		return nil
	}

	if err := opts.Store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	type slot struct {
		key     string
		outcome docstore.Outcome
	}
	slots := make([]slot, len(fresh))

	type batch struct {
		start, end int // index range into fresh and slots
	}
	var batches []batch
	for start := 0; start < len(fresh); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		batches = append(batches, batch{start, end})
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, opts.Workers)
		errMu    sync.Mutex
		fatalErr error
	)

	for _, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()

			recs := make(map[string]*recipe.Recipe, b.end-b.start)
			for _, rec := range fresh[b.start:b.end] {
				recs[rec.ID] = rec
			}

			outcomes, err := opts.Store.PutBatch(ctx, recs)
			if err != nil {
				errMu.Lock()
				if fatalErr == nil {
					fatalErr = fmt.Errorf("put batch: %w", err)
				}
				errMu.Unlock()
				return
			}

			for i, rec := range fresh[b.start:b.end] {
				oc, ok := outcomes[rec.ID]
				if !ok {
					oc = docstore.Outcome{Reason: "no outcome reported by store"}
				}
				slots[b.start+i] = slot{key: rec.ID, outcome: oc}
			}
		}(b)
	}
	wg.Wait()

	if fatalErr != nil {
		// Connectivity-level failure: the run's upload accounting cannot be
		// trusted, so surface a run-level error instead of a report.
		return fatalErr
	}

	for _, s := range slots {
		if s.outcome.OK {
			report.Uploaded++
		} else {
			report.Failed = append(report.Failed, Entry{Key: s.key, Reason: s.outcome.Reason})
		}
	}
	return nil
}
