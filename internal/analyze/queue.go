// Package analyze orchestrates the per-document pipeline: read, decrypt,
// select extraction mode, dedup against persisted results, and dispatch the
// inference calls.
//
// Processing runs in two strictly ordered phases across the whole queue.
// Phase A prepares every pending item sequentially; Phase B then dispatches
// all remaining inference calls concurrently and waits for every one of them
// to settle. One item's failure never blocks or rolls back another's result.
package analyze

import (
	"context"
	"errors"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/fingerprint"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/passwords"
)

// Analyzer is the external inference call.
type Analyzer interface {
	AnalyzeStatement(ctx context.Context, p *extract.Payload) (*ledger.StatementRecord, error)
}

// Queue drives pending entries of a store through the pipeline.
type Queue struct {
	store    *ledger.Store
	resolver *passwords.Resolver
	selector *extract.Selector
	analyzer Analyzer
}

// NewQueue creates an analysis queue over the given store.
func NewQueue(store *ledger.Store, resolver *passwords.Resolver, selector *extract.Selector, analyzer Analyzer) *Queue {
	return &Queue{store: store, resolver: resolver, selector: selector, analyzer: analyzer}
}

type dispatchItem struct {
	id      string
	fp      string
	payload *extract.Payload
}

// ProcessPending runs Phase A over every pending entry, then Phase B over
// everything still in flight. It returns once all dispatched calls have
// settled. Per-document failures are captured into the entries' error status
// and never propagate.
func (q *Queue) ProcessPending(ctx context.Context) {
	log := logger.FromContext(ctx)

	// Phase A: sequential preparation per item.
	var dispatches []dispatchItem
	for _, e := range q.store.Entries() {
		if e.Status != ledger.StatusPending {
			continue
		}
		if err := q.store.StartProcessing(e.ID); err != nil {
			continue
		}

		payload, fp, err := q.prepare(ctx, e)
		if err != nil {
			_ = q.store.SetError(e.ID, err.Error())
			log.Warn().Err(err).Str("entry", e.ID).Str("file", e.FileName).Msg("preparation failed")
			continue
		}

		// Dedup: identical content analyzed in a prior session must never
		// incur a second inference call.
		if rec := q.store.SnapshotResultFor(fp, e.ID); rec != nil {
			_ = q.store.SetResult(e.ID, rec)
			log.Info().Str("entry", e.ID).Str("fingerprint", fp).Msg("reused persisted result")
			continue
		}

		dispatches = append(dispatches, dispatchItem{id: e.ID, fp: fp, payload: payload})
	}

	// Phase B: concurrent dispatch, collective settlement.
	var wg sync.WaitGroup
	for _, d := range dispatches {
		wg.Add(1)
		go func(d dispatchItem) {
			defer wg.Done()
			q.dispatch(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (q *Queue) prepare(ctx context.Context, e *ledger.Entry) (*extract.Payload, string, error) {
	if len(e.Source) == 0 {
		return nil, "", errors.New("analyze: entry has no source bytes")
	}

	fp := fingerprint.Sum(e.Source)
	_ = q.store.SetFingerprint(e.ID, fp)

	doc, err := q.resolver.Open(ctx, e.Source)
	if err != nil {
		return nil, fp, err
	}
	defer doc.Close()

	payload, err := q.selector.Build(ctx, doc, fp)
	if err != nil {
		return nil, fp, err
	}
	return payload, fp, nil
}

func (q *Queue) dispatch(ctx context.Context, d dispatchItem) {
	log := logger.FromContext(ctx)

	rec, err := q.analyzer.AnalyzeStatement(ctx, d.payload)
	if err != nil {
		_ = q.store.SetError(d.id, err.Error())
		log.Warn().Err(err).Str("entry", d.id).Msg("inference failed")
		return
	}

	// The model is not contractually required to echo the fingerprint; a
	// missing or mismatching bill_hash gets the computed one stamped in so
	// merge logic always has its join key.
	if rec.BillHash != d.fp {
		rec.BillHash = d.fp
	}

	if err := q.store.SetResult(d.id, rec); err != nil {
		log.Warn().Err(err).Str("entry", d.id).Msg("could not record result")
		return
	}
	log.Info().Str("entry", d.id).Str("institution", rec.InstitutionName).Msg("analysis complete")
}
