package flagged

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// Aggregator records flag-worthy analyses. Observe filters results with
// ShouldFlag, reduces them to a record with BuildRecord and upserts the
// record into the Store, which merges repeated sightings of a hostname.
//
// Design decision: a durable store that fails does not lose the
// observation. The record is written to a process-local MemoryStore and
// reads that fail on the durable store are served from the same fallback,
// so a database outage degrades to in-memory behavior instead of an error.
type Aggregator struct {
	// store is the primary record store.
	store Store
	// fallback holds records the primary store failed to accept. It is
	// the primary store itself when no durable store was given.
	fallback *MemoryStore
	// logger receives store failures.
	logger *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// NewAggregator creates an Aggregator over store. A nil store selects a
// MemoryStore.
func NewAggregator(store Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:    store,
		fallback: NewMemoryStore(),
	}
	if a.store == nil {
		a.store = a.fallback
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// Observe upserts r when it is flag-worthy. It reports whether r was
// flagged; the stored record is returned when it was.
func (a *Aggregator) Observe(ctx context.Context, r *model.AnalysisResult, now time.Time) (model.FlaggedSiteRecord, bool) {
	if !ShouldFlag(r) {
		return model.FlaggedSiteRecord{}, false
	}

	rec := BuildRecord(r, now)
	stored, err := a.store.UpsertFlagged(ctx, rec)
	if err == nil {
		a.logger.Info("site flagged", "hostname", stored.Hostname, "score", stored.Score, "times_observed", stored.TimesObserved)
		return stored, true
	}

	a.logger.Warn("flagged store upsert failed, keeping record in memory", "hostname", rec.Hostname, "error", err)
	stored, err = a.fallback.UpsertFlagged(ctx, rec)
	if err != nil {
		a.logger.Warn("flagged record dropped", "hostname", rec.Hostname, "error", err)
		return rec, true
	}
	return stored, true
}

// Search returns one page of flagged records.
func (a *Aggregator) Search(ctx context.Context, q model.FlaggedQuery) (model.FlaggedPage, error) {
	q = NormalizeQuery(q)
	page, err := a.store.SearchFlagged(ctx, q)
	if err == nil {
		return page, nil
	}
	a.logger.Warn("flagged store search failed, serving memory", "error", err)
	return a.fallback.SearchFlagged(ctx, q)
}

// Get returns the flagged record of hostname or an error wrapping
// model.ErrNotFound.
func (a *Aggregator) Get(ctx context.Context, hostname string) (model.FlaggedSiteRecord, error) {
	rec, err := a.store.GetFlagged(ctx, hostname)
	if err == nil || errors.Is(err, model.ErrNotFound) {
		return rec, err
	}
	a.logger.Warn("flagged store read failed, serving memory", "hostname", hostname, "error", err)
	return a.fallback.GetFlagged(ctx, hostname)
}
