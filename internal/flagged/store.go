package flagged

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/trustscan/internal/model"
)

// Store persists flagged records keyed by hostname. Hostnames compare
// case-insensitively. Implementations must make UpsertFlagged atomic so that
// concurrent sightings of one hostname are all counted.
type Store interface {
	// UpsertFlagged inserts rec as a first sighting or merges it into the
	// existing record of the same hostname, atomically. It returns the
	// stored record.
	UpsertFlagged(ctx context.Context, rec model.FlaggedSiteRecord) (model.FlaggedSiteRecord, error)

	// GetFlagged returns the record of hostname or an error wrapping
	// model.ErrNotFound.
	GetFlagged(ctx context.Context, hostname string) (model.FlaggedSiteRecord, error)

	// SearchFlagged returns one page of matching records, most recently
	// observed first.
	SearchFlagged(ctx context.Context, q model.FlaggedQuery) (model.FlaggedPage, error)
}

// MemoryStore is a process-local Store. Its state does not survive a
// restart. It backs the memory storage mode and serves as the fallback of
// an Aggregator whose durable store fails.
//
// Searches scan every record, which is fine for the record counts a
// single process accumulates.
type MemoryStore struct {
	// mu guards records.
	mu sync.RWMutex
	// records is keyed by lower-cased hostname.
	records map[string]model.FlaggedSiteRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.FlaggedSiteRecord)}
}

// UpsertFlagged implements Store.
func (m *MemoryStore) UpsertFlagged(_ context.Context, rec model.FlaggedSiteRecord) (model.FlaggedSiteRecord, error) {
	key := strings.ToLower(rec.Hostname)
	if key == "" {
		return model.FlaggedSiteRecord{}, fmt.Errorf("flagged record without hostname")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[key]; ok {
		rec = Merge(existing, rec)
	}
	m.records[key] = rec
	return rec, nil
}

// GetFlagged implements Store.
func (m *MemoryStore) GetFlagged(_ context.Context, hostname string) (model.FlaggedSiteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[strings.ToLower(hostname)]
	if !ok {
		return model.FlaggedSiteRecord{}, fmt.Errorf("flagged site %s: %w", hostname, model.ErrNotFound)
	}
	return rec, nil
}

// SearchFlagged implements Store.
func (m *MemoryStore) SearchFlagged(_ context.Context, q model.FlaggedQuery) (model.FlaggedPage, error) {
	q = NormalizeQuery(q)

	m.mu.RLock()
	matched := make([]model.FlaggedSiteRecord, 0)
	for _, rec := range m.records {
		if Matches(rec, q.Text) {
			matched = append(matched, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastObservedAtMs != matched[j].LastObservedAtMs {
			return matched[i].LastObservedAtMs > matched[j].LastObservedAtMs
		}
		return matched[i].Hostname < matched[j].Hostname
	})

	page := model.FlaggedPage{Items: []model.FlaggedSiteRecord{}, Total: len(matched)}
	if q.Offset < len(matched) {
		end := min(q.Offset+q.Limit, len(matched))
		page.Items = matched[q.Offset:end]
	}
	return page, nil
}
