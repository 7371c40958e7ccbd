package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// Evidence is the working set of one analysis. Steps running in parallel
// must write disjoint fields; warnings and timings are synchronized.
type Evidence struct {
	// URL is the normalized URL under analysis.
	URL string
	// Hostname is the lowercase hostname of URL.
	Hostname string
	// Deep enables the multi-page crawl.
	Deep bool

	DomainAgeDays *int
	TLS           model.TLSInfo
	Fetch         model.FetchInfo
	// HTML is the homepage HTML, empty when unavailable.
	HTML string

	Crawl *model.CrawlSummary
	// ExtraHTML holds the HTML of crawled pages.
	ExtraHTML []string

	AI *model.AIJudgment

	mu       sync.Mutex
	warnings []string
	timings  map[string]time.Duration
}

// NewEvidence creates the working set for a normalized URL.
func NewEvidence(normalizedURL string, deep bool) *Evidence {
	return &Evidence{
		URL:      normalizedURL,
		Hostname: model.Hostname(normalizedURL),
		Deep:     deep,
		Fetch:    model.FetchInfo{FinalURL: normalizedURL, RedirectChain: []string{}},
		timings:  make(map[string]time.Duration),
	}
}

// AddWarning records a non-fatal problem.
func (e *Evidence) AddWarning(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warnings = append(e.warnings, msg)
}

// Warnings returns the recorded warnings sorted for stable output.
func (e *Evidence) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.warnings...)
	sort.Strings(out)
	return out
}

// RecordTiming stores how long the named step took.
func (e *Evidence) RecordTiming(name string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timings[name] = d
}

// Timing returns the recorded duration of a step.
func (e *Evidence) Timing(name string) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.timings[name]
	return d, ok
}

// TimingsMs returns the recorded durations in milliseconds.
func (e *Evidence) TimingsMs() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int64, len(e.timings))
	for name, d := range e.timings {
		out[name] = d.Milliseconds()
	}
	return out
}

// Signals snapshots the evidence into the public bundle. The result shares
// no mutable state with e.
func (e *Evidence) Signals() *model.AgentSignals {
	sig := &model.AgentSignals{
		Source:        model.SourceLocal,
		DomainAgeDays: e.DomainAgeDays,
		TLS:           e.TLS,
		Fetch:         e.Fetch,
		Crawl:         e.Crawl,
		AI:            e.AI,
		TimingsMs:     e.TimingsMs(),
	}
	if w := e.Warnings(); len(w) > 0 {
		sig.Warnings = w
	}
	return sig
}
