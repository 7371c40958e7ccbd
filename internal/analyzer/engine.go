package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/agent"
	"github.com/nao1215/trustscan/internal/ai"
	"github.com/nao1215/trustscan/internal/cache"
	"github.com/nao1215/trustscan/internal/config"
	"github.com/nao1215/trustscan/internal/crawler"
	"github.com/nao1215/trustscan/internal/fetcher"
	"github.com/nao1215/trustscan/internal/flagged"
	"github.com/nao1215/trustscan/internal/model"
)

// persistTimeout bounds cache and flagged writes after the analysis deadline.
const persistTimeout = 5 * time.Second

// DomainAgeResolver looks up the registration age of a hostname.
type DomainAgeResolver interface {
	AgeDays(ctx context.Context, hostname string) (int, error)
}

// HomepageFetcher fetches the homepage of a normalized URL.
type HomepageFetcher interface {
	Fetch(ctx context.Context, target string) (fetcher.Result, error)
}

// TLSProber performs a TLS handshake against a host.
type TLSProber interface {
	Probe(ctx context.Context, host string) (model.TLSInfo, error)
}

// Crawler fetches trust pages linked from a homepage.
type Crawler interface {
	Crawl(ctx context.Context, baseURL, homepage string) (crawler.Result, error)
}

// Judge produces an AI judgment from evidence.
type Judge interface {
	Judge(ctx context.Context, ev ai.Evidence) (*model.AIJudgment, error)
}

// Delegate is a remote analyzer.
type Delegate interface {
	Configured() bool
	Analyze(ctx context.Context, target string, timeout time.Duration, deep bool) (*agent.Result, error)
}

// Request is one analysis request. The zero value of every field except
// URL selects the default behavior.
type Request struct {
	// URL is the raw user input.
	URL string
	// Force bypasses the cache read. The result is still cached.
	Force bool
	// Timeout is the end-to-end deadline. Zero selects the default for the
	// mode; other values are clamped to [1s, 60s].
	Timeout time.Duration
	// Deep enables the trust-page crawl.
	Deep bool
}

// Engine runs analyses. It normalizes the target, serves a cached result
// when one is live, and otherwise runs the analysis pipeline: the evidence
// lookups in parallel, then the heuristics, then the AI judge when one is
// configured and enough of the deadline is left. It is safe for concurrent
// use.
//
// Design decision: every evidence source is optional. A nil collaborator
// or a lookup that fails wraps model.ErrUnavailable, leaves its evidence
// unknown and adds a warning to the result; the score is computed from
// whatever was collected. Analyze only fails on an invalid target.
//
// The analysis runs on a context detached from the caller and bounded by
// the request deadline alone. A caller that disconnects does not shorten
// the lookups, so the cache and the flagged store never receive a verdict
// built from evidence that was cut short.
type Engine struct {
	// domainAge resolves registration age. Nil leaves the age unknown.
	domainAge DomainAgeResolver
	// fetcher retrieves the homepage. Nil leaves content signals unknown.
	fetcher HomepageFetcher
	// tls performs the TLS handshake check.
	tls TLSProber
	// crawler follows trust-page links in deep mode.
	crawler Crawler
	// judge is the optional AI judge.
	judge Judge
	// delegate is the optional remote analyzer whose signals are merged
	// into the result.
	delegate Delegate

	// cache holds recent results per hostname.
	cache *cache.Cache
	// flagged records results that look risky.
	flagged *flagged.Aggregator

	// timeout and deepTimeout are the default deadlines of a request
	// without an explicit timeout.
	timeout     time.Duration
	deepTimeout time.Duration
	// domainAgeTimeout and fetchTimeout bound the individual lookups inside
	// the collect stage, so one slow registry cannot eat the whole deadline.
	domainAgeTimeout time.Duration
	fetchTimeout     time.Duration
	// aiMinBudget is the least remaining deadline worth spending on the
	// AI judge.
	aiMinBudget time.Duration

	// now stamps results and cache records.
	now func() time.Time
	// logger receives stage failures and persistence decisions.
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDomainAge sets the domain age resolver.
func WithDomainAge(r DomainAgeResolver) Option {
	return func(e *Engine) {
		e.domainAge = r
	}
}

// WithFetcher sets the homepage fetcher.
func WithFetcher(f HomepageFetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithTLSProber sets the TLS prober.
func WithTLSProber(p TLSProber) Option {
	return func(e *Engine) {
		e.tls = p
	}
}

// WithCrawler sets the deep-mode crawler.
func WithCrawler(c Crawler) Option {
	return func(e *Engine) {
		e.crawler = c
	}
}

// WithJudge sets the AI judge.
func WithJudge(j Judge) Option {
	return func(e *Engine) {
		e.judge = j
	}
}

// WithDelegate sets the remote analyzer.
func WithDelegate(d Delegate) Option {
	return func(e *Engine) {
		e.delegate = d
	}
}

// WithCache sets the result cache.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithFlagged sets the flagged-site aggregator.
func WithFlagged(a *flagged.Aggregator) Option {
	return func(e *Engine) {
		e.flagged = a
	}
}

// WithTimeouts sets the default deadlines of normal and deep analyses.
func WithTimeouts(normal, deep time.Duration) Option {
	return func(e *Engine) {
		e.timeout = normal
		e.deepTimeout = deep
	}
}

// WithStageTimeouts bounds the domain age lookup and the homepage fetch.
// Zero leaves a lookup bounded by the analysis deadline only.
func WithStageTimeouts(domainAge, fetch time.Duration) Option {
	return func(e *Engine) {
		e.domainAgeTimeout = domainAge
		e.fetchTimeout = fetch
	}
}

// WithAIMinBudget sets the least remaining time needed to call the AI judge.
func WithAIMinBudget(d time.Duration) Option {
	return func(e *Engine) {
		e.aiMinBudget = d
	}
}

// WithClock sets the time source of analysis timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine. Stages that are not configured are skipped and
// their evidence stays unknown. The cache and flagged aggregator default to
// in-memory instances.
func New(opts ...Option) *Engine {
	e := &Engine{
		timeout:          config.DefaultTimeout,
		deepTimeout:      config.DeepTimeout,
		domainAgeTimeout: config.DefaultDomainAgeTimeout,
		fetchTimeout:     config.DefaultFetchTimeout,
		aiMinBudget:      config.DefaultAIMinBudget,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.cache == nil {
		e.cache = cache.New(cache.WithLogger(e.logger))
	}
	if e.flagged == nil {
		e.flagged = flagged.NewAggregator(nil, flagged.WithLogger(e.logger))
	}
	return e
}

// Flagged returns the flagged-site aggregator.
func (e *Engine) Flagged() *flagged.Aggregator {
	return e.flagged
}

// Cache returns the result cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// deadline returns the clamped deadline of req.
func (e *Engine) deadline(req Request) time.Duration {
	cfg := config.Config{Timeout: e.timeout, DeepTimeout: e.deepTimeout}
	return cfg.ClampTimeout(req.Timeout, req.Deep)
}

// Analyze runs one analysis. The only error is an invalid URL, which wraps
// model.ErrInvalidURL.
func (e *Engine) Analyze(ctx context.Context, req Request) (*model.AnalysisResult, error) {
	normalized, err := model.NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	host := model.Hostname(normalized)

	if !req.Force {
		if hit, ok := e.cache.Get(ctx, host); ok {
			e.logger.Debug("cache hit", "hostname", host)
			return hit, nil
		}
	}

	// Only the deadline ends an analysis. A caller that goes away must not
	// turn missing evidence into a risk verdict.
	timeout := e.deadline(req)
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	var result *model.AnalysisResult
	if e.delegate != nil && e.delegate.Configured() {
		result, err = e.analyzeRemote(actx, normalized, timeout, req.Deep)
		if err != nil {
			e.logger.Warn("agent analysis failed, using local pipeline", "url", normalized, "error", err)
		}
	}
	if result == nil {
		result = e.analyzeLocal(actx, normalized, req.Deep, err)
	}

	e.logger.Info("analysis complete",
		"url", normalized,
		"score", result.Score,
		"status", result.Status,
		"ai", result.AIAnalysis != nil,
		"duration", time.Since(start),
	)

	if !collected(result) {
		e.logger.Warn("evidence never collected, result not persisted", "url", normalized)
		return result, nil
	}

	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer pcancel()
	e.cache.Put(pctx, host, result)
	e.flagged.Observe(pctx, result, result.AnalyzedAt)

	return result, nil
}

// collected reports whether the evidence lookups of r ran. A result whose
// collect stage was skipped says nothing about the site and is neither
// cached nor flagged.
func collected(r *model.AnalysisResult) bool {
	if r.AgentSignals == nil {
		return false
	}
	skipped := stepCollect + ": skipped"
	for _, w := range r.AgentSignals.Warnings {
		if strings.HasPrefix(w, skipped) {
			return false
		}
	}
	return true
}

// analyzeRemote delegates the analysis to the agent with 75% of the
// deadline.
func (e *Engine) analyzeRemote(ctx context.Context, normalized string, timeout time.Duration, deep bool) (*model.AnalysisResult, error) {
	start := time.Now()
	res, err := e.delegate.Analyze(ctx, normalized, timeout*3/4, deep)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Signals == nil {
		return nil, fmt.Errorf("%w: %w: empty result", model.ErrUnavailable, agent.ErrInvalidResponse)
	}

	ev := evidenceFromAgent(normalized, deep, res)
	ev.RecordTiming("agent", time.Since(start))

	sig := evaluate(ev)
	if ev.AI != nil {
		ai.ApplyGuardrail(ev.AI, aiEvidence(ev, sig))
	}

	result := e.assemble(ev, sig)
	result.AgentSignals.Source = model.SourceAgent
	for name, ms := range res.Signals.TimingsMs {
		if _, ok := result.AgentSignals.TimingsMs[name]; !ok {
			result.AgentSignals.TimingsMs[name] = ms
		}
	}
	return result, nil
}

// analyzeLocal runs the local pipeline. delegateErr, when set, is recorded
// as a warning.
func (e *Engine) analyzeLocal(ctx context.Context, normalized string, deep bool, delegateErr error) *model.AnalysisResult {
	ev := newEvidence(normalized, deep)
	if delegateErr != nil {
		ev.AddWarning(fmt.Sprintf("agent: %v", delegateErr))
	}

	sig, err := e.run(ctx, ev)
	if err != nil {
		e.logger.Error("analysis pipeline error", "url", normalized, "error", err)
	}
	return e.assemble(ev, sig)
}
