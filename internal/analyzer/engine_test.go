package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/trustscan/internal/agent"
	"github.com/nao1215/trustscan/internal/ai"
	"github.com/nao1215/trustscan/internal/crawler"
	"github.com/nao1215/trustscan/internal/fetcher"
	"github.com/nao1215/trustscan/internal/heuristics"
	"github.com/nao1215/trustscan/internal/model"
)

const trustedHomepage = `<html><head><title>Example Store</title>
<meta name="description" content="Quality goods since 1999"></head>
<body>
<a href="/about">About us</a> <a href="/contact">Contact</a>
<p>Read our privacy policy, terms of service, refund and shipping pages.</p>
<p>Customer support: help@example.com</p>
</body></html>`

type fakeDomainAge struct {
	days int
	err  error
	// block makes the lookup hang until its context ends.
	block bool
	calls atomic.Int32
}

func (f *fakeDomainAge) AgeDays(ctx context.Context, _ string) (int, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.days, f.err
}

type fakeFetcher struct {
	html   string
	status int
	final  string
	err    error
	calls  atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, target string) (fetcher.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return fetcher.Result{Info: fetcher.Unavailable(target, nil)}, f.err
	}
	final := f.final
	if final == "" {
		final = target
	}
	status := f.status
	ct := "text/html; charset=utf-8"
	return fetcher.Result{
		Info: model.FetchInfo{
			FinalURL:      final,
			Status:        &status,
			ContentType:   &ct,
			RedirectChain: []string{},
			Headers:       map[string]string{"strict-transport-security": "max-age=63072000"},
			HTMLAvailable: true,
		},
		HTML: f.html,
	}, nil
}

type fakeTLS struct {
	ok  bool
	err error
}

func (f *fakeTLS) Probe(context.Context, string) (model.TLSInfo, error) {
	if f.err != nil {
		return model.TLSInfo{}, f.err
	}
	ok := f.ok
	return model.TLSInfo{Supported: &ok, Issuer: "Example CA"}, nil
}

type fakeCrawler struct {
	calls atomic.Int32
}

func (f *fakeCrawler) Crawl(context.Context, string, string) (crawler.Result, error) {
	f.calls.Add(1)
	return crawler.Result{
		Summary: model.CrawlSummary{
			Requested: 1,
			Fetched:   1,
			Pages:     []model.CrawlPage{{URL: "https://shop.example.com/contact", Status: 200, OK: true}},
		},
		HTML: []string{`<p>Write to orders@example.com</p>`},
	}, nil
}

type fakeJudge struct {
	judgment *model.AIJudgment
	err      error
	// block makes the judge hang until its context ends.
	block bool
	mu    sync.Mutex
	got   []ai.Evidence
}

func (f *fakeJudge) Judge(ctx context.Context, ev ai.Evidence) (*model.AIJudgment, error) {
	f.mu.Lock()
	f.got = append(f.got, ev)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	j := *f.judgment
	return &j, nil
}

func (f *fakeJudge) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type fakeDelegate struct {
	result *agent.Result
	err    error
	calls  atomic.Int32
}

func (f *fakeDelegate) Configured() bool { return true }

func (f *fakeDelegate) Analyze(context.Context, string, time.Duration, bool) (*agent.Result, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func unavailable(msg string) error {
	return fmt.Errorf("%w: %s", model.ErrUnavailable, msg)
}

func hasWarning(r *model.AnalysisResult, prefix string) bool {
	for _, w := range r.AgentSignals.Warnings {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func TestAnalyzeInvalidURL(t *testing.T) {
	t.Parallel()

	e := New()
	for _, in := range []string{"", "https://localhost", "ftp://example.com"} {
		if _, err := e.Analyze(context.Background(), Request{URL: in}); !errors.Is(err, model.ErrInvalidURL) {
			t.Errorf("Analyze(%q) error = %v, want ErrInvalidURL", in, err)
		}
	}
}

func TestAnalyzeEstablishedSite(t *testing.T) {
	t.Parallel()

	e := New(
		WithDomainAge(&fakeDomainAge{days: 4000}),
		WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
		WithTLSProber(&fakeTLS{ok: true}),
		WithClock(newClock().Now),
	)

	r, err := e.Analyze(context.Background(), Request{URL: "example.com"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if r.NormalizedURL != "https://example.com/" {
		t.Errorf("NormalizedURL = %q", r.NormalizedURL)
	}
	if r.Score < 75 || r.Status != model.StatusLowRisk {
		t.Errorf("score = %d status = %q, want Low Risk", r.Score, r.Status)
	}
	if r.Cached {
		t.Error("fresh result marked cached")
	}
	if r.AIAnalysis != nil {
		t.Error("AI analysis without a judge")
	}
	for _, key := range []string{heuristics.KeyHTTPS, heuristics.KeyDomainAge, heuristics.KeyBusinessInfo} {
		if item, ok := r.Item(key); !ok || item.Verdict != model.VerdictGood {
			t.Errorf("item %s = %+v, want good", key, item)
		}
	}
	sig := r.AgentSignals
	if sig.Source != model.SourceLocal {
		t.Errorf("Source = %q", sig.Source)
	}
	for _, step := range []string{stepCollect, stepDomainAge, stepFetch, stepTLS, stepHeuristics} {
		if _, ok := sig.TimingsMs[step]; !ok {
			t.Errorf("no timing for %s: %v", step, sig.TimingsMs)
		}
	}
	if !r.AnalyzedAt.Equal(newClock().Now()) {
		t.Errorf("AnalyzedAt = %v", r.AnalyzedAt)
	}

	if _, err := e.Flagged().Get(context.Background(), "example.com"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("trusted site flagged: %v", err)
	}
}

func TestAnalyzeNewSiteWithoutEvidence(t *testing.T) {
	t.Parallel()

	e := New(
		WithDomainAge(&fakeDomainAge{days: 30}),
		WithFetcher(&fakeFetcher{err: unavailable("connection refused")}),
		WithTLSProber(&fakeTLS{err: unavailable("connection refused")}),
	)

	r, err := e.Analyze(context.Background(), Request{URL: "http://totally-new-shop-xyz123.biz"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if r.Status == model.StatusLowRisk {
		t.Errorf("status = %q, must not be Low Risk", r.Status)
	}
	if r.Score != 28 {
		t.Errorf("score = %d, want 28", r.Score)
	}
	for _, key := range []string{heuristics.KeyBusinessInfo, heuristics.KeyMedicalClaims, heuristics.KeySupportSignals} {
		if item, _ := r.Item(key); item.Verdict != model.VerdictUnknown {
			t.Errorf("item %s verdict = %q, want unknown", key, item.Verdict)
		}
	}
	if !hasWarning(r, "fetch: ") || !hasWarning(r, "tls: ") {
		t.Errorf("warnings = %v", r.AgentSignals.Warnings)
	}
	if r.AgentSignals.Fetch.Available() {
		t.Error("failed fetch reported available")
	}

	rec, err := e.Flagged().Get(context.Background(), "totally-new-shop-xyz123.biz")
	if err != nil {
		t.Fatalf("site not flagged: %v", err)
	}
	if rec.TimesObserved != 1 || rec.Score != 28 {
		t.Errorf("record = %+v", rec)
	}
}

func TestAnalyzeCache(t *testing.T) {
	t.Parallel()

	clk := newClock()
	f := &fakeFetcher{html: trustedHomepage, status: 200}
	e := New(WithFetcher(f), WithClock(clk.Now))
	ctx := context.Background()

	first, err := e.Analyze(ctx, Request{URL: "https://shop.example.com/"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	second, err := e.Analyze(ctx, Request{URL: "shop.example.com/other"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !second.Cached {
		t.Error("second analysis not served from cache")
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls.Load())
	}
	if second.Score != first.Score {
		t.Errorf("cached score = %d, want %d", second.Score, first.Score)
	}

	clk.Advance(time.Minute)
	forced, err := e.Analyze(ctx, Request{URL: "shop.example.com", Force: true})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if forced.Cached {
		t.Error("forced analysis served from cache")
	}
	if f.calls.Load() != 2 {
		t.Errorf("fetch calls = %d, want 2", f.calls.Load())
	}

	third, _ := e.Analyze(ctx, Request{URL: "shop.example.com"})
	if !third.Cached || !third.AnalyzedAt.Equal(forced.AnalyzedAt) {
		t.Errorf("cache not overwritten by forced analysis: %v vs %v", third.AnalyzedAt, forced.AnalyzedAt)
	}
}

func TestAnalyzeWithAI(t *testing.T) {
	t.Parallel()

	t.Run("high confidence replaces heuristic score", func(t *testing.T) {
		t.Parallel()

		judge := &fakeJudge{judgment: &model.AIJudgment{
			LegitimacyScore: 58,
			Confidence:      model.ConfidenceHigh,
			Verdict:         model.AIVerdictCaution,
			PositiveSignals: []string{},
			DetectedIssues:  []string{},
		}}
		e := New(
			WithDomainAge(&fakeDomainAge{days: 4000}),
			WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
			WithTLSProber(&fakeTLS{ok: true}),
			WithJudge(judge),
		)

		r, err := e.Analyze(context.Background(), Request{URL: "shop.example.com"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if r.Score != 58 || r.Status != model.StatusCaution {
			t.Errorf("score = %d status = %q, want 58 caution", r.Score, r.Status)
		}
		if item, ok := r.Item(ai.ExplainabilityKey); !ok || item.Verdict != model.VerdictWarn {
			t.Errorf("AI item = %+v", item)
		}
		if r.AgentSignals.AI == nil {
			t.Error("AI judgment missing from signals")
		}

		ev := judge.got[0]
		if ev.Title != "Example Store" || !ev.HTMLAvailable || ev.DomainAgeDays == nil {
			t.Errorf("AI evidence = %+v", ev)
		}
		if len(ev.ContactEmails) != 1 || ev.ContactEmails[0] != "help@example.com" {
			t.Errorf("ContactEmails = %v", ev.ContactEmails)
		}
		if !strings.Contains(ev.Text, "privacy policy") {
			t.Errorf("Text = %q", ev.Text)
		}
	})

	t.Run("missing credential is silent", func(t *testing.T) {
		t.Parallel()

		e := New(WithJudge(&fakeJudge{err: ai.ErrNoCredential}))
		r, err := e.Analyze(context.Background(), Request{URL: "shop.example.com"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if r.AIAnalysis != nil || hasWarning(r, "ai: ") {
			t.Errorf("AI = %v warnings = %v", r.AIAnalysis, r.AgentSignals.Warnings)
		}
	})

	t.Run("failure falls back to heuristics", func(t *testing.T) {
		t.Parallel()

		e := New(
			WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
			WithJudge(&fakeJudge{err: unavailable("invalid AI judgment")}),
		)
		r, err := e.Analyze(context.Background(), Request{URL: "shop.example.com"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if r.AIAnalysis != nil {
			t.Error("AI analysis present after failure")
		}
		if _, ok := r.Item(ai.ExplainabilityKey); ok {
			t.Error("AI item present after failure")
		}
		if !hasWarning(r, "ai: ") {
			t.Errorf("warnings = %v", r.AgentSignals.Warnings)
		}
	})

	t.Run("skipped when the deadline budget is too small", func(t *testing.T) {
		t.Parallel()

		judge := &fakeJudge{judgment: &model.AIJudgment{LegitimacyScore: 90, Confidence: model.ConfidenceHigh}}
		e := New(WithJudge(judge), WithAIMinBudget(5*time.Second))

		r, err := e.Analyze(context.Background(), Request{URL: "shop.example.com", Timeout: 2 * time.Second})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if judge.calls() != 0 {
			t.Error("judge called without enough budget")
		}
		if !hasWarning(r, "ai: ") {
			t.Errorf("warnings = %v", r.AgentSignals.Warnings)
		}
	})
}

func TestAnalyzeDeep(t *testing.T) {
	t.Parallel()

	c := &fakeCrawler{}
	judge := &fakeJudge{judgment: &model.AIJudgment{LegitimacyScore: 70, Confidence: model.ConfidenceLow}}
	e := New(
		WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
		WithCrawler(c),
		WithJudge(judge),
	)
	ctx := context.Background()

	if _, err := e.Analyze(ctx, Request{URL: "a.example.com"}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if c.calls.Load() != 0 {
		t.Error("crawler ran without deep mode")
	}

	r, err := e.Analyze(ctx, Request{URL: "b.example.com", Deep: true})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if c.calls.Load() != 1 {
		t.Fatalf("crawler calls = %d, want 1", c.calls.Load())
	}
	if r.AgentSignals.Crawl == nil || r.AgentSignals.Crawl.Fetched != 1 {
		t.Errorf("Crawl = %+v", r.AgentSignals.Crawl)
	}

	ev := judge.got[1]
	if ev.PagesFetched == nil || *ev.PagesFetched != 1 {
		t.Errorf("PagesFetched = %v", ev.PagesFetched)
	}
	if len(ev.ContactEmails) != 2 {
		t.Errorf("ContactEmails = %v, want homepage and crawled page", ev.ContactEmails)
	}
}

func TestAnalyzeDelegate(t *testing.T) {
	t.Parallel()

	t.Run("agent result is used", func(t *testing.T) {
		t.Parallel()

		age := 2000
		supported := true
		status := 200
		d := &fakeDelegate{result: &agent.Result{
			Signals: &model.AgentSignals{
				Source:        model.SourceAgent,
				DomainAgeDays: &age,
				TLS:           model.TLSInfo{Supported: &supported},
				Fetch: model.FetchInfo{
					FinalURL:      "https://shop.example.com/",
					Status:        &status,
					RedirectChain: []string{},
					HTMLAvailable: true,
				},
				Warnings:  []string{"whois skipped"},
				TimingsMs: map[string]int64{"fetch": 90},
			},
			HTML: trustedHomepage,
			AI: &model.AIJudgment{
				LegitimacyScore: 95,
				Confidence:      model.ConfidenceHigh,
				Verdict:         model.AIVerdictLegitimate,
			},
		}}
		f := &fakeFetcher{html: trustedHomepage, status: 200}
		e := New(WithDelegate(d), WithFetcher(f))

		r, err := e.Analyze(context.Background(), Request{URL: "shop.example.com"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if f.calls.Load() != 0 {
			t.Error("local fetch ran although the agent answered")
		}
		if r.AgentSignals.Source != model.SourceAgent {
			t.Errorf("Source = %q", r.AgentSignals.Source)
		}
		if r.Score != 95 {
			t.Errorf("score = %d, want 95", r.Score)
		}
		if r.AgentSignals.TimingsMs["fetch"] != 90 {
			t.Errorf("TimingsMs = %v", r.AgentSignals.TimingsMs)
		}
		if _, ok := r.AgentSignals.TimingsMs["agent"]; !ok {
			t.Error("agent timing missing")
		}
		if !hasWarning(r, "whois skipped") {
			t.Errorf("warnings = %v", r.AgentSignals.Warnings)
		}
	})

	t.Run("agent guardrail applies", func(t *testing.T) {
		t.Parallel()

		d := &fakeDelegate{result: &agent.Result{
			Signals: &model.AgentSignals{Fetch: model.FetchInfo{RedirectChain: []string{}}},
			AI:      &model.AIJudgment{LegitimacyScore: 92, Confidence: model.ConfidenceHigh},
		}}
		e := New(WithDelegate(d))

		r, err := e.Analyze(context.Background(), Request{URL: "unknown-shop.example"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if r.AIAnalysis.LegitimacyScore != ai.GuardrailMaxScore || r.AIAnalysis.Confidence != model.ConfidenceMedium {
			t.Errorf("AI = %+v, want capped and downgraded", r.AIAnalysis)
		}
	})

	t.Run("agent failure falls back to local pipeline", func(t *testing.T) {
		t.Parallel()

		d := &fakeDelegate{err: fmt.Errorf("%w: agent returned status 502", model.ErrUnavailable)}
		f := &fakeFetcher{html: trustedHomepage, status: 200}
		e := New(WithDelegate(d), WithFetcher(f))

		r, err := e.Analyze(context.Background(), Request{URL: "shop.example.com"})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if d.calls.Load() != 1 || f.calls.Load() != 1 {
			t.Errorf("agent calls = %d fetch calls = %d", d.calls.Load(), f.calls.Load())
		}
		if r.AgentSignals.Source != model.SourceLocal {
			t.Errorf("Source = %q", r.AgentSignals.Source)
		}
		if !hasWarning(r, "agent: ") {
			t.Errorf("warnings = %v", r.AgentSignals.Warnings)
		}
	})
}

func TestAnalyzeFlaggedTwice(t *testing.T) {
	t.Parallel()

	clk := newClock()
	e := New(
		WithDomainAge(&fakeDomainAge{days: 10}),
		WithFetcher(&fakeFetcher{err: unavailable("timeout")}),
		WithClock(clk.Now),
	)
	ctx := context.Background()

	if _, err := e.Analyze(ctx, Request{URL: "http://new-shop.example"}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	first, err := e.Flagged().Get(ctx, "new-shop.example")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	clk.Advance(time.Hour)
	if _, err := e.Analyze(ctx, Request{URL: "http://new-shop.example", Force: true}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := e.Flagged().Get(ctx, "new-shop.example")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if second.TimesObserved != 2 {
		t.Errorf("TimesObserved = %d, want 2", second.TimesObserved)
	}
	if second.FirstObservedAtMs != first.FirstObservedAtMs {
		t.Errorf("FirstObservedAtMs changed: %d -> %d", first.FirstObservedAtMs, second.FirstObservedAtMs)
	}
	if second.LastObservedAtMs != clk.Now().UnixMilli() {
		t.Errorf("LastObservedAtMs = %d, want %d", second.LastObservedAtMs, clk.Now().UnixMilli())
	}
}

func TestDeadline(t *testing.T) {
	t.Parallel()

	e := New(WithTimeouts(20*time.Second, 60*time.Second))
	tests := []struct {
		req  Request
		want time.Duration
	}{
		{req: Request{}, want: 20 * time.Second},
		{req: Request{Deep: true}, want: 60 * time.Second},
		{req: Request{Timeout: 10 * time.Millisecond}, want: time.Second},
		{req: Request{Timeout: 5 * time.Minute}, want: 60 * time.Second},
		{req: Request{Timeout: 30 * time.Second, Deep: true}, want: 30 * time.Second},
	}
	for _, tt := range tests {
		if got := e.deadline(tt.req); got != tt.want {
			t.Errorf("deadline(%+v) = %v, want %v", tt.req, got, tt.want)
		}
	}
}

func TestAnalyzeCallerCancelled(t *testing.T) {
	t.Parallel()

	e := New(
		WithDomainAge(&fakeDomainAge{days: 4000}),
		WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
		WithTLSProber(&fakeTLS{ok: true}),
		WithClock(newClock().Now),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := e.Analyze(ctx, Request{URL: "example.com"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if r.Score < 75 || r.Status != model.StatusLowRisk {
		t.Errorf("score = %d status = %q, want Low Risk despite the cancelled caller", r.Score, r.Status)
	}
	if hasWarning(r, stepCollect+": skipped") {
		t.Errorf("collect skipped: %v", r.AgentSignals.Warnings)
	}

	again, err := e.Analyze(context.Background(), Request{URL: "example.com"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !again.Cached || again.Score != r.Score {
		t.Errorf("second analysis cached = %v score = %d, want the first result", again.Cached, again.Score)
	}
	if _, err := e.Flagged().Get(context.Background(), "example.com"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("established site flagged after a cancelled request: %v", err)
	}
}

func TestCollected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    *model.AnalysisResult
		want bool
	}{
		{
			name: "no signals",
			r:    &model.AnalysisResult{},
			want: false,
		},
		{
			name: "collect skipped",
			r: &model.AnalysisResult{AgentSignals: &model.AgentSignals{
				Warnings: []string{"collect: skipped, deadline exceeded", "heuristics: skipped, deadline exceeded"},
			}},
			want: false,
		},
		{
			name: "lookups failed but ran",
			r: &model.AnalysisResult{AgentSignals: &model.AgentSignals{
				Warnings: []string{"fetch: evidence unavailable: connection refused", "ai: skipped, only 1s of the deadline left"},
			}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := collected(tt.r); got != tt.want {
				t.Errorf("collected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeSlowJudge(t *testing.T) {
	t.Parallel()

	newEngine := func(opts ...Option) *Engine {
		base := []Option{
			WithDomainAge(&fakeDomainAge{days: 4000}),
			WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
			WithTLSProber(&fakeTLS{ok: true}),
			WithAIMinBudget(100 * time.Millisecond),
		}
		return New(append(base, opts...)...)
	}

	heuristicOnly, err := newEngine().Analyze(context.Background(), Request{URL: "shop.example.com"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	judge := &fakeJudge{block: true}
	start := time.Now()
	r, err := newEngine(WithJudge(judge)).Analyze(context.Background(), Request{URL: "shop.example.com", Timeout: time.Second})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("analysis took %v, want it to end at the deadline", elapsed)
	}
	if judge.calls() != 1 {
		t.Fatalf("judge calls = %d, want 1", judge.calls())
	}
	if r.AIAnalysis != nil {
		t.Errorf("AIAnalysis = %+v, want nil after the judge was abandoned", r.AIAnalysis)
	}
	if r.Score != heuristicOnly.Score || r.Status != heuristicOnly.Status {
		t.Errorf("score = %d %q, want heuristic %d %q", r.Score, r.Status, heuristicOnly.Score, heuristicOnly.Status)
	}
	if !hasWarning(r, "ai: ") {
		t.Errorf("no ai warning: %v", r.AgentSignals.Warnings)
	}
}

func TestAnalyzeStageTimeout(t *testing.T) {
	t.Parallel()

	e := New(
		WithDomainAge(&fakeDomainAge{block: true}),
		WithFetcher(&fakeFetcher{html: trustedHomepage, status: 200}),
		WithTLSProber(&fakeTLS{ok: true}),
		WithStageTimeouts(50*time.Millisecond, time.Second),
	)

	start := time.Now()
	r, err := e.Analyze(context.Background(), Request{URL: "example.com", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("analysis took %v, want the domain age lookup cut short", elapsed)
	}
	if !hasWarning(r, stepDomainAge+": ") {
		t.Errorf("no domain_age warning: %v", r.AgentSignals.Warnings)
	}
	if item, ok := r.Item(heuristics.KeyDomainAge); !ok || item.Verdict != model.VerdictUnknown {
		t.Errorf("domain age item = %+v, want unknown", item)
	}
	if item, ok := r.Item(heuristics.KeyBusinessInfo); !ok || item.Verdict != model.VerdictGood {
		t.Errorf("business item = %+v, want good from the fetched homepage", item)
	}
}
