package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/agent"
	"github.com/nao1215/trustscan/internal/ai"
	"github.com/nao1215/trustscan/internal/crawler"
	"github.com/nao1215/trustscan/internal/heuristics"
	"github.com/nao1215/trustscan/internal/model"
	"github.com/nao1215/trustscan/internal/pipeline"
	"github.com/nao1215/trustscan/internal/scoring"
)

// Step names used for warnings and timings.
const (
	stepCollect    = "collect"
	stepDomainAge  = "domain_age"
	stepFetch      = "fetch"
	stepTLS        = "tls"
	stepCrawl      = "crawl"
	stepHeuristics = "heuristics"
	stepAI         = "ai"
)

func newEvidence(normalized string, deep bool) *pipeline.Evidence {
	return pipeline.NewEvidence(normalized, deep)
}

// run executes the local pipeline and returns the heuristic signals.
func (e *Engine) run(ctx context.Context, ev *pipeline.Evidence) (heuristics.Signals, error) {
	var (
		sig       heuristics.Signals
		evaluated bool
	)

	p := pipeline.New(pipeline.WithLogger(e.logger), pipeline.WithContinueOnError(true))
	p.AddSteps(
		pipeline.Parallel(stepCollect, e.logger, e.collectSteps()...),
		pipeline.When(func(ev *pipeline.Evidence) bool {
			return e.crawler != nil && ev.Deep && ev.HTML != ""
		}, pipeline.NewStep(stepCrawl, e.crawl)),
		pipeline.NewStep(stepHeuristics, func(_ context.Context, ev *pipeline.Evidence) error {
			sig, evaluated = evaluate(ev), true
			return nil
		}),
		pipeline.When(func(*pipeline.Evidence) bool {
			return e.judge != nil
		}, pipeline.NewStep(stepAI, func(ctx context.Context, ev *pipeline.Evidence) error {
			return e.runJudge(ctx, ev, sig)
		})),
	)

	err := p.Execute(ctx, ev)
	if !evaluated {
		sig = evaluate(ev)
	}
	return sig, err
}

// collectSteps returns the independent evidence lookups. Each writes its
// own Evidence fields.
func (e *Engine) collectSteps() []pipeline.Step {
	var steps []pipeline.Step
	if e.domainAge != nil {
		steps = append(steps, pipeline.WithTimeout(pipeline.NewStep(stepDomainAge, func(ctx context.Context, ev *pipeline.Evidence) error {
			days, err := e.domainAge.AgeDays(ctx, ev.Hostname)
			if err != nil {
				return asUnavailable(err)
			}
			ev.DomainAgeDays = &days
			return nil
		}), e.domainAgeTimeout))
	}
	if e.fetcher != nil {
		steps = append(steps, pipeline.WithTimeout(pipeline.NewStep(stepFetch, func(ctx context.Context, ev *pipeline.Evidence) error {
			res, err := e.fetcher.Fetch(ctx, ev.URL)
			ev.Fetch = res.Info
			if ev.Fetch.FinalURL == "" {
				ev.Fetch.FinalURL = ev.URL
			}
			if ev.Fetch.RedirectChain == nil {
				ev.Fetch.RedirectChain = []string{}
			}
			if ev.Fetch.HTMLAvailable {
				ev.HTML = res.HTML
			}
			return asUnavailable(err)
		}), e.fetchTimeout))
	}
	if e.tls != nil {
		steps = append(steps, pipeline.NewStep(stepTLS, func(ctx context.Context, ev *pipeline.Evidence) error {
			info, err := e.tls.Probe(ctx, ev.Hostname)
			if err != nil {
				return err
			}
			ev.TLS = info
			return nil
		}))
	}
	return steps
}

// asUnavailable makes err an enrichment failure. Lookups cut short by their
// stage timeout return bare context errors.
func asUnavailable(err error) error {
	if err == nil || errors.Is(err, model.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s", model.ErrUnavailable, err.Error())
}

func (e *Engine) crawl(ctx context.Context, ev *pipeline.Evidence) error {
	res, err := e.crawler.Crawl(ctx, baseURL(ev), ev.HTML)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrUnavailable, err.Error())
	}
	summary := res.Summary
	ev.Crawl = &summary
	ev.ExtraHTML = res.HTML
	return nil
}

// runJudge calls the AI judge when enough of the deadline remains. A
// missing credential skips the judge silently.
func (e *Engine) runJudge(ctx context.Context, ev *pipeline.Evidence, sig heuristics.Signals) error {
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < e.aiMinBudget {
			return fmt.Errorf("%w: skipped, only %s of the deadline left", model.ErrUnavailable, remaining.Round(time.Millisecond))
		}
	}

	j, err := e.judge.Judge(ctx, aiEvidence(ev, sig))
	switch {
	case errors.Is(err, ai.ErrNoCredential):
		return nil
	case errors.Is(err, model.ErrUnavailable):
		return err
	case err != nil:
		// A judge abandoned at the deadline leaves the heuristic score alone.
		return fmt.Errorf("%w: %s", model.ErrUnavailable, err.Error())
	}
	ev.AI = j
	return nil
}

func evaluate(ev *pipeline.Evidence) heuristics.Signals {
	return heuristics.Evaluate(heuristics.Input{
		URL:           ev.URL,
		HTML:          ev.HTML,
		ExtraHTML:     ev.ExtraHTML,
		DomainAgeDays: ev.DomainAgeDays,
		TLS:           ev.TLS,
		Fetch:         ev.Fetch,
	})
}

// assemble fuses the scores and builds the public result.
func (e *Engine) assemble(ev *pipeline.Evidence, sig heuristics.Signals) *model.AnalysisResult {
	outcome := scoring.Score(sig, ev.AI)

	items := make([]model.ExplainabilityItem, 0, len(sig.Items)+1)
	items = append(items, sig.Items...)
	if ev.AI != nil {
		items = append(items, ai.ExplainabilityItem(ev.AI))
	}

	return &model.AnalysisResult{
		NormalizedURL:  ev.URL,
		Score:          outcome.Score,
		Status:         outcome.Status,
		Explainability: items,
		AnalyzedAt:     e.now().UTC(),
		AIAnalysis:     ev.AI,
		AgentSignals:   ev.Signals(),
	}
}

// evidenceFromAgent loads a validated agent answer into a working set.
func evidenceFromAgent(normalized string, deep bool, res *agent.Result) *pipeline.Evidence {
	ev := pipeline.NewEvidence(normalized, deep)
	s := res.Signals

	ev.DomainAgeDays = s.DomainAgeDays
	ev.TLS = s.TLS
	ev.Fetch = s.Fetch
	if ev.Fetch.FinalURL == "" {
		ev.Fetch.FinalURL = normalized
	}
	ev.Crawl = s.Crawl
	ev.HTML = res.HTML
	ev.AI = res.AI
	for _, w := range s.Warnings {
		ev.AddWarning(w)
	}
	return ev
}

// aiEvidence builds what the AI judge is shown.
func aiEvidence(ev *pipeline.Evidence, sig heuristics.Signals) ai.Evidence {
	htmlAvailable := ev.Fetch.HTMLAvailable && ev.HTML != ""
	out := ai.Evidence{
		URL:           ev.URL,
		Hostname:      ev.Hostname,
		Text:          sig.Text,
		HTMLAvailable: htmlAvailable,
		DomainAgeDays: ev.DomainAgeDays,
		WellKnown:     sig.WellKnown,
		TLSSupported:  ev.TLS.Supported,
		HTTPStatus:    ev.Fetch.Status,
		ContentType:   ev.Fetch.ContentType,
		RedirectChain: ev.Fetch.RedirectChain,
		Headers:       ev.Fetch.Headers,
	}
	if ev.Crawl != nil {
		n := ev.Crawl.Fetched
		out.PagesFetched = &n
	}
	if !htmlAvailable {
		return out
	}

	parser, err := crawler.NewParser(baseURL(ev))
	if err != nil {
		return out
	}
	seen := make(map[string]bool)
	for i, page := range append([]string{ev.HTML}, ev.ExtraHTML...) {
		parsed, err := parser.Parse(strings.NewReader(page))
		if err != nil {
			continue
		}
		if i == 0 {
			out.Title = parsed.Title
			out.Description = parsed.Description
		}
		for _, addr := range parsed.Emails {
			if !seen[addr] {
				seen[addr] = true
				out.ContactEmails = append(out.ContactEmails, addr)
			}
		}
	}
	return out
}

// baseURL is the URL the homepage HTML was served from.
func baseURL(ev *pipeline.Evidence) string {
	if ev.Fetch.FinalURL != "" {
		return ev.Fetch.FinalURL
	}
	return ev.URL
}
