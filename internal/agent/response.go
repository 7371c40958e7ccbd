package agent

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/ai"
	"github.com/nao1215/trustscan/internal/model"
)

type analyzeRequest struct {
	URL                  string `json:"url"`
	TimeoutMs            int64  `json:"timeout_ms"`
	CheckExternalReviews bool   `json:"check_external_reviews"`
}

type rawResponse struct {
	NormalizedURL *string          `json:"normalized_url"`
	DomainAgeDays *int             `json:"domain_age_days"`
	TLS           *rawTLS          `json:"tls"`
	Fetch         *rawFetch        `json:"fetch"`
	HTML          *string          `json:"html"`
	Crawl         *rawCrawl        `json:"crawl"`
	AI            *rawAI           `json:"ai"`
	Warnings      []string         `json:"warnings"`
	TimingsMs     map[string]int64 `json:"timings_ms"`
}

type rawTLS struct {
	Supported *bool   `json:"supported"`
	Issuer    string  `json:"issuer"`
	ExpiresAt *string `json:"expires_at"`
}

type rawFetch struct {
	FinalURL      string            `json:"final_url"`
	Status        *int              `json:"status"`
	ContentType   *string           `json:"content_type"`
	RedirectChain []string          `json:"redirect_chain"`
	Headers       map[string]string `json:"headers"`
	HTMLAvailable bool              `json:"html_available"`
}

type rawCrawl struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Pages     []struct {
		URL    string `json:"url"`
		Status int    `json:"status"`
		OK     bool   `json:"ok"`
	} `json:"pages"`
}

type rawAI struct {
	LegitimacyScore   *float64 `json:"legitimacy_score"`
	Confidence        string   `json:"confidence"`
	Verdict           string   `json:"verdict"`
	Category          string   `json:"category"`
	Assessment        string   `json:"assessment"`
	DetectedIssues    []string `json:"detected_issues"`
	PositiveSignals   []string `json:"positive_signals"`
	NegativeSignals   []string `json:"negative_signals"`
	Platform          string   `json:"platform"`
	ProductLegitimacy string   `json:"product_legitimacy"`
	BusinessIdentity  string   `json:"business_identity"`
	Summary           string   `json:"summary"`
	Recommendation    string   `json:"recommendation"`
}

// Result is a validated agent answer.
type Result struct {
	// NormalizedURL is the URL the agent analyzed, if it reported one.
	NormalizedURL string
	Signals       *model.AgentSignals
	AI            *model.AIJudgment
	// HTML is the homepage HTML when the agent returned it.
	HTML string
}

// convert validates r and maps it into a Result. Any violation wraps
// ErrInvalidResponse.
func (r *rawResponse) convert() (*Result, error) {
	if r.Fetch == nil {
		return nil, fmt.Errorf("%w: missing fetch", ErrInvalidResponse)
	}
	if r.DomainAgeDays != nil && *r.DomainAgeDays < 0 {
		return nil, fmt.Errorf("%w: negative domain_age_days", ErrInvalidResponse)
	}
	if s := r.Fetch.Status; s != nil && (*s < 100 || *s > 599) {
		return nil, fmt.Errorf("%w: http status %d out of range", ErrInvalidResponse, *s)
	}

	sig := &model.AgentSignals{
		Source:        model.SourceAgent,
		DomainAgeDays: r.DomainAgeDays,
		Fetch: model.FetchInfo{
			FinalURL:      r.Fetch.FinalURL,
			Status:        r.Fetch.Status,
			ContentType:   r.Fetch.ContentType,
			RedirectChain: r.Fetch.RedirectChain,
			Headers:       lowerKeys(r.Fetch.Headers),
			HTMLAvailable: r.Fetch.HTMLAvailable,
		},
		Warnings:  r.Warnings,
		TimingsMs: r.TimingsMs,
	}
	if sig.Fetch.RedirectChain == nil {
		sig.Fetch.RedirectChain = []string{}
	}

	if r.TLS != nil {
		sig.TLS = model.TLSInfo{Supported: r.TLS.Supported, Issuer: r.TLS.Issuer}
		if r.TLS.ExpiresAt != nil && *r.TLS.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, *r.TLS.ExpiresAt)
			if err != nil {
				return nil, fmt.Errorf("%w: tls.expires_at: %s", ErrInvalidResponse, err.Error())
			}
			sig.TLS.ExpiresAt = &t
		}
	}

	if r.Crawl != nil {
		if r.Crawl.Requested < 0 || r.Crawl.Fetched < 0 || r.Crawl.Fetched > r.Crawl.Requested {
			return nil, fmt.Errorf("%w: inconsistent crawl counts", ErrInvalidResponse)
		}
		crawl := &model.CrawlSummary{
			Requested: r.Crawl.Requested,
			Fetched:   r.Crawl.Fetched,
			Pages:     make([]model.CrawlPage, 0, len(r.Crawl.Pages)),
		}
		for _, p := range r.Crawl.Pages {
			crawl.Pages = append(crawl.Pages, model.CrawlPage{URL: p.URL, Status: p.Status, OK: p.OK})
		}
		sig.Crawl = crawl
	}

	res := &Result{Signals: sig}
	if r.NormalizedURL != nil {
		res.NormalizedURL = *r.NormalizedURL
	}
	if r.HTML != nil && sig.Fetch.HTMLAvailable {
		res.HTML = *r.HTML
	}

	if r.AI != nil {
		j, err := r.AI.convert()
		if err != nil {
			return nil, err
		}
		res.AI = j
		sig.AI = j
	}
	return res, nil
}

func (a *rawAI) convert() (*model.AIJudgment, error) {
	if a.LegitimacyScore == nil {
		return nil, fmt.Errorf("%w: ai.legitimacy_score missing", ErrInvalidResponse)
	}
	if math.IsNaN(*a.LegitimacyScore) || math.IsInf(*a.LegitimacyScore, 0) {
		return nil, fmt.Errorf("%w: ai.legitimacy_score is not finite", ErrInvalidResponse)
	}

	j := &model.AIJudgment{
		LegitimacyScore:   model.ClampScore(*a.LegitimacyScore),
		Confidence:        model.ConfidenceLow,
		Category:          a.Category,
		Assessment:        a.Assessment,
		DetectedIssues:    orEmpty(a.DetectedIssues),
		PositiveSignals:   orEmpty(a.PositiveSignals),
		NegativeSignals:   a.NegativeSignals,
		Platform:          a.Platform,
		ProductLegitimacy: a.ProductLegitimacy,
		BusinessIdentity:  a.BusinessIdentity,
		Summary:           a.Summary,
		Recommendation:    a.Recommendation,
	}

	if a.Confidence != "" {
		c := model.Confidence(strings.ToLower(strings.TrimSpace(a.Confidence)))
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: unknown ai.confidence %q", ErrInvalidResponse, a.Confidence)
		}
		j.Confidence = c
	}

	j.Verdict = ai.VerdictForScore(j.LegitimacyScore)
	if a.Verdict != "" {
		v := model.AIVerdict(strings.ToLower(strings.TrimSpace(a.Verdict)))
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: unknown ai.verdict %q", ErrInvalidResponse, a.Verdict)
		}
		j.Verdict = v
	}
	return j, nil
}

func lowerKeys(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
