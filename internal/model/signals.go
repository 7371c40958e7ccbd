package model

import "time"

// TLSInfo describes the TLS handshake observed on port 443.
// Supported is nil when the check did not run.
type TLSInfo struct {
	Supported *bool      `json:"supported"`
	Issuer    string     `json:"issuer,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Checked reports whether a TLS handshake was attempted.
func (t TLSInfo) Checked() bool {
	return t.Supported != nil
}

// OK reports whether a TLS handshake succeeded.
func (t TLSInfo) OK() bool {
	return t.Supported != nil && *t.Supported
}

// FetchInfo describes the homepage fetch. When the fetch failed, Status,
// ContentType and Headers are nil.
type FetchInfo struct {
	FinalURL      string            `json:"finalUrl"`
	Status        *int              `json:"status"`
	ContentType   *string           `json:"contentType"`
	RedirectChain []string          `json:"redirectChain"`
	Headers       map[string]string `json:"headers"`
	HTMLAvailable bool              `json:"htmlAvailable"`
}

// Available reports whether the fetch produced a response.
func (f FetchInfo) Available() bool {
	return f.Status != nil
}

// Header returns a captured response header by lowercase name.
func (f FetchInfo) Header(name string) (string, bool) {
	if f.Headers == nil {
		return "", false
	}
	v, ok := f.Headers[name]
	return v, ok
}

// CrawlPage is the outcome of one page fetched during a deep crawl.
type CrawlPage struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
}

// CrawlSummary summarizes a deep crawl.
type CrawlSummary struct {
	Requested int         `json:"requested"`
	Fetched   int         `json:"fetched"`
	Pages     []CrawlPage `json:"pages"`
}

// AIJudgment is a validated AI verdict. It is only constructed after the raw
// model output passed validation.
type AIJudgment struct {
	LegitimacyScore   int        `json:"legitimacyScore"`
	Confidence        Confidence `json:"confidence"`
	Verdict           AIVerdict  `json:"verdict"`
	Category          string     `json:"category,omitempty"`
	Assessment        string     `json:"assessment,omitempty"`
	DetectedIssues    []string   `json:"detectedIssues"`
	PositiveSignals   []string   `json:"positiveSignals"`
	NegativeSignals   []string   `json:"negativeSignals,omitempty"`
	Platform          string     `json:"platform,omitempty"`
	ProductLegitimacy string     `json:"productLegitimacy,omitempty"`
	BusinessIdentity  string     `json:"businessIdentity,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	Recommendation    string     `json:"recommendation,omitempty"`
}

// Evidence sources recorded in AgentSignals.Source.
const (
	SourceLocal = "local"
	SourceAgent = "agent"
)

// AgentSignals is the evidence bundle collected for one analysis.
// It is not mutated after being embedded in a result or cache record.
type AgentSignals struct {
	Source        string           `json:"source,omitempty"`
	DomainAgeDays *int             `json:"domainAgeDays"`
	TLS           TLSInfo          `json:"tls"`
	Fetch         FetchInfo        `json:"fetch"`
	Crawl         *CrawlSummary    `json:"crawl,omitempty"`
	AI            *AIJudgment      `json:"ai,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	TimingsMs     map[string]int64 `json:"timingsMs,omitempty"`
}

// PagesFetched returns the number of crawled pages, or nil without a crawl.
func (s *AgentSignals) PagesFetched() *int {
	if s == nil || s.Crawl == nil {
		return nil
	}
	n := s.Crawl.Fetched
	return &n
}
