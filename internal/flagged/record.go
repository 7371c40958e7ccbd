package flagged

import (
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// Caps applied to a record and to queries.
const (
	MaxIssues   = 6
	MaxFindings = 8
	MaxPageSize = 100
)

// DefaultPageSize is used when a query does not set a limit.
const DefaultPageSize = 20

// ShouldFlag reports whether r is flag-worthy.
func ShouldFlag(r *model.AnalysisResult) bool {
	if r == nil {
		return false
	}
	return r.Score < model.CautionThreshold ||
		r.Status == model.StatusHighRisk ||
		r.AIVerdict().IsAdverse()
}

// BuildRecord derives the flagged record of r observed at now, as a first
// sighting. Stores merge it with any existing record.
func BuildRecord(r *model.AnalysisResult, now time.Time) model.FlaggedSiteRecord {
	ms := now.UnixMilli()
	rec := model.FlaggedSiteRecord{
		Hostname:          r.Hostname(),
		NormalizedURL:     r.NormalizedURL,
		FirstObservedAtMs: ms,
		LastObservedAtMs:  ms,
		LastAnalysisAtMs:  r.AnalyzedAt.UnixMilli(),
		Score:             r.Score,
		Status:            r.Status,
		Issues:            issues(r),
		Findings:          findings(r.Explainability),
		Evidence:          evidence(r.AgentSignals),
		TimesObserved:     1,
	}
	if r.AnalyzedAt.IsZero() {
		rec.LastAnalysisAtMs = ms
	}
	if ai := r.AIAnalysis; ai != nil {
		rec.AIVerdict = ai.Verdict
		rec.AIConfidence = ai.Confidence
		rec.Summary = ai.Summary
		if rec.Summary == "" {
			rec.Summary = ai.Assessment
		}
	}
	return rec
}

// Merge applies an observation to an existing record: the snapshot is
// replaced, the count incremented and the first-seen time kept.
func Merge(existing, observed model.FlaggedSiteRecord) model.FlaggedSiteRecord {
	merged := observed
	merged.FirstObservedAtMs = existing.FirstObservedAtMs
	merged.TimesObserved = existing.TimesObserved + 1
	if merged.LastObservedAtMs < existing.LastObservedAtMs {
		merged.LastObservedAtMs = existing.LastObservedAtMs
	}
	return merged
}

// issues prefers AI-detected issues, then heuristic risk factors, then
// negative trust signals.
func issues(r *model.AnalysisResult) []string {
	if ai := r.AIAnalysis; ai != nil && len(ai.DetectedIssues) > 0 {
		return capStrings(ai.DetectedIssues, MaxIssues)
	}

	risk := make([]string, 0)
	for _, item := range r.Explainability {
		if item.Verdict == model.VerdictBad || item.Verdict == model.VerdictWarn {
			risk = append(risk, item.Label+": "+item.Detail)
		}
	}
	if len(risk) > 0 {
		return capStrings(risk, MaxIssues)
	}

	if ai := r.AIAnalysis; ai != nil {
		return capStrings(ai.NegativeSignals, MaxIssues)
	}
	return []string{}
}

// findings keeps bad items before warn items, each in original order.
func findings(items []model.ExplainabilityItem) []model.Finding {
	out := make([]model.Finding, 0, MaxFindings)
	for _, want := range []model.Verdict{model.VerdictBad, model.VerdictWarn} {
		for _, item := range items {
			if item.Verdict != want {
				continue
			}
			if len(out) == MaxFindings {
				return out
			}
			out = append(out, model.Finding{Label: item.Label, Verdict: item.Verdict, Detail: item.Detail})
		}
	}
	return out
}

func evidence(s *model.AgentSignals) model.FlaggedEvidence {
	if s == nil {
		return model.FlaggedEvidence{}
	}
	ev := model.FlaggedEvidence{
		DomainAgeDays: s.DomainAgeDays,
		TLSSupported:  s.TLS.Supported,
		TLSIssuer:     s.TLS.Issuer,
		PagesFetched:  s.PagesFetched(),
	}
	if len(s.Fetch.RedirectChain) > 0 {
		ev.RedirectChain = append([]string(nil), s.Fetch.RedirectChain...)
	}
	if len(s.Warnings) > 0 {
		ev.Warnings = append([]string(nil), s.Warnings...)
	}
	return ev
}

func capStrings(in []string, n int) []string {
	out := make([]string, 0, min(len(in), n))
	for _, s := range in {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, s)
	}
	return out
}

// Matches reports whether rec matches the free-text query. An empty query
// matches everything. Matching is a case-insensitive substring test over
// hostname, URL, summary and issues.
func Matches(rec model.FlaggedSiteRecord, text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return true
	}
	fields := append([]string{rec.Hostname, rec.NormalizedURL, rec.Summary}, rec.Issues...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), text) {
			return true
		}
	}
	return false
}

// NormalizeQuery applies the default and maximum page size and clamps a
// negative offset.
func NormalizeQuery(q model.FlaggedQuery) model.FlaggedQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Text = strings.TrimSpace(q.Text)
	return q
}
