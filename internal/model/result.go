package model

import "time"

// AnalysisResult is the public response of one analysis.
type AnalysisResult struct {
	NormalizedURL  string               `json:"normalizedUrl"`
	Score          int                  `json:"score"`
	Status         Status               `json:"status"`
	Explainability []ExplainabilityItem `json:"explainability"`
	Cached         bool                 `json:"cached"`
	AnalyzedAt     time.Time            `json:"analyzedAt"`
	AIAnalysis     *AIJudgment          `json:"aiAnalysis,omitempty"`
	AgentSignals   *AgentSignals        `json:"agentSignals,omitempty"`

	// ScreenshotURL is ephemeral and never stored in a cache record.
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
}

// Hostname returns the hostname of the analyzed URL.
func (r *AnalysisResult) Hostname() string {
	return Hostname(r.NormalizedURL)
}

// AIVerdict returns the AI verdict, or an empty string without AI analysis.
func (r *AnalysisResult) AIVerdict() AIVerdict {
	if r.AIAnalysis == nil {
		return ""
	}
	return r.AIAnalysis.Verdict
}

// Item returns the explainability item with the given key.
func (r *AnalysisResult) Item(key string) (ExplainabilityItem, bool) {
	for _, item := range r.Explainability {
		if item.Key == key {
			return item, true
		}
	}
	return ExplainabilityItem{}, false
}

// ForCache returns a shallow copy suitable for caching: the screenshot
// reference is dropped and the cached flag is cleared.
func (r *AnalysisResult) ForCache() *AnalysisResult {
	c := *r
	c.ScreenshotURL = ""
	c.Cached = false
	c.Explainability = append([]ExplainabilityItem(nil), r.Explainability...)
	return &c
}

// CacheRecord is a cached analysis result as stored by the durable tier.
type CacheRecord struct {
	Key       string          `json:"key"`
	Hostname  string          `json:"hostname"`
	Version   string          `json:"version"`
	Result    *AnalysisResult `json:"result"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Expired reports whether the record is no longer live at now.
func (c *CacheRecord) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
