package model

// Finding is a compact bad or warn explainability item kept on a flagged record.
type Finding struct {
	Label   string  `json:"label"`
	Verdict Verdict `json:"verdict"`
	Detail  string  `json:"detail"`
}

// FlaggedEvidence is the evidence snapshot kept on a flagged record.
type FlaggedEvidence struct {
	DomainAgeDays *int     `json:"domainAgeDays,omitempty"`
	TLSSupported  *bool    `json:"tlsSupported,omitempty"`
	TLSIssuer     string   `json:"tlsIssuer,omitempty"`
	RedirectChain []string `json:"redirectChain,omitempty"`
	PagesFetched  *int     `json:"pagesFetched,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// FlaggedSiteRecord aggregates every flag-worthy observation of a hostname.
// Hostname is the unique key.
type FlaggedSiteRecord struct {
	Hostname          string          `json:"hostname"`
	NormalizedURL     string          `json:"normalizedUrl"`
	FirstObservedAtMs int64           `json:"firstObservedAtMs"`
	LastObservedAtMs  int64           `json:"lastObservedAtMs"`
	LastAnalysisAtMs  int64           `json:"lastAnalysisAtMs"`
	Score             int             `json:"score"`
	Status            Status          `json:"status"`
	AIVerdict         AIVerdict       `json:"aiVerdict,omitempty"`
	AIConfidence      Confidence      `json:"aiConfidence,omitempty"`
	Summary           string          `json:"summary,omitempty"`
	Issues            []string        `json:"issues"`
	Findings          []Finding       `json:"findings"`
	Evidence          FlaggedEvidence `json:"evidence"`
	TimesObserved     int             `json:"timesObserved"`
}

// FlaggedQuery filters and pages flagged records.
// Text matches hostname, URL, summary and issues case-insensitively.
type FlaggedQuery struct {
	Text   string
	Limit  int
	Offset int
}

// FlaggedPage is one page of flagged records.
type FlaggedPage struct {
	Items []FlaggedSiteRecord `json:"items"`
	Total int                 `json:"total"`
}
