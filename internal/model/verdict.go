package model

import "math"

// Verdict is the outcome of one explainability check.
type Verdict string

const (
	// VerdictGood means the evidence supports trust.
	VerdictGood Verdict = "good"
	// VerdictWarn means the evidence is mildly concerning.
	VerdictWarn Verdict = "warn"
	// VerdictBad means the evidence is a risk indicator.
	VerdictBad Verdict = "bad"
	// VerdictUnknown means the evidence needed for the check was unavailable.
	// It does not mean risk was ruled out.
	VerdictUnknown Verdict = "unknown"
)

// IsValid reports whether v is one of the defined verdicts.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictGood, VerdictWarn, VerdictBad, VerdictUnknown:
		return true
	default:
		return false
	}
}

// ExplainabilityItem is one human-readable, verdict-tagged reason.
// Key is unique within a single analysis.
type ExplainabilityItem struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Verdict Verdict `json:"verdict"`
	Detail  string  `json:"detail"`
}

// Confidence is the AI judge's confidence tier.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid reports whether c is a known confidence tier.
func (c Confidence) IsValid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// AIVerdict is the categorical legitimacy verdict of the AI judge.
type AIVerdict string

const (
	AIVerdictLegitimate      AIVerdict = "legitimate"
	AIVerdictCaution         AIVerdict = "caution"
	AIVerdictSuspicious      AIVerdict = "suspicious"
	AIVerdictLikelyDeceptive AIVerdict = "likely_deceptive"
)

// IsValid reports whether v is a known AI verdict.
func (v AIVerdict) IsValid() bool {
	switch v {
	case AIVerdictLegitimate, AIVerdictCaution, AIVerdictSuspicious, AIVerdictLikelyDeceptive:
		return true
	default:
		return false
	}
}

// IsAdverse reports whether the verdict alone makes a site flag-worthy.
func (v AIVerdict) IsAdverse() bool {
	return v == AIVerdictSuspicious || v == AIVerdictLikelyDeceptive
}

// Status is the three-tier risk status derived from a score.
type Status string

const (
	StatusLowRisk  Status = "Low Risk"
	StatusCaution  Status = "Proceed with Caution"
	StatusHighRisk Status = "High Risk Indicators Detected"
)

// Score thresholds for StatusForScore.
const (
	LowRiskThreshold = 75
	CautionThreshold = 45
)

// StatusForScore maps a score to its status. It is total over int.
func StatusForScore(score int) Status {
	switch {
	case score >= LowRiskThreshold:
		return StatusLowRisk
	case score >= CautionThreshold:
		return StatusCaution
	default:
		return StatusHighRisk
	}
}

// ClampScore rounds v half away from zero and clamps it to [0, 100].
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return int(r)
}
