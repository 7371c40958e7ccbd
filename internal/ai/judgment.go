package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/nao1215/trustscan/internal/model"
)

// GuardrailMaxScore is the highest score an under-evidenced site can get.
const GuardrailMaxScore = 65

// rawJudgment is the JSON schema the model is asked to answer with.
// Pointer fields distinguish missing from zero values.
type rawJudgment struct {
	Assessment        *string     `json:"assessment"`
	LegitimacyScore   *float64    `json:"legitimacy_score"`
	Confidence        *string     `json:"confidence"`
	Verdict           *string     `json:"verdict"`
	Category          *string     `json:"category"`
	DetectedIssues    []string    `json:"detected_issues"`
	TrustSignals      *rawSignals `json:"trust_signals"`
	Platform          *string     `json:"platform"`
	ProductLegitimacy *string     `json:"product_legitimacy"`
	BusinessIdentity  *string     `json:"business_identity"`
	Summary           *string     `json:"summary"`
	Recommendation    *string     `json:"recommendation"`
}

type rawSignals struct {
	Positive *[]string `json:"positive"`
	Negative []string  `json:"negative"`
}

// ParseJudgment validates raw model output and converts it into a judgment.
// Markdown code fences around the JSON are tolerated. Every failure wraps
// ErrInvalidJudgment.
func ParseJudgment(raw string) (*model.AIJudgment, error) {
	var r rawJudgment
	// Unmarshal rejects anything after the object, so a second object
	// cannot ride along behind a valid one.
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJudgment, err.Error())
	}

	switch {
	case r.Assessment == nil:
		return nil, fmt.Errorf("%w: missing assessment", ErrInvalidJudgment)
	case r.LegitimacyScore == nil:
		return nil, fmt.Errorf("%w: missing legitimacy_score", ErrInvalidJudgment)
	case math.IsNaN(*r.LegitimacyScore) || math.IsInf(*r.LegitimacyScore, 0):
		return nil, fmt.Errorf("%w: legitimacy_score is not finite", ErrInvalidJudgment)
	case r.TrustSignals == nil || r.TrustSignals.Positive == nil:
		return nil, fmt.Errorf("%w: missing trust_signals.positive", ErrInvalidJudgment)
	}

	j := &model.AIJudgment{
		LegitimacyScore:   model.ClampScore(*r.LegitimacyScore),
		Confidence:        model.ConfidenceLow,
		Assessment:        strings.TrimSpace(*r.Assessment),
		Category:          deref(r.Category),
		DetectedIssues:    nonEmpty(r.DetectedIssues),
		PositiveSignals:   nonEmpty(*r.TrustSignals.Positive),
		NegativeSignals:   nonEmpty(r.TrustSignals.Negative),
		Platform:          deref(r.Platform),
		ProductLegitimacy: deref(r.ProductLegitimacy),
		BusinessIdentity:  deref(r.BusinessIdentity),
		Summary:           deref(r.Summary),
		Recommendation:    deref(r.Recommendation),
	}

	if r.Confidence != nil {
		c := model.Confidence(normalizeEnum(*r.Confidence))
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: unknown confidence %q", ErrInvalidJudgment, *r.Confidence)
		}
		j.Confidence = c
	}

	if r.Verdict != nil {
		v := model.AIVerdict(normalizeEnum(*r.Verdict))
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: unknown verdict %q", ErrInvalidJudgment, *r.Verdict)
		}
		j.Verdict = v
	} else {
		j.Verdict = VerdictForScore(j.LegitimacyScore)
	}

	return j, nil
}

// VerdictForScore derives an AI verdict when the model omitted one.
func VerdictForScore(score int) model.AIVerdict {
	switch {
	case score >= model.LowRiskThreshold:
		return model.AIVerdictLegitimate
	case score >= model.CautionThreshold:
		return model.AIVerdictCaution
	case score >= 25:
		return model.AIVerdictSuspicious
	default:
		return model.AIVerdictLikelyDeceptive
	}
}

// ApplyGuardrail caps the score at GuardrailMaxScore and downgrades high
// confidence to medium when the site is not well known and either its HTML
// or its domain age is missing. It reports whether j was changed.
func ApplyGuardrail(j *model.AIJudgment, ev Evidence) bool {
	if j == nil || ev.WellKnown {
		return false
	}
	if ev.HTMLAvailable && ev.DomainAgeDays != nil {
		return false
	}

	changed := false
	if j.LegitimacyScore > GuardrailMaxScore {
		j.LegitimacyScore = GuardrailMaxScore
		changed = true
	}
	if j.Confidence == model.ConfidenceHigh {
		j.Confidence = model.ConfidenceMedium
		changed = true
	}
	return changed
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// nonEmpty trims entries and drops blank ones. The result is never nil.
func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
