package scoring

import (
	"github.com/nao1215/trustscan/internal/heuristics"
	"github.com/nao1215/trustscan/internal/model"
)

// Baseline is the neutral starting point of the heuristic score.
const Baseline = 50

// WellKnownBonus is added once for well-known domains.
const WellKnownBonus = 15

// delta holds the score adjustment of one check per verdict. UnknownWellKnown
// applies to an unknown verdict on a well-known domain.
type delta struct {
	Good             int
	Warn             int
	Bad              int
	UnknownWellKnown int
}

var deltas = map[string]delta{
	heuristics.KeyHTTPS:          {Good: 12, Warn: -10, Bad: -15},
	heuristics.KeyDomainAge:      {Good: 15, Warn: 5, Bad: -12, UnknownWellKnown: 10},
	heuristics.KeyBusinessInfo:   {Good: 12, Warn: 3, Bad: -8, UnknownWellKnown: 10},
	heuristics.KeyMedicalClaims:  {Good: 5, Warn: -8, Bad: -8, UnknownWellKnown: 3},
	heuristics.KeySupportSignals: {Good: 10, Warn: 2, Bad: -6, UnknownWellKnown: 8},
}

// headerBonus is added per security header present.
var headerBonus = map[string]int{
	"strict-transport-security": 3,
	"content-security-policy":   2,
	"x-frame-options":           2,
}

func (d delta) apply(v model.Verdict, wellKnown bool) int {
	switch v {
	case model.VerdictGood:
		return d.Good
	case model.VerdictWarn:
		return d.Warn
	case model.VerdictBad:
		return d.Bad
	default:
		if wellKnown {
			return d.UnknownWellKnown
		}
		return 0
	}
}

// Heuristic computes the unbounded heuristic score of sig.
func Heuristic(sig heuristics.Signals) int {
	score := Baseline
	for key, d := range deltas {
		score += d.apply(sig.Verdict(key), sig.WellKnown)
	}
	if sig.WellKnown {
		score += WellKnownBonus
	}
	for _, name := range sig.SecurityHeaders {
		score += headerBonus[name]
	}
	return score
}

// Fuse combines the heuristic score with an optional AI judgment and
// returns the final score in [0, 100].
func Fuse(heuristic int, ai *model.AIJudgment) int {
	if ai == nil {
		return model.ClampScore(float64(heuristic))
	}

	aiScore := float64(model.ClampScore(float64(ai.LegitimacyScore)))
	h := float64(heuristic)
	switch ai.Confidence {
	case model.ConfidenceHigh:
		return model.ClampScore(aiScore)
	case model.ConfidenceMedium:
		return model.ClampScore(0.75*aiScore + 0.25*h)
	default:
		return model.ClampScore(0.5*aiScore + 0.5*h)
	}
}

// Outcome is a fused score and its status.
type Outcome struct {
	Heuristic int
	Score     int
	Status    model.Status
}

// Score computes the heuristic score, fuses it and maps it to a status.
func Score(sig heuristics.Signals, ai *model.AIJudgment) Outcome {
	h := Heuristic(sig)
	final := Fuse(h, ai)
	return Outcome{
		Heuristic: h,
		Score:     final,
		Status:    model.StatusForScore(final),
	}
}
