package scoring

import (
	"testing"

	"github.com/nao1215/trustscan/internal/heuristics"
	"github.com/nao1215/trustscan/internal/model"
)

func signals(wellKnown bool, verdicts map[string]model.Verdict, headers ...string) heuristics.Signals {
	sig := heuristics.Signals{WellKnown: wellKnown, SecurityHeaders: headers}
	for key, v := range verdicts {
		sig.Items = append(sig.Items, model.ExplainabilityItem{Key: key, Verdict: v})
	}
	return sig
}

func TestHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sig  heuristics.Signals
		want int
	}{
		{
			name: "all unknown",
			sig:  signals(false, nil),
			want: 50,
		},
		{
			name: "all unknown but well known",
			sig:  signals(true, nil),
			want: 50 + 10 + 10 + 3 + 8 + 15,
		},
		{
			name: "established site",
			sig: signals(false, map[string]model.Verdict{
				heuristics.KeyHTTPS:          model.VerdictGood,
				heuristics.KeyDomainAge:      model.VerdictGood,
				heuristics.KeyBusinessInfo:   model.VerdictGood,
				heuristics.KeyMedicalClaims:  model.VerdictGood,
				heuristics.KeySupportSignals: model.VerdictGood,
			}, "strict-transport-security", "content-security-policy", "x-frame-options"),
			want: 50 + 12 + 15 + 12 + 5 + 10 + 3 + 2 + 2,
		},
		{
			name: "new plain http site without html",
			sig: signals(false, map[string]model.Verdict{
				heuristics.KeyHTTPS:     model.VerdictWarn,
				heuristics.KeyDomainAge: model.VerdictBad,
			}),
			want: 50 - 10 - 12,
		},
		{
			name: "everything bad",
			sig: signals(false, map[string]model.Verdict{
				heuristics.KeyHTTPS:          model.VerdictBad,
				heuristics.KeyDomainAge:      model.VerdictBad,
				heuristics.KeyBusinessInfo:   model.VerdictBad,
				heuristics.KeyMedicalClaims:  model.VerdictBad,
				heuristics.KeySupportSignals: model.VerdictBad,
			}),
			want: 50 - 15 - 12 - 8 - 8 - 6,
		},
		{
			name: "warns",
			sig: signals(false, map[string]model.Verdict{
				heuristics.KeyDomainAge:      model.VerdictWarn,
				heuristics.KeyBusinessInfo:   model.VerdictWarn,
				heuristics.KeyMedicalClaims:  model.VerdictWarn,
				heuristics.KeySupportSignals: model.VerdictWarn,
			}, "x-frame-options"),
			want: 50 + 5 + 3 - 8 + 2 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Heuristic(tt.sig); got != tt.want {
				t.Errorf("Heuristic = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFuse(t *testing.T) {
	t.Parallel()

	judge := func(score int, c model.Confidence) *model.AIJudgment {
		return &model.AIJudgment{LegitimacyScore: score, Confidence: c}
	}

	tests := []struct {
		name      string
		heuristic int
		ai        *model.AIJudgment
		want      int
	}{
		{"no ai keeps heuristic", 63, nil, 63},
		{"no ai clamps high", 121, nil, 100},
		{"no ai clamps low", -14, nil, 0},
		{"high confidence replaces", 10, judge(88, model.ConfidenceHigh), 88},
		{"high confidence ignores heuristic", 140, judge(20, model.ConfidenceHigh), 20},
		{"high confidence clamps ai", 50, judge(130, model.ConfidenceHigh), 100},
		{"medium blends 75/25", 40, judge(80, model.ConfidenceMedium), 70},
		{"medium rounds", 41, judge(80, model.ConfidenceMedium), 70},
		{"low blends 50/50", 40, judge(81, model.ConfidenceLow), 61},
		{"missing confidence blends 50/50", 30, judge(70, ""), 50},
		{"blend clamps", 200, judge(100, model.ConfidenceLow), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Fuse(tt.heuristic, tt.ai)
			if got != tt.want {
				t.Errorf("Fuse = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("score %d out of range", got)
			}
		})
	}
}

func TestScore_EndToEnd(t *testing.T) {
	t.Parallel()

	t.Run("established site is low risk", func(t *testing.T) {
		t.Parallel()

		days := 4000
		status := 200
		ct := "text/html"
		sig := heuristics.Evaluate(heuristics.Input{
			URL:           "https://example.com/",
			HTML:          "<p>About us, contact, privacy policy and terms.</p>",
			DomainAgeDays: &days,
			Fetch: model.FetchInfo{
				FinalURL:      "https://example.com/",
				Status:        &status,
				ContentType:   &ct,
				RedirectChain: []string{},
				HTMLAvailable: true,
			},
		})
		out := Score(sig, nil)
		if out.Score < 75 || out.Status != model.StatusLowRisk {
			t.Errorf("expected low risk, got %+v", out)
		}
	})

	t.Run("new site without html is never low risk", func(t *testing.T) {
		t.Parallel()

		days := 12
		sig := heuristics.Evaluate(heuristics.Input{
			URL:           "http://totally-new-shop-xyz123.biz/",
			DomainAgeDays: &days,
			Fetch:         model.FetchInfo{FinalURL: "http://totally-new-shop-xyz123.biz/", RedirectChain: []string{}},
		})
		out := Score(sig, nil)
		if out.Status == model.StatusLowRisk {
			t.Errorf("expected risk, got %+v", out)
		}
		if out.Heuristic != 28 {
			t.Errorf("heuristic = %d, want 28", out.Heuristic)
		}
	})
}
