package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/trustscan/internal/model"
)

// Judge asks a Completer for a judgment and validates it.
type Judge struct {
	completer      Completer
	promptMaxChars int
	logger         *slog.Logger
}

// JudgeOption configures a Judge.
type JudgeOption func(*Judge)

// WithPromptMaxChars caps the page text embedded in the prompt.
func WithPromptMaxChars(n int) JudgeOption {
	return func(j *Judge) {
		j.promptMaxChars = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) JudgeOption {
	return func(j *Judge) {
		j.logger = l
	}
}

// NewJudge creates a Judge backed by c.
func NewJudge(c Completer, opts ...JudgeOption) *Judge {
	j := &Judge{
		completer:      c,
		promptMaxChars: 15000,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.New(slog.DiscardHandler)
	}
	return j
}

// Judge returns a validated, guardrailed judgment for ev.
//
// ErrNoCredential is returned unchanged. Every other failure, including
// invalid output, wraps model.ErrUnavailable so callers can fall back to
// heuristic-only scoring.
func (j *Judge) Judge(ctx context.Context, ev Evidence) (*model.AIJudgment, error) {
	if j.completer == nil {
		return nil, ErrNoCredential
	}

	raw, err := j.completer.Complete(ctx, BuildPrompt(ev, j.promptMaxChars))
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ai completion: %s", model.ErrUnavailable, err.Error())
	}

	judgment, err := ParseJudgment(raw)
	if err != nil {
		j.logger.Debug("discarding AI output", "url", ev.URL, "error", err)
		return nil, fmt.Errorf("%w: %w", model.ErrUnavailable, err)
	}

	if ApplyGuardrail(judgment, ev) {
		j.logger.Debug("AI guardrail applied", "url", ev.URL, "score", judgment.LegitimacyScore, "confidence", judgment.Confidence)
	}
	return judgment, nil
}

// ExplainabilityKey is the key of the AI explainability item.
const ExplainabilityKey = "ai_judgment"

// ExplainabilityItem summarizes a judgment as an explainability item.
func ExplainabilityItem(j *model.AIJudgment) model.ExplainabilityItem {
	verdict := model.VerdictWarn
	switch j.Verdict {
	case model.AIVerdictLegitimate:
		verdict = model.VerdictGood
	case model.AIVerdictSuspicious, model.AIVerdictLikelyDeceptive:
		verdict = model.VerdictBad
	}

	detail := j.Summary
	if detail == "" {
		detail = j.Assessment
	}
	detail = fmt.Sprintf("Score %d/100, %s confidence. %s", j.LegitimacyScore, j.Confidence, detail)

	return model.ExplainabilityItem{
		Key:     ExplainabilityKey,
		Label:   "AI assessment",
		Verdict: verdict,
		Detail:  detail,
	}
}
