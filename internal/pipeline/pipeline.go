package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// Step is one stage of an analysis.
type Step interface {
	// Do executes the step. Unavailable evidence is reported by returning
	// an error that wraps model.ErrUnavailable.
	Do(ctx context.Context, ev *Evidence) error

	// Name returns the step name used in logs, warnings and timings.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing after a fatal step error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails with an error other than model.ErrUnavailable.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked between
// steps; each step enforces its own timeout.
//
// Unavailable evidence becomes a warning on ev. The first other error is
// returned unless continueOnError is set, in which case all such errors are
// joined and returned after the last step.
func (p *Pipeline) Execute(ctx context.Context, ev *Evidence) error {
	var errs []error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", ev.URL,
				"reason", err,
			)
			ev.AddWarning(fmt.Sprintf("%s: skipped, deadline exceeded", step.Name()))
			continue
		}

		if err := runStep(ctx, step, ev, p.logger); err != nil {
			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runStep executes one step, records its timing and converts unavailable
// evidence into a warning. It returns only fatal errors.
func runStep(ctx context.Context, step Step, ev *Evidence, logger *slog.Logger) error {
	start := time.Now()
	err := step.Do(ctx, ev)
	ev.RecordTiming(step.Name(), time.Since(start))

	switch {
	case err == nil:
		logger.Debug("step completed", "step", step.Name(), "url", ev.URL)
		return nil
	case errors.Is(err, model.ErrUnavailable):
		logger.Debug("evidence unavailable", "step", step.Name(), "url", ev.URL, "error", err)
		ev.AddWarning(fmt.Sprintf("%s: %v", step.Name(), err))
		return nil
	default:
		logger.Error("step failed", "step", step.Name(), "url", ev.URL, "error", err)
		return fmt.Errorf("%s: %w", step.Name(), err)
	}
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
