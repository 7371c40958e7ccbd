package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// funcStep adapts a function to Step.
type funcStep struct {
	name string
	fn   func(ctx context.Context, ev *Evidence) error
}

// NewStep creates a step from a function.
func NewStep(name string, fn func(ctx context.Context, ev *Evidence) error) Step {
	return &funcStep{name: name, fn: fn}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Do(ctx context.Context, ev *Evidence) error {
	return s.fn(ctx, ev)
}

// timeoutStep bounds a step with its own deadline.
type timeoutStep struct {
	Step
	timeout time.Duration
}

// WithTimeout bounds step with timeout. The parent deadline still applies
// when it is earlier.
func WithTimeout(step Step, timeout time.Duration) Step {
	if timeout <= 0 {
		return step
	}
	return &timeoutStep{Step: step, timeout: timeout}
}

func (s *timeoutStep) Do(ctx context.Context, ev *Evidence) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.Step.Do(ctx, ev)
}

// condStep runs its step only when cond holds.
type condStep struct {
	Step
	cond func(ev *Evidence) bool
}

// When runs step only if cond(ev) is true at execution time.
func When(cond func(ev *Evidence) bool, step Step) Step {
	return &condStep{Step: step, cond: cond}
}

func (s *condStep) Do(ctx context.Context, ev *Evidence) error {
	if !s.cond(ev) {
		return nil
	}
	return s.Step.Do(ctx, ev)
}

// parallelStep runs its children concurrently.
type parallelStep struct {
	name   string
	steps  []Step
	logger *slog.Logger
}

// Parallel groups independent steps. Children must write disjoint Evidence
// fields. A child's unavailable evidence becomes a warning and does not
// cancel its siblings; fatal child errors are joined.
func Parallel(name string, logger *slog.Logger, steps ...Step) Step {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &parallelStep{name: name, steps: steps, logger: logger}
}

func (s *parallelStep) Name() string { return s.name }

func (s *parallelStep) Do(ctx context.Context, ev *Evidence) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, step := range s.steps {
		g.Go(func() error {
			if err := runStep(ctx, step, ev, s.logger); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
