// Package pipeline chains steps over core.ImageData and provides the
// built-in decode, tone, geometry and encode steps.
package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/imagecore/core"
	apperrors "github.com/Skryldev/imagecore/errors"
	"github.com/Skryldev/imagecore/utils"
)

// Pipeline is a reusable sequence of steps.  A Pipeline is not modified by
// Run, so one value may be run from several goroutines once built.
type Pipeline struct {
	steps  []core.Step
	hooks  []core.Hook
	reg    *core.Registry
	logger core.Logger

	maxRetries int
	retryDelay time.Duration
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{logger: core.NopLogger{}} }

// Use appends steps.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// WithRetry sets how often a step failing with a transient error is retried
// and the pause between attempts.
func (p *Pipeline) WithRetry(maxRetries int, delay time.Duration) *Pipeline {
	p.maxRetries = maxRetries
	p.retryDelay = delay
	return p
}

// WithRegistry lets Run identify encoded input whose Format is unknown.
func (p *Pipeline) WithRegistry(reg *core.Registry) *Pipeline {
	p.reg = reg
	return p
}

// WithLogger attaches a logger for retries and failures.
func (p *Pipeline) WithLogger(l core.Logger) *Pipeline {
	if l == nil {
		l = core.NopLogger{}
	}
	p.logger = l
	return p
}

// Steps returns the step names in run order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes every step on img and returns the final image with the time
// spent in each step.  The first failing step ends the run.
func (p *Pipeline) Run(ctx context.Context, img *core.ImageData) (*core.ImageData, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.steps))
	current := p.identify(img)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		next, elapsed, err := p.runStep(ctx, step, current)
		timings[step.Name()] = elapsed
		if err != nil {
			p.logger.Debug("pipeline.step.failed", "step", step.Name(), "error", err.Error())
			return nil, timings, err
		}
		current = next
	}
	return current, timings, nil
}

// identify fills in the format of undecoded input when a registry is bound.
func (p *Pipeline) identify(img *core.ImageData) *core.ImageData {
	if p.reg == nil || img.Bitmap != nil || len(img.Data) == 0 || img.Format != core.FormatUnknown {
		return img
	}
	id, err := p.reg.DetectFormat(utils.NewMemoryStream(img.Data))
	if err != nil {
		return img
	}
	out := *img
	out.Format = id
	return &out
}

func (p *Pipeline) runStep(ctx context.Context, step core.Step, img *core.ImageData) (*core.ImageData, time.Duration, error) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, step.Name(), img)
	}

	var (
		result *core.ImageData
		total  time.Duration
		err    error
	)
	for attempt := 0; ; attempt++ {
		start := time.Now()
		result, err = step.Execute(ctx, img)
		total += time.Since(start)
		if err == nil || !apperrors.IsRetryable(err) || attempt == p.maxRetries {
			break
		}
		p.logger.Warn("pipeline.step.retry", "step", step.Name(), "attempt", attempt+1, "error", err.Error())
		if err = sleep(ctx, p.retryDelay); err != nil {
			err = apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
			break
		}
	}

	for _, h := range p.hooks {
		h.AfterStep(ctx, step.Name(), result, total, err)
	}
	return result, total, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Clone returns a copy whose step and hook lists can be extended without
// affecting p.
func (p *Pipeline) Clone() *Pipeline {
	cp := *p
	cp.steps = append([]core.Step(nil), p.steps...)
	cp.hooks = append([]core.Hook(nil), p.hooks...)
	return &cp
}
