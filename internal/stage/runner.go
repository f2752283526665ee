package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/itinera-ai/itinera/internal/blackboard"
	"github.com/itinera-ai/itinera/internal/types"
)

// fallbackConfidence tags patch entries produced by the degrade path.
const fallbackConfidence = 0.2

// Invocation is the runner's record of one stage execution.
type Invocation struct {
	Stage    string
	Outcome  *Outcome
	Err      error
	Duration time.Duration
	TimedOut bool
}

// Runner executes a single stage invocation with timeout enforcement and
// the degrade-to-fallback policy. The runner never mutates the
// blackboard; it hands outcomes back to the scheduler, which is the sole
// merger of record.
type Runner struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// RunnerOption is a functional option for configuring a Runner.
type RunnerOption func(*Runner)

// WithLogger configures the runner to use the specified structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer configures the runner to emit OpenTelemetry spans per
// stage invocation.
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// NewRunner creates a Runner with the specified options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run invokes one stage against a snapshot. On timeout the stage's
// fallback patch (if it provides one) is returned as a degraded outcome
// tagged with low confidence; a stage without a fallback degrades to an
// empty patch. The in-flight invocation is cancelled cooperatively and
// its late result discarded.
func (r *Runner) Run(ctx context.Context, s Stage, snap *blackboard.Snapshot, params Params, timeout time.Duration) *Invocation {
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "stage.invoke",
			trace.WithAttributes(
				attribute.String("stage.name", s.Name()),
				attribute.Int64("stage.timeout_ms", timeout.Milliseconds()),
			),
		)
		defer span.End()
	}

	start := time.Now()

	invokeCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type invokeResult struct {
		outcome *Outcome
		err     error
	}
	done := make(chan invokeResult, 1)

	go func() {
		outcome, err := s.Invoke(invokeCtx, snap, params)
		done <- invokeResult{outcome: outcome, err: err}
	}()

	var inv *Invocation
	select {
	case res := <-done:
		inv = &Invocation{
			Stage:    s.Name(),
			Outcome:  res.outcome,
			Err:      res.err,
			Duration: time.Since(start),
		}
	case <-invokeCtx.Done():
		inv = r.degrade(s, snap, params, start, invokeCtx.Err())
	}

	if span != nil {
		switch {
		case inv.Err != nil:
			span.SetStatus(codes.Error, inv.Err.Error())
			span.RecordError(inv.Err)
		case inv.TimedOut:
			span.SetStatus(codes.Error, "stage timed out, fallback applied")
		default:
			span.SetStatus(codes.Ok, "stage completed")
		}
	}

	if inv.Err != nil {
		r.logger.ErrorContext(ctx, "stage invocation failed",
			"stage", s.Name(),
			"duration", inv.Duration,
			"retryable", types.IsRetryable(inv.Err),
			"error", inv.Err,
		)
	} else {
		r.logger.InfoContext(ctx, "stage invocation finished",
			"stage", s.Name(),
			"duration", inv.Duration,
			"timed_out", inv.TimedOut,
			"outcome", inv.outcomeKind(),
		)
	}

	return inv
}

// degrade builds the fallback invocation for a timed-out or cancelled
// stage. A run-level cancellation (parent context done) is reported as an
// error instead, so the scheduler can stop dispatching.
func (r *Runner) degrade(s Stage, snap *blackboard.Snapshot, params Params, start time.Time, cause error) *Invocation {
	if cause == context.Canceled {
		return &Invocation{
			Stage:    s.Name(),
			Err:      types.WrapError(types.RUN_CANCELLED, "stage cancelled before completion", cause),
			Duration: time.Since(start),
		}
	}

	r.logger.Warn("stage timed out, applying fallback",
		"stage", s.Name(),
		"duration", time.Since(start),
	)

	patch := &blackboard.Patch{}
	if fp, ok := s.(FallbackProvider); ok {
		if fb := fp.Fallback(snap, params); !fb.IsEmpty() {
			// Re-tag every fallback entry with low confidence regardless
			// of what the provider claimed.
			for _, pe := range fb.Entries {
				patch.Add(pe.Key, pe.Value, fallbackConfidence)
			}
		}
	}

	return &Invocation{
		Stage: s.Name(),
		Outcome: &Outcome{
			Kind:     OutcomePatch,
			Patch:    patch,
			Degraded: true,
		},
		Duration: time.Since(start),
		TimedOut: true,
	}
}

// outcomeKind reports the outcome discriminator, tolerating stages that
// returned neither an outcome nor an error.
func (inv *Invocation) outcomeKind() OutcomeKind {
	if inv.Outcome == nil {
		return "none"
	}
	return inv.Outcome.Kind
}

// Describe renders a short diagnostic line for logs and decision records.
func (inv *Invocation) Describe() string {
	switch {
	case inv.Err != nil:
		return fmt.Sprintf("%s: error: %v", inv.Stage, inv.Err)
	case inv.TimedOut:
		return fmt.Sprintf("%s: timed out after %v, fallback applied", inv.Stage, inv.Duration.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%s: %s in %v", inv.Stage, inv.outcomeKind(), inv.Duration.Round(time.Millisecond))
	}
}
