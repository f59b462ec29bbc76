// Package output provides the shared.Sink implementations used to route
// simulation lines: an in-memory recorder, a fan-out, and a guarded wrapper
// for stores that may fail.
package output

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/pkg/circuitbreaker"
	"github.com/alem-hub/lineage/pkg/logger"
	"github.com/alem-hub/lineage/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORDER
// ══════════════════════════════════════════════════════════════════════════════

// Recorder keeps every emitted line in memory.
type Recorder struct {
	mu    sync.Mutex
	lines []shared.Line
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements shared.Sink.
func (r *Recorder) Emit(_ context.Context, line shared.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []shared.Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Texts returns the text of every recorded line.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.lines))
	for _, l := range r.lines {
		out = append(out, l.Text)
	}
	return out
}

// OfKind returns the text of recorded lines of the given kind.
func (r *Recorder) OfKind(kind shared.LineKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if l.Kind == kind {
			out = append(out, l.Text)
		}
	}
	return out
}

// Reset drops all recorded lines.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FANOUT
// ══════════════════════════════════════════════════════════════════════════════

// Fanout emits each line to every sink in order. A failing sink does not
// stop delivery to the rest; all errors are joined.
type Fanout []shared.Sink

// Emit implements shared.Sink.
func (f Fanout) Emit(ctx context.Context, line shared.Line) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// GUARDED
// ══════════════════════════════════════════════════════════════════════════════

// Guarded wraps a sink backed by an external store. Each line is retried,
// and after repeated failures the circuit opens and lines are dropped until
// the store recovers. Guarded never returns an error: the transcript store
// is best-effort and must not interrupt a run.
type Guarded struct {
	name    string
	inner   shared.Sink
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	dropped int
}

// NewGuarded wraps inner. A nil retrier disables retries.
func NewGuarded(name string, inner shared.Sink, breaker *circuitbreaker.CircuitBreaker, retrier *retry.Retrier, log *logger.Logger) *Guarded {
	if log == nil {
		log = logger.Nop()
	}
	if breaker == nil {
		breaker = circuitbreaker.StoreBreaker(name, nil)
	}
	return &Guarded{
		name:    name,
		inner:   inner,
		breaker: breaker,
		retrier: retrier,
		log:     log.With(logger.Component(name)),
		timeout: 3 * time.Second,
	}
}

// Emit implements shared.Sink.
func (g *Guarded) Emit(ctx context.Context, line shared.Line) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		if g.retrier == nil {
			return g.inner.Emit(ctx, line)
		}
		return g.retrier.Do(ctx, func(ctx context.Context) error {
			return g.inner.Emit(ctx, line)
		})
	})
	if err == nil {
		return nil
	}

	g.mu.Lock()
	g.dropped++
	dropped := g.dropped
	g.mu.Unlock()

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		g.log.Debug("store unavailable, line dropped", logger.Int("dropped", dropped))
		return nil
	}
	g.log.Warn("failed to store line", logger.Err(err), logger.Int("dropped", dropped))
	return nil
}

// Dropped returns how many lines could not be stored.
func (g *Guarded) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// State returns the breaker state as text.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}

// String describes the guarded sink for logs.
func (g *Guarded) String() string {
	return fmt.Sprintf("%s(%s)", g.name, g.State())
}
