// Package narration speaks story text aloud. A Synthesizer walks an ordered
// list of strategies (usually remote then local) and falls back on any
// failure, so a segment is only lost when every strategy has failed.
package narration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"storyecho/internal/observe"
	"storyecho/internal/story/audio"
	"storyecho/internal/story/tts"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNarrationFailed is reported when no strategy could speak the text.
var ErrNarrationFailed = errors.New("narration failed")

// Synthesizer speaks text with the first strategy that succeeds.
type Synthesizer struct {
	strategies []Strategy
	metrics    *observe.Metrics
}

type Option func(*Synthesizer)

// WithMetrics records attempts and fallbacks on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

// New builds a Synthesizer over strategies in order. Nil entries are skipped.
func New(strategies []Strategy, opts ...Option) *Synthesizer {
	s := &Synthesizer{}
	for _, st := range strategies {
		if st != nil {
			s.strategies = append(s.strategies, st)
		}
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Strategies returns the kinds in fallback order.
func (s *Synthesizer) Strategies() []SourceKind {
	kinds := make([]SourceKind, 0, len(s.strategies))
	for _, st := range s.strategies {
		kinds = append(kinds, st.Kind())
	}
	return kinds
}

// Speak starts narrating text and returns at once. The returned handle is
// done once some strategy finished speaking, all of them failed
// (ErrNarrationFailed) or it was stopped (audio.ErrStopped).
func (s *Synthesizer) Speak(ctx context.Context, text string) *Narration {
	ctx, cancel := context.WithCancel(ctx)
	n := &Narration{cancel: cancel, done: make(chan struct{}), source: SourceNone}
	go s.run(ctx, n, text)
	return n
}

func (s *Synthesizer) run(ctx context.Context, n *Narration, text string) {
	defer n.cancel()

	lastErr := errors.New("no narration strategy configured")
	for i, st := range s.strategies {
		if ctx.Err() != nil {
			n.finish(audio.ErrStopped)
			return
		}
		if i > 0 {
			s.metrics.NarrationFallbacks.Add(ctx, 1, metric.WithAttributes(
				attribute.String("from", string(s.strategies[i-1].Kind())),
				attribute.String("to", string(st.Kind())),
			))
		}

		n.setSource(st.Kind())
		h, err := st.Speak(ctx, text)
		if err == nil {
			err = audio.Wait(ctx, h)
		}
		switch {
		case err == nil:
			s.record(st.Kind(), "ok")
			n.finish(nil)
			return
		case ctx.Err() != nil || errors.Is(err, audio.ErrStopped):
			s.record(st.Kind(), "stopped")
			n.finish(audio.ErrStopped)
			return
		}

		s.record(st.Kind(), "failed")
		lastErr = err
		entry := logrus.WithError(err).WithField("source", st.Kind())
		var se *tts.StatusError
		if errors.As(err, &se) {
			entry = entry.WithField("status", se.Code)
		}
		if i < len(s.strategies)-1 {
			entry.Warn("Narration strategy failed, falling back")
		} else {
			entry.Warn("Narration strategy failed")
		}
	}
	n.finish(fmt.Errorf("%w: %v", ErrNarrationFailed, lastErr))
}

func (s *Synthesizer) record(kind SourceKind, outcome string) {
	s.metrics.NarrationRequests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("source", string(kind)),
		attribute.String("outcome", outcome),
	))
}

// Narration is an in-flight Speak call.
type Narration struct {
	cancel  context.CancelFunc
	stopped atomic.Bool

	mu     sync.Mutex
	source SourceKind
	err    error
	done   chan struct{}
}

var _ audio.Handle = (*Narration)(nil)

// Stop cancels the narration. It never reports as finished afterwards.
func (n *Narration) Stop() {
	n.stopped.Store(true)
	n.cancel()
}

func (n *Narration) Done() <-chan struct{} { return n.done }

func (n *Narration) Err() error {
	select {
	case <-n.done:
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.err
	default:
		return nil
	}
}

// Source reports the strategy currently (or last) speaking.
func (n *Narration) Source() SourceKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.source
}

func (n *Narration) setSource(k SourceKind) {
	n.mu.Lock()
	n.source = k
	n.mu.Unlock()
}

func (n *Narration) finish(err error) {
	if n.stopped.Load() {
		err = audio.ErrStopped
	}
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
	close(n.done)
}
