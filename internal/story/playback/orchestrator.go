// Package playback plays a story end to end: each segment is narrated, then
// its recorded cue clip (or a short pause) follows, then the ending.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"storyecho/internal/domain/story"
	"storyecho/internal/observe"
	"storyecho/internal/story/audio"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrAlreadyPlaying is returned by Start when a story is already playing. The
// running playback is cancelled, so a second Start acts as a stop toggle.
var ErrAlreadyPlaying = errors.New("playback already in progress")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusPlaying   Status = "playing"
	StatusCancelled Status = "cancelled"
)

// Outcome is how a playback run ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
)

// Narrator speaks text. The handle must always become done.
type Narrator interface {
	Speak(ctx context.Context, text string) audio.Handle
}

// NarratorFunc adapts a function to Narrator.
type NarratorFunc func(ctx context.Context, text string) audio.Handle

func (f NarratorFunc) Speak(ctx context.Context, text string) audio.Handle { return f(ctx, text) }

// ClipPlayer plays a recorded cue clip.
type ClipPlayer interface {
	PlayClip(ctx context.Context, rec story.Recording) (audio.Handle, error)
}

const (
	DefaultCuePause     = time.Second
	DefaultSegmentPause = 500 * time.Millisecond
)

type Option func(*Orchestrator)

// WithProgress calls fn whenever the current segment changes. fn runs on
// the playback goroutine and must not block.
func WithProgress(fn func(story.SegmentIndex)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithPauses sets the pause substituted for a missing clip and the pause
// between segments.
func WithPauses(cue, segment time.Duration) Option {
	return func(o *Orchestrator) {
		o.cuePause = cue
		o.segmentPause = segment
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

type run struct {
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Orchestrator owns the single active playback of a session.
type Orchestrator struct {
	narrator     Narrator
	clips        ClipPlayer
	cuePause     time.Duration
	segmentPause time.Duration
	progress     func(story.SegmentIndex)
	metrics      *observe.Metrics

	mu      sync.Mutex
	status  Status
	current story.SegmentIndex
	active  *run
}

func New(narrator Narrator, clips ClipPlayer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		narrator:     narrator,
		clips:        clips,
		cuePause:     DefaultCuePause,
		segmentPause: DefaultSegmentPause,
		status:       StatusIdle,
		current:      story.None,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Start begins playing s in the background. recs maps cue index to the
// user's recording; it is only read.
func (o *Orchestrator) Start(ctx context.Context, s *story.Story, recs map[int]story.Recording) error {
	if err := s.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.status != StatusIdle {
		o.mu.Unlock()
		o.Cancel()
		return ErrAlreadyPlaying
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	o.active = r
	o.status = StatusPlaying
	o.current = 0
	o.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"title":    s.Title,
		"segments": len(s.Segments),
		"clips":    len(recs),
	}).Info("Starting playback")

	go o.play(ctx, r, s, recs)
	return nil
}

// Run plays s and waits for it to end.
func (o *Orchestrator) Run(ctx context.Context, s *story.Story, recs map[int]story.Recording) (Outcome, error) {
	if err := o.Start(ctx, s, recs); err != nil {
		return OutcomeNone, err
	}
	return o.Wait(ctx)
}

// Wait blocks until the latest playback has ended. If ctx ends first the
// playback is cancelled and Wait still waits for it to release its audio.
func (o *Orchestrator) Wait(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	r := o.active
	o.mu.Unlock()
	if r == nil {
		return OutcomeNone, nil
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		r.cancel()
		<-r.done
	}
	return r.outcome, nil
}

// Cancel stops the current playback at its next suspension point. It is a
// no-op when nothing is playing.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusPlaying || o.active == nil {
		return
	}
	o.status = StatusCancelled
	o.active.cancel()
	logrus.Info("Playback cancelled")
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Current is the segment being played, or story.None.
func (o *Orchestrator) Current() story.SegmentIndex {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) setCurrent(i story.SegmentIndex) {
	o.mu.Lock()
	o.current = i
	o.mu.Unlock()
	if o.progress != nil {
		o.progress(i)
	}
}

func (o *Orchestrator) play(ctx context.Context, r *run, s *story.Story, recs map[int]story.Recording) {
	outcome := OutcomeCancelled
	defer func() {
		r.cancel()
		o.mu.Lock()
		r.outcome = outcome
		o.status = StatusIdle
		o.current = story.None
		o.mu.Unlock()
		if o.progress != nil {
			o.progress(story.None)
		}
		logrus.WithField("outcome", outcome).Info("Playback finished")
		close(r.done)
	}()

	for i, text := range s.Segments {
		if ctx.Err() != nil {
			return
		}
		o.setCurrent(story.SegmentIndex(i))

		o.narrate(ctx, i, text)
		if ctx.Err() != nil {
			return
		}

		rec, ok := recs[i]
		played := ok && rec.Playable() && o.clips != nil
		o.metrics.SegmentsPlayed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("clip", played)))
		if played {
			o.playClip(ctx, i, rec)
		} else if !sleep(ctx, o.cuePause) {
			return
		}
		if ctx.Err() != nil {
			return
		}

		if !sleep(ctx, o.segmentPause) {
			return
		}
	}

	if s.Ending != "" {
		o.narrate(ctx, -1, s.Ending)
		if ctx.Err() != nil {
			return
		}
	}
	outcome = OutcomeCompleted
}

// narrate speaks text and absorbs any failure. segment is -1 for the ending.
func (o *Orchestrator) narrate(ctx context.Context, segment int, text string) {
	h := o.narrator.Speak(ctx, text)
	err := audio.Wait(ctx, h)
	if err == nil || ctx.Err() != nil || errors.Is(err, audio.ErrStopped) {
		return
	}
	logrus.WithError(err).WithField("segment", segment).Warn("Narration skipped")
}

func (o *Orchestrator) playClip(ctx context.Context, segment int, rec story.Recording) {
	h, err := o.clips.PlayClip(ctx, rec)
	if err == nil {
		err = audio.Wait(ctx, h)
	}
	if err == nil || ctx.Err() != nil || errors.Is(err, audio.ErrStopped) {
		return
	}
	logrus.WithError(err).WithField("segment", segment).Warn("Clip playback skipped")
}

// sleep pauses for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o Outcome) String() string {
	if o == OutcomeNone {
		return "none"
	}
	return string(o)
}
