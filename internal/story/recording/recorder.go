// Package recording captures the user's sound clips, one per story cue.
//
// Each cue moves through Idle -> Requesting -> Recording -> Stopped and may
// be re-recorded from Stopped. Only one cue can be capturing at a time since
// there is a single microphone behind the Recorder.
package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"storyecho/internal/domain/story"
	"storyecho/internal/media"
	"storyecho/internal/observe"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrConcurrentRecording is returned by Begin while another cue is capturing.
	ErrConcurrentRecording = errors.New("another cue is already recording")

	// ErrInvalidState is returned when an operation is not allowed in the
	// cue's current state.
	ErrInvalidState = errors.New("invalid recording state")

	// ErrClosed is returned after the Recorder has been closed.
	ErrClosed = errors.New("recorder closed")
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateStopped    State = "stopped"
)

// Resources hands out microphone streams and clip handles. *media.Registry
// implements it.
type Resources interface {
	AcquireStream(ctx context.Context, mic media.Microphone) (media.Stream, error)
	Release(s media.Stream) error
	CreateHandle(data []byte) (string, error)
	Revoke(url string)
}

type session struct {
	state State
	rec   story.Recording
	held  bool

	stream  media.Stream
	buf     bytes.Buffer
	drained chan struct{}
}

// Recorder owns the per-cue sessions of one story.
type Recorder struct {
	mic     media.Microphone
	store   Resources
	metrics *observe.Metrics

	mu       sync.Mutex
	sessions map[int]*session
	active   int
	closed   bool
}

type Option func(*Recorder)

func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder captures from mic and registers clips with store.
func NewRecorder(mic media.Microphone, store Resources, opts ...Option) *Recorder {
	r := &Recorder{
		mic:      mic,
		store:    store,
		sessions: make(map[int]*session),
		active:   -1,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

func (r *Recorder) sessionFor(cue int) *session {
	s, ok := r.sessions[cue]
	if !ok {
		s = &session{state: StateIdle}
		r.sessions[cue] = s
	}
	return s
}

func (r *Recorder) setState(cue int, s *session, state State) {
	s.state = state
	logrus.WithFields(logrus.Fields{"cue": cue, "state": state}).Debug("Recording state changed")
}

// Begin starts capturing cue. ctx bounds the wait for microphone access. A
// refused microphone returns an error wrapping media.ErrPermissionDenied and
// leaves the cue as it was.
func (r *Recorder) Begin(ctx context.Context, cue int) error {
	if cue < 0 {
		return fmt.Errorf("%w: cue %d", ErrInvalidState, cue)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.active >= 0 && r.active != cue {
		r.mu.Unlock()
		return fmt.Errorf("%w: cue %d", ErrConcurrentRecording, r.active)
	}
	s := r.sessionFor(cue)
	if s.state != StateIdle && s.state != StateStopped {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot begin cue %d while %s", ErrInvalidState, cue, s.state)
	}
	prev := s.state
	r.active = cue
	r.setState(cue, s, StateRequesting)
	r.mu.Unlock()

	stream, err := r.store.AcquireStream(ctx, r.mic)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && r.closed {
		_ = r.store.Release(stream)
		err = ErrClosed
	}
	if err != nil {
		r.active = -1
		r.setState(cue, s, prev)
		if errors.Is(err, media.ErrPermissionDenied) {
			logrus.WithField("cue", cue).Warn("Microphone access denied")
		}
		return fmt.Errorf("failed to start recording cue %d: %w", cue, err)
	}

	s.stream = stream
	s.buf.Reset()
	s.drained = make(chan struct{})
	go func(buf *bytes.Buffer, done chan struct{}) {
		defer close(done)
		// Read errors after a release are how the stream reports its end.
		_, _ = io.Copy(buf, stream)
	}(&s.buf, s.drained)

	r.setState(cue, s, StateRecording)
	return nil
}

// End stops capturing cue and stores the clip. The microphone stream is
// released whatever the outcome. An empty capture keeps any earlier clip.
func (r *Recorder) End(cue int) (story.Recording, error) {
	r.mu.Lock()
	s, ok := r.sessions[cue]
	if !ok || s.state != StateRecording || s.stream == nil {
		r.mu.Unlock()
		return story.Recording{}, fmt.Errorf("%w: cue %d is not recording", ErrInvalidState, cue)
	}
	stream, drained := s.stream, s.drained
	s.stream = nil
	r.mu.Unlock()

	releaseErr := r.store.Release(stream)
	<-drained

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == cue {
		r.active = -1
	}
	if r.closed {
		return story.Recording{}, ErrClosed
	}

	if releaseErr != nil {
		logrus.WithError(releaseErr).WithField("cue", cue).Debug("Microphone stream closed with error")
	}

	data := r.trim(s.buf.Bytes())
	if len(data) == 0 {
		r.setState(cue, s, StateStopped)
		r.count(story.RecordingEmpty)
		if s.held {
			return s.rec, nil
		}
		return story.Recording{CueIndex: cue, Status: story.RecordingEmpty}, nil
	}

	rec, err := r.keep(cue, s, r.clip(data))
	r.setState(cue, s, StateStopped)
	return rec, err
}

// keep swaps in a new clip for cue, revoking the old handle first.
func (r *Recorder) keep(cue int, s *session, clip story.Clip) (story.Recording, error) {
	if s.held {
		r.store.Revoke(s.rec.Handle)
		s.held = false
		s.rec = story.Recording{}
	}

	handle, err := r.store.CreateHandle(clip.Data)
	if err != nil {
		r.count(story.RecordingFailed)
		return story.Recording{CueIndex: cue, Status: story.RecordingFailed},
			fmt.Errorf("failed to register clip for cue %d: %w", cue, err)
	}

	s.rec = story.Recording{CueIndex: cue, Clip: clip, Handle: handle, Status: story.RecordingCaptured}
	s.held = true
	r.count(story.RecordingCaptured)
	logrus.WithFields(logrus.Fields{
		"cue":      cue,
		"bytes":    len(clip.Data),
		"duration": clip.Duration(),
	}).Debug("Clip captured")
	return s.rec, nil
}

func (r *Recorder) clip(data []byte) story.Clip {
	f := r.mic.Format()
	out := make([]byte, len(data))
	copy(out, data)
	return story.Clip{Data: out, SampleRate: f.SampleRate, Channels: f.Channels, Precision: f.Precision}
}

// trim drops a trailing partial frame.
func (r *Recorder) trim(data []byte) []byte {
	f := r.mic.Format()
	frame := f.Channels * f.Precision
	if frame <= 0 {
		return data
	}
	return data[:len(data)-len(data)%frame]
}

func (r *Recorder) count(status story.RecordingStatus) {
	r.metrics.ClipsCaptured.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", string(status))))
}

// Import installs an existing clip for cue, as if it had just been recorded.
func (r *Recorder) Import(cue int, clip story.Clip) (story.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return story.Recording{}, ErrClosed
	}
	if cue < 0 || r.active == cue {
		return story.Recording{}, fmt.Errorf("%w: cannot import cue %d", ErrInvalidState, cue)
	}
	if len(clip.Data) == 0 {
		return story.Recording{}, fmt.Errorf("%w: empty clip for cue %d", ErrInvalidState, cue)
	}
	s := r.sessionFor(cue)
	rec, err := r.keep(cue, s, clip)
	r.setState(cue, s, StateStopped)
	return rec, err
}

// State reports the state of cue. Unknown cues are Idle.
func (r *Recorder) State(cue int) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[cue]; ok {
		return s.state
	}
	return StateIdle
}

// Recording returns the clip held for cue. While the cue is capturing it
// reports a RecordingCapturing placeholder that is not playable.
func (r *Recorder) Recording(cue int) (story.Recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[cue]
	if ok && (s.state == StateRequesting || s.state == StateRecording) {
		return story.Recording{CueIndex: cue, Status: story.RecordingCapturing}, true
	}
	if !ok || !s.held {
		return story.Recording{}, false
	}
	return s.rec, true
}

// Recordings returns every held clip keyed by cue.
func (r *Recorder) Recordings() map[int]story.Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]story.Recording, len(r.sessions))
	for cue, s := range r.sessions {
		if s.held {
			out[cue] = s.rec
		}
	}
	return out
}

// Cues lists the cues that hold a clip, in order.
func (r *Recorder) Cues() []int {
	recs := r.Recordings()
	cues := make([]int, 0, len(recs))
	for cue := range recs {
		cues = append(cues, cue)
	}
	sort.Ints(cues)
	return cues
}

// Close stops any capture and revokes every clip handle.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var pending []chan struct{}
	var firstErr error
	for cue, s := range r.sessions {
		if s.stream != nil {
			if err := r.store.Release(s.stream); err != nil && firstErr == nil {
				firstErr = err
			}
			pending = append(pending, s.drained)
			s.stream = nil
		}
		if s.held {
			r.store.Revoke(s.rec.Handle)
			s.held = false
		}
		r.setState(cue, s, StateIdle)
	}
	r.active = -1
	r.mu.Unlock()

	for _, d := range pending {
		<-d
	}
	return firstErr
}
