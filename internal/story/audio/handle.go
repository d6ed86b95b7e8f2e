// Package audio plays narration and recorded clips through the speaker and
// exposes every playing sound as a Handle.
package audio

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrStopped reports that a handle was stopped before it finished.
	// It marks a clean cancellation, not a failure.
	ErrStopped = errors.New("playback stopped")

	// ErrPlayback reports that audio could not be decoded or played.
	ErrPlayback = errors.New("playback failed")
)

// Handle is a sound that is playing. Done is closed once the sound finishes,
// fails or is stopped; Err then reports which (nil means it finished).
type Handle interface {
	Stop()
	Done() <-chan struct{}
	Err() error
}

// Tracker is a Handle implementation for backends that report completion
// through a callback. The first outcome wins; a Stop that lands first means
// a later completion is never reported as finished.
type Tracker struct {
	once sync.Once
	done chan struct{}
	err  error
	stop func()
}

var _ Handle = (*Tracker)(nil)

// NewTracker returns a Tracker whose Stop calls stop after marking the handle
// as stopped. stop may be nil.
func NewTracker(stop func()) *Tracker {
	return &Tracker{done: make(chan struct{}), stop: stop}
}

// Finish records the outcome. Only the first call has an effect.
func (t *Tracker) Finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (t *Tracker) Stop() {
	t.Finish(ErrStopped)
	if t.stop != nil {
		t.stop()
	}
}

func (t *Tracker) Done() <-chan struct{} { return t.done }

func (t *Tracker) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until h is done or ctx is cancelled. On cancellation h is
// stopped and released before Wait returns ctx.Err().
func Wait(ctx context.Context, h Handle) error {
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		h.Stop()
		<-h.Done()
		return ctx.Err()
	}
}

// Failed returns a handle that is already done with err.
func Failed(err error) Handle {
	t := NewTracker(nil)
	t.Finish(err)
	return t
}

type releasingHandle struct {
	Handle
	done chan struct{}
}

func (r *releasingHandle) Done() <-chan struct{} { return r.done }

// WithRelease runs release once h is done, before the returned handle
// reports done. Callers therefore never observe a finished handle whose
// resources are still held.
func WithRelease(h Handle, release func()) Handle {
	r := &releasingHandle{Handle: h, done: make(chan struct{})}
	go func() {
		<-h.Done()
		release()
		close(r.done)
	}()
	return r
}

// StopOnCancel stops h when ctx ends before h is done.
func StopOnCancel(ctx context.Context, h Handle) {
	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.Done():
		}
	}()
}
