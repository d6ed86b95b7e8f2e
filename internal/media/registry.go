package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const handlePrefix = "blob:storyecho/"

// Registry tracks live streams and playable handles for one story session.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	closed  bool
	streams map[*trackedStream]struct{}
	handles map[string][]byte
}

func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[*trackedStream]struct{}),
		handles: make(map[string][]byte),
	}
}

// trackedStream releases its underlying stream once and unregisters itself.
type trackedStream struct {
	Stream
	reg      *Registry
	once     sync.Once
	closeErr error
}

func (s *trackedStream) Close() error {
	s.once.Do(func() {
		s.closeErr = s.Stream.Close()
		s.reg.mu.Lock()
		delete(s.reg.streams, s)
		s.reg.mu.Unlock()
	})
	return s.closeErr
}

// AcquireStream opens mic and tracks the result. The returned stream must be
// handed back with Release (or closed directly); both are idempotent.
func (r *Registry) AcquireStream(ctx context.Context, mic Microphone) (Stream, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.mu.Unlock()

	raw, err := mic.Open(ctx)
	if err != nil {
		return nil, err
	}

	ts := &trackedStream{Stream: raw, reg: r}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = raw.Close()
		return nil, ErrRegistryClosed
	}
	r.streams[ts] = struct{}{}
	r.mu.Unlock()

	logrus.Debug("microphone stream acquired")
	return ts, nil
}

// Release closes a stream. Safe to call more than once and on streams that
// have already been released.
func (r *Registry) Release(s Stream) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// CreateHandle registers clip data and returns a URL-like handle for it.
func (r *Registry) CreateHandle(data []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRegistryClosed
	}
	url := handlePrefix + uuid.NewString()
	r.handles[url] = data
	return url, nil
}

// Revoke drops a handle. Unknown or already revoked handles are ignored.
func (r *Registry) Revoke(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, url)
}

// Open resolves a handle to its data.
func (r *Registry) Open(url string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.handles[url]
	if !ok {
		return nil, fmt.Errorf("playable handle %q is not live", url)
	}
	return data, nil
}

// Outstanding reports how many streams and handles are still live.
func (r *Registry) Outstanding() (streams, handles int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams), len(r.handles)
}

// Close releases everything still live and rejects further acquisitions.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	streams := make([]*trackedStream, 0, len(r.streams))
	for s := range r.streams {
		streams = append(streams, s)
	}
	handles := len(r.handles)
	r.handles = make(map[string][]byte)
	r.mu.Unlock()

	var firstErr error
	for _, s := range streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(streams) > 0 || handles > 0 {
		logrus.WithFields(logrus.Fields{
			"streams": len(streams),
			"handles": handles,
		}).Debug("released media on teardown")
	}
	return firstErr
}
