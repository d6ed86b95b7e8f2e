package narration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"storyecho/internal/media"
	"storyecho/internal/observe"
	"storyecho/internal/story/audio"
	"storyecho/internal/story/tts"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type failingRemote struct {
	err   error
	calls int
}

func (f *failingRemote) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

// fakeStrategy hands out trackers the test finishes by hand.
type fakeStrategy struct {
	kind     SourceKind
	speakErr error
	started  chan *audio.Tracker
}

func newFakeStrategy(kind SourceKind) *fakeStrategy {
	return &fakeStrategy{kind: kind, started: make(chan *audio.Tracker, 4)}
}

func (f *fakeStrategy) Kind() SourceKind { return f.kind }

func (f *fakeStrategy) Speak(ctx context.Context, text string) (audio.Handle, error) {
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	t := audio.NewTracker(nil)
	f.started <- t
	return t, nil
}

func waitDone(t *testing.T, h audio.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("narration did not finish")
	}
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestRateLimitedRemoteFallsBackToLocal(t *testing.T) {
	reg := media.NewRegistry()
	remote := &failingRemote{err: &tts.StatusError{Code: http.StatusTooManyRequests}}
	local := tts.NewMockTTSEngine(tts.Config{}).WithWordDuration(time.Millisecond)
	m, reader := testMetrics(t)

	s := New([]Strategy{
		NewRemoteStrategy(remote, nil, reg, time.Second),
		NewLocalStrategy(local),
	}, WithMetrics(m))

	n := s.Speak(context.Background(), "The wolf huffed and puffed.")
	waitDone(t, n)

	if err := n.Err(); err != nil {
		t.Fatalf("Err = %v, want nil", err)
	}
	if n.Source() != SourceLocal {
		t.Fatalf("Source = %s, want local", n.Source())
	}
	if remote.calls != 1 {
		t.Fatalf("remote calls = %d, want 1", remote.calls)
	}
	if streams, handles := reg.Outstanding(); streams != 0 || handles != 0 {
		t.Fatalf("outstanding = %d/%d", streams, handles)
	}
	if got := counterTotal(t, reader, "storyecho.narration.fallbacks"); got != 1 {
		t.Fatalf("fallbacks = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "storyecho.narration.requests"); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
}

func TestRemoteStrategyReturnsStatusError(t *testing.T) {
	reg := media.NewRegistry()
	rs := NewRemoteStrategy(&failingRemote{err: &tts.StatusError{Code: 429}}, nil, reg, time.Second)

	_, err := rs.Speak(context.Background(), "hello")
	var se *tts.StatusError
	if !errors.As(err, &se) || !se.IsRateLimited() {
		t.Fatalf("err = %v, want rate limited status", err)
	}
	if !errors.Is(err, tts.ErrSynthesis) {
		t.Fatalf("err should wrap ErrSynthesis")
	}
	if _, handles := reg.Outstanding(); handles != 0 {
		t.Fatalf("handles = %d, want 0", handles)
	}
}

func TestPlaybackFailureFallsBack(t *testing.T) {
	first := newFakeStrategy(SourceRemote)
	second := newFakeStrategy(SourceLocal)
	m, _ := testMetrics(t)
	n := New([]Strategy{first, second}, WithMetrics(m)).Speak(context.Background(), "text")

	(<-first.started).Finish(audio.ErrPlayback)
	(<-second.started).Finish(nil)
	waitDone(t, n)

	if n.Err() != nil || n.Source() != SourceLocal {
		t.Fatalf("got err=%v source=%s", n.Err(), n.Source())
	}
}

func TestAllStrategiesFail(t *testing.T) {
	a := newFakeStrategy(SourceRemote)
	a.speakErr = errors.New("offline")
	b := newFakeStrategy(SourceLocal)
	b.speakErr = errors.New("no voice")
	m, _ := testMetrics(t)

	n := New([]Strategy{a, b}, WithMetrics(m)).Speak(context.Background(), "text")
	waitDone(t, n)
	if !errors.Is(n.Err(), ErrNarrationFailed) {
		t.Fatalf("Err = %v, want ErrNarrationFailed", n.Err())
	}
}

func TestNoStrategies(t *testing.T) {
	m, _ := testMetrics(t)
	n := New(nil, WithMetrics(m)).Speak(context.Background(), "text")
	waitDone(t, n)
	if !errors.Is(n.Err(), ErrNarrationFailed) {
		t.Fatalf("Err = %v", n.Err())
	}
}

func TestStopNeverReportsFinished(t *testing.T) {
	st := newFakeStrategy(SourceLocal)
	m, _ := testMetrics(t)
	n := New([]Strategy{st}, WithMetrics(m)).Speak(context.Background(), "text")

	inner := <-st.started
	n.Stop()
	waitDone(t, n)
	inner.Finish(nil)

	if !errors.Is(n.Err(), audio.ErrStopped) {
		t.Fatalf("Err = %v, want ErrStopped", n.Err())
	}
	if !errors.Is(inner.Err(), audio.ErrStopped) {
		t.Fatalf("inner handle was not stopped: %v", inner.Err())
	}
}

func TestContextCancelStopsNarration(t *testing.T) {
	st := newFakeStrategy(SourceLocal)
	m, _ := testMetrics(t)
	ctx, cancel := context.WithCancel(context.Background())
	n := New([]Strategy{st}, WithMetrics(m)).Speak(ctx, "text")

	<-st.started
	cancel()
	waitDone(t, n)
	if !errors.Is(n.Err(), audio.ErrStopped) {
		t.Fatalf("Err = %v", n.Err())
	}
}

func TestNilStrategiesSkipped(t *testing.T) {
	s := New([]Strategy{nil, newFakeStrategy(SourceLocal)})
	if got := s.Strategies(); len(got) != 1 || got[0] != SourceLocal {
		t.Fatalf("Strategies = %v", got)
	}
}
