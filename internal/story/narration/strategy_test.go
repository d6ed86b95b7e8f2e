package narration

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyecho/internal/domain/story"
	"storyecho/internal/media"
	"storyecho/internal/story/audio"

	"github.com/faiface/beep"
)

type okRemote struct{}

func (okRemote) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte{0, 1, 0, 2, 0, 3, 0, 4}, nil
}

func pcmDecoder(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	return audio.NewClipStreamer(story.Clip{Data: data, SampleRate: 8000, Channels: 1, Precision: 2})
}

// fakePlayer hands every stream to the test as a tracker it finishes by hand.
type fakePlayer struct {
	started chan *audio.Tracker
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{started: make(chan *audio.Tracker, 4)}
}

func (p *fakePlayer) Play(ctx context.Context, s beep.StreamSeekCloser, format beep.Format) (audio.Handle, error) {
	t := audio.NewTracker(nil)
	go func() {
		<-t.Done()
		s.Close()
	}()
	p.started <- t
	return t, nil
}

func assertNoLeaks(t *testing.T, reg *media.Registry) {
	t.Helper()
	if streams, handles := reg.Outstanding(); streams != 0 || handles != 0 {
		t.Fatalf("outstanding = %d streams, %d handles; want 0, 0", streams, handles)
	}
}

func TestRemoteNarrationReleasesHandle(t *testing.T) {
	reg := media.NewRegistry()
	player := newFakePlayer()
	m, _ := testMetrics(t)
	remote := NewRemoteStrategy(okRemote{}, player, reg, time.Second).WithDecoder(pcmDecoder)

	n := New([]Strategy{remote}, WithMetrics(m)).Speak(context.Background(), "Once upon a time")
	playing := <-player.started
	if _, handles := reg.Outstanding(); handles != 1 {
		t.Fatalf("handles while playing = %d, want 1", handles)
	}

	playing.Finish(nil)
	waitDone(t, n)
	if n.Err() != nil || n.Source() != SourceRemote {
		t.Fatalf("err = %v source = %s", n.Err(), n.Source())
	}
	assertNoLeaks(t, reg)
}

func TestRemoteNarrationStoppedMidPlay(t *testing.T) {
	reg := media.NewRegistry()
	player := newFakePlayer()
	m, _ := testMetrics(t)
	remote := NewRemoteStrategy(okRemote{}, player, reg, time.Second).WithDecoder(pcmDecoder)

	n := New([]Strategy{remote}, WithMetrics(m)).Speak(context.Background(), "Once upon a time")
	playing := <-player.started
	n.Stop()
	waitDone(t, n)

	if !errors.Is(n.Err(), audio.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", n.Err())
	}
	if !errors.Is(playing.Err(), audio.ErrStopped) {
		t.Fatalf("remote playback not stopped: %v", playing.Err())
	}
	assertNoLeaks(t, reg)
}

func TestRemotePlaybackErrorFallsBackToLocal(t *testing.T) {
	reg := media.NewRegistry()
	player := newFakePlayer()
	local := newFakeStrategy(SourceLocal)
	m, reader := testMetrics(t)
	remote := NewRemoteStrategy(okRemote{}, player, reg, time.Second).WithDecoder(pcmDecoder)

	n := New([]Strategy{remote, local}, WithMetrics(m)).Speak(context.Background(), "Once upon a time")
	(<-player.started).Finish(audio.ErrPlayback)
	(<-local.started).Finish(nil)
	waitDone(t, n)

	if n.Err() != nil || n.Source() != SourceLocal {
		t.Fatalf("err = %v source = %s", n.Err(), n.Source())
	}
	if got := counterTotal(t, reader, "storyecho.narration.fallbacks"); got != 1 {
		t.Fatalf("fallbacks = %d, want 1", got)
	}
	assertNoLeaks(t, reg)
}

func TestRemoteDecodeFailureReleasesHandle(t *testing.T) {
	reg := media.NewRegistry()
	bad := func([]byte) (beep.StreamSeekCloser, beep.Format, error) {
		return nil, beep.Format{}, audio.ErrPlayback
	}
	remote := NewRemoteStrategy(okRemote{}, newFakePlayer(), reg, time.Second).WithDecoder(bad)

	if _, err := remote.Speak(context.Background(), "text"); !errors.Is(err, audio.ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
	assertNoLeaks(t, reg)
}
