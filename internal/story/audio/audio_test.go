package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"storyecho/internal/domain/story"

	"github.com/faiface/beep"
)

func TestTrackerFirstOutcomeWins(t *testing.T) {
	stopped := 0
	tr := NewTracker(func() { stopped++ })
	tr.Stop()
	tr.Finish(nil)

	<-tr.Done()
	if !errors.Is(tr.Err(), ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", tr.Err())
	}
	if stopped != 1 {
		t.Fatalf("stop calls = %d, want 1", stopped)
	}
}

func TestTrackerErrBeforeDone(t *testing.T) {
	tr := NewTracker(nil)
	if tr.Err() != nil {
		t.Fatal("err must be nil while playing")
	}
	tr.Finish(ErrPlayback)
	if !errors.Is(tr.Err(), ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", tr.Err())
	}
}

func TestWaitStopsOnCancel(t *testing.T) {
	tr := NewTracker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := Wait(ctx, tr); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !errors.Is(tr.Err(), ErrStopped) {
		t.Fatalf("handle err = %v, want ErrStopped", tr.Err())
	}
}

func TestWaitReturnsHandleOutcome(t *testing.T) {
	if err := Wait(context.Background(), Failed(ErrPlayback)); !errors.Is(err, ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
}

func testClip() story.Clip {
	data := make([]byte, 0, 400)
	for i := 0; i < 200; i++ {
		v := int16(i * 100)
		data = append(data, byte(v), byte(v>>8))
	}
	return story.Clip{Data: data, SampleRate: 8000, Channels: 1, Precision: 2}
}

func TestClipStreamer(t *testing.T) {
	s, format, err := NewClipStreamer(testClip())
	if err != nil {
		t.Fatalf("streamer: %v", err)
	}
	if format.SampleRate != 8000 || format.NumChannels != 1 {
		t.Fatalf("format = %+v", format)
	}
	if s.Len() != 200 {
		t.Fatalf("len = %d, want 200", s.Len())
	}
	buf := make([][2]float64, 150)
	n, ok := s.Stream(buf)
	if n != 150 || !ok {
		t.Fatalf("first read n=%d ok=%v", n, ok)
	}
	if buf[1][0] != buf[1][1] {
		t.Fatal("mono samples should be duplicated to both channels")
	}
	n, ok = s.Stream(buf)
	if n != 50 || !ok {
		t.Fatalf("second read n=%d ok=%v", n, ok)
	}
	if _, ok = s.Stream(buf); ok {
		t.Fatal("drained stream must report !ok")
	}
	if err := s.Seek(0); err != nil || s.Position() != 0 {
		t.Fatalf("seek: %v pos=%d", err, s.Position())
	}
}

func TestClipStreamerRejectsBadFormat(t *testing.T) {
	if _, _, err := NewClipStreamer(story.Clip{Data: []byte{1, 2}, SampleRate: 0, Channels: 1, Precision: 2}); !errors.Is(err, ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
	if _, _, err := NewClipStreamer(story.Clip{SampleRate: 8000, Channels: 1, Precision: 2}); !errors.Is(err, ErrPlayback) {
		t.Fatalf("empty clip err = %v, want ErrPlayback", err)
	}
}

func TestSaveAndLoadClip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ClipFileName(2))
	if err := SaveClip(path, testClip()); err != nil {
		t.Fatalf("save: %v", err)
	}
	clips, err := LoadClipDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	c, ok := clips[2]
	if !ok {
		t.Fatalf("clips = %v, want cue 2", clips)
	}
	if c.SampleRate != 8000 || c.Channels != 1 || c.Precision != 2 {
		t.Fatalf("format = %+v", c)
	}
	if len(c.Data) != len(testClip().Data) {
		t.Fatalf("data len = %d, want %d", len(c.Data), len(testClip().Data))
	}
}

func TestDecodeMP3Empty(t *testing.T) {
	if _, _, err := DecodeMP3(nil); !errors.Is(err, ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
}

type memResolver map[string][]byte

func (m memResolver) Open(url string) ([]byte, error) {
	d, ok := m[url]
	if !ok {
		return nil, errors.New("gone")
	}
	return d, nil
}

type instantPlayer struct{ played int }

func (p *instantPlayer) Play(ctx context.Context, s beep.StreamSeekCloser, format beep.Format) (Handle, error) {
	p.played++
	s.Close()
	return Failed(nil), nil
}

func TestClipPlayerResolvesHandle(t *testing.T) {
	p := &instantPlayer{}
	clip := testClip()
	cp := NewClipPlayer(p, memResolver{"blob:a": clip.Data})

	rec := story.Recording{CueIndex: 0, Clip: story.Clip{SampleRate: 8000, Channels: 1, Precision: 2}, Handle: "blob:a", Status: story.RecordingCaptured}
	h, err := cp.PlayClip(context.Background(), rec)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := Wait(context.Background(), h); err != nil {
		t.Fatalf("wait: %v", err)
	}

	rec.Handle = "blob:revoked"
	if _, err := cp.PlayClip(context.Background(), rec); !errors.Is(err, ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
	if p.played != 1 {
		t.Fatalf("played = %d, want 1", p.played)
	}
}

func TestWithReleaseRunsBeforeDone(t *testing.T) {
	inner := NewTracker(nil)
	released := make(chan struct{})
	h := WithRelease(inner, func() { close(released) })

	inner.Finish(nil)
	<-h.Done()
	select {
	case <-released:
	default:
		t.Fatal("release must run before Done closes")
	}
	if h.Err() != nil {
		t.Fatalf("err = %v", h.Err())
	}
}

func TestStopOnCancel(t *testing.T) {
	tr := NewTracker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	StopOnCancel(ctx, tr)
	cancel()

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("handle not stopped on cancel")
	}
	if !errors.Is(tr.Err(), ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", tr.Err())
	}
}

func TestStopOnCancelLeavesFinishedHandle(t *testing.T) {
	tr := NewTracker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StopOnCancel(ctx, tr)
	tr.Finish(nil)
	cancel()

	<-tr.Done()
	if tr.Err() != nil {
		t.Fatalf("err = %v, want nil", tr.Err())
	}
}
