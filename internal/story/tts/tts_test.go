package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storyecho/internal/story/audio"
)

func TestHTTPSynthesizerSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		var req httpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Text != "hello" || req.Voice != "owl" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	h, err := NewHTTPSynthesizer(srv.URL, "key", "owl")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data, err := h.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("data = %q", data)
	}
}

func TestHTTPSynthesizerRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h, _ := NewHTTPSynthesizer(srv.URL, "", "")
	_, err := h.Synthesize(context.Background(), "hello")
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || !se.IsRateLimited() {
		t.Fatalf("err = %v, want rate-limited StatusError", err)
	}
	if !strings.Contains(se.Error(), "slow down") {
		t.Fatalf("message = %q", se.Error())
	}
}

func TestHTTPSynthesizerHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	h, _ := NewHTTPSynthesizer(srv.URL, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Synthesize(ctx, "hello"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
}

func TestNewHTTPSynthesizerRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPSynthesizer("", "", ""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

type countingRemote struct {
	calls int32
	err   error
}

func (c *countingRemote) Synthesize(ctx context.Context, text string) ([]byte, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return []byte("audio:" + text), nil
}

func TestCachedSynthesizer(t *testing.T) {
	next := &countingRemote{}
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := NewCachedSynthesizer(next, "voice", dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for i := 0; i < 2; i++ {
		data, err := c.Synthesize(context.Background(), "once upon a time")
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if string(data) != "audio:once upon a time" {
			t.Fatalf("data = %q", data)
		}
	}
	if got := atomic.LoadInt32(&next.calls); got != 1 {
		t.Fatalf("remote calls = %d, want 1", got)
	}

	stats, err := c.GetCacheStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["cached_files"].(int64) != 1 {
		t.Fatalf("cached_files = %v", stats["cached_files"])
	}

	if err := c.ClearCache(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("entries after clear = %d", len(entries))
	}
}

func TestCachedSynthesizerDoesNotCacheFailures(t *testing.T) {
	next := &countingRemote{err: &StatusError{Code: 500}}
	c, _ := NewCachedSynthesizer(next, "voice", t.TempDir())
	for i := 0; i < 2; i++ {
		if _, err := c.Synthesize(context.Background(), "x"); !errors.Is(err, ErrSynthesis) {
			t.Fatalf("err = %v, want ErrSynthesis", err)
		}
	}
	if got := atomic.LoadInt32(&next.calls); got != 2 {
		t.Fatalf("remote calls = %d, want 2", got)
	}
}

func TestSplitIntoChunks(t *testing.T) {
	chunks := splitIntoChunks(strings.Repeat("é", 10), 4)
	if len(chunks) != 3 || chunks[2] != "éé" {
		t.Fatalf("chunks = %q", chunks)
	}
}

func TestLanguageOf(t *testing.T) {
	if got := languageOf("en-GB-Chirp3-HD-Umbriel"); got != "en-GB" {
		t.Fatalf("languageOf = %q", got)
	}
	if got := languageOf("x"); got != "en-US" {
		t.Fatalf("languageOf = %q", got)
	}
}

func TestParseESpeakVoices(t *testing.T) {
	out := "Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
		" 5  af              --/M      Afrikaans          gmw/af\n" +
		" 5  en-gb           --/M      English_(Great_Britain) gmw/en\n"
	voices := parseESpeakVoices(out)
	if len(voices) != 2 || voices[0] != "Afrikaans" {
		t.Fatalf("voices = %v", voices)
	}
}

func TestMockEngineFinishes(t *testing.T) {
	m := NewMockTTSEngine(Config{Speed: 1}).WithWordDuration(time.Millisecond)
	h, err := m.Speak(context.Background(), "one two three")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if err := audio.Wait(context.Background(), h); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestMockEngineStop(t *testing.T) {
	m := NewMockTTSEngine(Config{Speed: 1}).WithWordDuration(time.Hour)
	h, _ := m.Speak(context.Background(), "long text")
	h.Stop()
	<-h.Done()
	if !errors.Is(h.Err(), audio.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", h.Err())
	}
}

func TestSpeakProcess(t *testing.T) {
	t.Parallel()

	h, err := speakProcess(context.Background(), "test", "bash", []string{"-c", "exit 0"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := audio.Wait(context.Background(), h); err != nil {
		t.Fatalf("wait: %v", err)
	}

	h, err = speakProcess(context.Background(), "test", "bash", []string{"-c", "exit 3"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := audio.Wait(context.Background(), h); !errors.Is(err, audio.ErrPlayback) {
		t.Fatalf("err = %v, want ErrPlayback", err)
	}
}

func TestSpeakProcessStop(t *testing.T) {
	t.Parallel()

	h, err := speakProcess(context.Background(), "test", "sleep", []string{"5"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.Stop()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not end the handle")
	}
	if !errors.Is(h.Err(), audio.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", h.Err())
	}
}

func TestSpeakProcessMissingBinary(t *testing.T) {
	if _, err := speakProcess(context.Background(), "test", "/nonexistent/speak", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestNewLocalNoneAndMock(t *testing.T) {
	l, err := NewLocal(Config{Type: "none"})
	if err != nil || l != nil {
		t.Fatalf("none = %v, %v", l, err)
	}
	l, err = NewLocal(Config{Type: "mock"})
	if err != nil || l == nil {
		t.Fatalf("mock = %v, %v", l, err)
	}
	if _, err := NewLocal(Config{Type: "bogus"}); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestNewRemoteSelection(t *testing.T) {
	r, err := NewRemote(context.Background(), RemoteConfig{Type: "none"}, Config{})
	if err != nil || r != nil {
		t.Fatalf("none = %v, %v", r, err)
	}
	r, err = NewRemote(context.Background(), RemoteConfig{Type: "auto", Endpoint: "http://localhost:1"}, Config{})
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if _, ok := r.(*HTTPSynthesizer); !ok {
		t.Fatalf("auto with endpoint = %T, want *HTTPSynthesizer", r)
	}
	r, err = NewRemote(context.Background(), RemoteConfig{Type: "http", Endpoint: "http://localhost:1", CachePath: t.TempDir()}, Config{})
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if _, ok := r.(*CachedSynthesizer); !ok {
		t.Fatalf("with cache path = %T, want *CachedSynthesizer", r)
	}
}
