// internal/story/tts/tts.go
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"storyecho/internal/story/audio"
)

var (
	// ErrSynthesis wraps every remote synthesis failure.
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrUnavailable is returned when an engine cannot run on this host.
	ErrUnavailable = errors.New("speech engine unavailable")
)

// StatusError is a non-success response from a synthesis endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("synthesis endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("synthesis endpoint returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrSynthesis }

// IsRateLimited reports a 429 response.
func (e *StatusError) IsRateLimited() bool { return e.Code == http.StatusTooManyRequests }

type Config struct {
	Type   string
	Speed  float64
	Volume float64
	Voice  string
}

// RemoteConfig configures a network synthesizer.
type RemoteConfig struct {
	Type      string
	Voice     string
	Language  string
	Endpoint  string
	APIKey    string
	CachePath string
}

// Remote turns text into encoded (MP3) audio over the network.
type Remote interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Local speaks text on the device. The returned handle is done when the
// utterance ends, fails or is stopped.
type Local interface {
	Speak(ctx context.Context, text string) (audio.Handle, error)
}

// VoiceLister is implemented by engines that can enumerate voices.
type VoiceLister interface {
	GetAvailableVoices(ctx context.Context) ([]string, error)
}

// CacheableEngine extends Remote with cache management capabilities
type CacheableEngine interface {
	Remote
	GetCacheStats() (map[string]interface{}, error)
	ClearCache() error
}
