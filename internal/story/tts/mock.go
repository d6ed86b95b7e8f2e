package tts

import (
	"context"
	"strings"
	"time"

	"storyecho/internal/story/audio"

	"github.com/fatih/color"
)

// MockTTSEngine - stands in for a local voice by waiting roughly as long as
// reading the text aloud would take
type MockTTSEngine struct {
	speed   float64
	perWord time.Duration
	quiet   bool
}

var (
	_ Local       = (*MockTTSEngine)(nil)
	_ VoiceLister = (*MockTTSEngine)(nil)
)

func NewMockTTSEngine(c Config) *MockTTSEngine {
	speed := c.Speed
	if speed <= 0 {
		speed = 1.0
	}
	// 150 words per minute at normal speed
	return &MockTTSEngine{speed: speed, perWord: time.Minute / 150}
}

// WithWordDuration overrides the simulated time per word and silences output.
func (m *MockTTSEngine) WithWordDuration(d time.Duration) *MockTTSEngine {
	m.perWord = d
	m.quiet = true
	return m
}

func (m *MockTTSEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	return []string{"mock-voice"}, nil
}

func (m *MockTTSEngine) Speak(ctx context.Context, text string) (audio.Handle, error) {
	words := len(strings.Fields(text))
	duration := time.Duration(float64(words) * float64(m.perWord) / m.speed)

	if !m.quiet {
		color.Yellow("🔊 Reading aloud... (simulated for %v)", duration.Round(time.Millisecond))
	}

	var timer *time.Timer
	tracker := audio.NewTracker(func() { timer.Stop() })
	timer = time.AfterFunc(duration, func() { tracker.Finish(nil) })

	audio.StopOnCancel(ctx, tracker)
	return tracker, nil
}
