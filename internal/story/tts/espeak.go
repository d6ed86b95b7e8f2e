// Cross-platform eSpeak implementation
package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"storyecho/internal/story/audio"
)

// ESpeakEngine implements local TTS using eSpeak/eSpeak-NG
type ESpeakEngine struct {
	config Config
	path   string
}

var (
	_ Local       = (*ESpeakEngine)(nil)
	_ VoiceLister = (*ESpeakEngine)(nil)
)

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	engine := &ESpeakEngine{
		config: config,
		path:   espeakPath,
	}

	// Test the installation
	if err := exec.Command(espeakPath, "--version").Run(); err != nil {
		return nil, fmt.Errorf("%w: eSpeak test failed: %v", ErrUnavailable, err)
	}

	return engine, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakEngine) args(text string) []string {
	args := []string{}

	if e.config.Voice != "" && e.config.Voice != "default" {
		args = append(args, "-v", e.config.Voice)
	}

	// Speed in words per minute, default is 175
	speed := e.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	args = append(args, "-s", strconv.Itoa(int(175*speed)))

	// Volume 0-200, default is 100
	volume := e.config.Volume
	if volume <= 0 {
		volume = 1.0
	}
	args = append(args, "-a", strconv.Itoa(int(100*volume)))

	// End of options so text starting with '-' is spoken
	return append(args, "--", text)
}

func (e *ESpeakEngine) Speak(ctx context.Context, text string) (audio.Handle, error) {
	return speakProcess(ctx, "espeak", e.path, e.args(text))
}

func (e *ESpeakEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}

	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName          File          Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
