//go:build darwin

package tts

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"storyecho/internal/story/audio"
)

// SayEngine speaks through the macOS built-in 'say' command
type SayEngine struct {
	config Config
	path   string
}

func newSayEngine(config Config) (Local, error) {
	path, err := exec.LookPath("say")
	if err != nil {
		return nil, fmt.Errorf("%w: say: %v", ErrUnavailable, err)
	}
	return &SayEngine{config: config, path: path}, nil
}

func (s *SayEngine) Speak(ctx context.Context, text string) (audio.Handle, error) {
	args := []string{}

	if s.config.Voice != "" && s.config.Voice != "default" {
		args = append(args, "-v", s.config.Voice)
	}

	// Rate in words per minute, default is ~175
	speed := s.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	args = append(args, "-r", fmt.Sprintf("%.0f", 175*speed), "--", text)

	return speakProcess(ctx, "say", s.path, args)
}

// GetAvailableVoices parses `say -v ?`: "VoiceName    language    # description"
func (s *SayEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	output, err := exec.CommandContext(ctx, s.path, "-v", "?").Output()
	if err != nil {
		return nil, err
	}

	var voices []string
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			voices = append(voices, fields[0])
		}
	}
	return voices, nil
}
