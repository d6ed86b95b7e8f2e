//go:build windows

package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"storyecho/internal/story/audio"
)

// SAPIEngine implements Windows SAPI TTS through System.Speech in PowerShell
type SAPIEngine struct {
	config Config
	path   string
}

func newSAPIEngine(config Config) (Local, error) {
	path, err := exec.LookPath("powershell")
	if err != nil {
		return nil, fmt.Errorf("%w: powershell: %v", ErrUnavailable, err)
	}
	return &SAPIEngine{config: config, path: path}, nil
}

func (s *SAPIEngine) Speak(ctx context.Context, text string) (audio.Handle, error) {
	speed := s.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	volume := s.config.Volume
	if volume <= 0 {
		volume = 1.0
	}

	// Single quotes are doubled to survive the PowerShell string literal
	quoted := strings.ReplaceAll(text, "'", "''")
	script := fmt.Sprintf(`Add-Type -AssemblyName System.Speech;
$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
$synth.Rate = %d;
$synth.Volume = %d;
$synth.Speak('%s')`,
		int(speed*10)-10, // SAPI range -10 to 10
		int(volume*100),  // SAPI range 0 to 100
		quoted)

	return speakProcess(ctx, "sapi", s.path, []string{"-NoProfile", "-Command", script})
}

func (s *SAPIEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	script := `Add-Type -AssemblyName System.Speech;
(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | ForEach-Object { $_.VoiceInfo.Name }`
	output, err := exec.CommandContext(ctx, s.path, "-NoProfile", "-Command", script).Output()
	if err != nil {
		return nil, err
	}
	var voices []string
	for _, line := range strings.Split(string(output), "\n") {
		if v := strings.TrimSpace(line); v != "" {
			voices = append(voices, v)
		}
	}
	return voices, nil
}
