package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"storyecho/internal/domain/story"

	"github.com/faiface/beep/wav"
)

var clipFileRe = regexp.MustCompile(`^cue-(\d+)\.wav$`)

// ClipFileName is the file a cue's clip is exported to.
func ClipFileName(cue int) string {
	return fmt.Sprintf("cue-%d.wav", cue)
}

// SaveClip writes the clip as a WAV file.
func SaveClip(path string, c story.Clip) error {
	s, format, err := NewClipStreamer(c)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create clip file %s: %w", path, err)
	}
	defer f.Close()

	if err := wav.Encode(f, s, format); err != nil {
		return fmt.Errorf("failed to encode clip %s: %w", path, err)
	}
	return nil
}

// LoadClip reads a WAV file written by SaveClip (or any PCM WAV).
func LoadClip(path string) (story.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return story.Clip{}, fmt.Errorf("failed to open clip file %s: %w", path, err)
	}
	defer f.Close()

	s, format, err := wav.Decode(f)
	if err != nil {
		return story.Clip{}, fmt.Errorf("failed to decode clip %s: %w", path, err)
	}
	defer s.Close()

	return readClip(s, format), nil
}

// LoadClipDir loads every cue-<i>.wav in dir, keyed by cue index.
func LoadClipDir(dir string) (map[int]story.Clip, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read clip directory: %w", err)
	}
	clips := make(map[int]story.Clip)
	for _, e := range entries {
		m := clipFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		cue, _ := strconv.Atoi(m[1])
		c, err := LoadClip(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		clips[cue] = c
	}
	return clips, nil
}
