package story

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStory is returned by Validate for stories the engine cannot play.
var ErrInvalidStory = errors.New("invalid story")

// Story is the immutable narrative a session plays. A cue at index i belongs
// to Segments[i].
type Story struct {
	Title     string   `json:"title" yaml:"title"`
	Segments  []string `json:"segments" yaml:"segments"`
	SoundCues []string `json:"sound_cues" yaml:"sound_cues"`
	Ending    string   `json:"ending" yaml:"ending"`
}

// Validate checks the structural invariants of a story.
func (s *Story) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil story", ErrInvalidStory)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidStory)
	}
	if len(s.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidStory)
	}
	for i, seg := range s.Segments {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%w: segment %d is blank", ErrInvalidStory, i)
		}
	}
	if len(s.SoundCues) > len(s.Segments) {
		return fmt.Errorf("%w: %d sound cues for %d segments", ErrInvalidStory, len(s.SoundCues), len(s.Segments))
	}
	return nil
}

// Cue returns the cue prompt for segment i, if any.
func (s *Story) Cue(i int) (string, bool) {
	if i < 0 || i >= len(s.SoundCues) {
		return "", false
	}
	return s.SoundCues[i], true
}

// SegmentIndex identifies the segment currently being played. None means no
// segment is active.
type SegmentIndex int

// None is reported when playback is not on any segment.
const None SegmentIndex = -1

func (i SegmentIndex) String() string {
	if i == None {
		return "none"
	}
	return fmt.Sprintf("%d", int(i))
}
