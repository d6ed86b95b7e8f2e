package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyecho/internal/cli/scheme/colours"
	"storyecho/internal/domain/story"
	"storyecho/internal/media"
	"storyecho/internal/story/playback"
	"storyecho/internal/story/recording"
)

func (s *Studio) showStory(st *story.Story) {
	fmt.Println()
	colours.Title.Printf("📖 %s\n", st.Title)
	fmt.Printf("🧩 %d segments | 🎤 %d sound cues\n", len(st.Segments), len(st.SoundCues))
	fmt.Println()
}

// recordCues walks the user through every cue. It returns false if the
// studio was stopped part way.
func (s *Studio) recordCues(ss *session) bool {
	st := ss.story
	for i, cue := range st.SoundCues {
		fmt.Println()
		colours.Info.Printf("%d/%d  ", i+1, len(st.SoundCues))
		fmt.Println(st.Segments[i])
		colours.Cue.Printf("   🎤 %s\n", cue)

		if !s.recordCue(ss, i) {
			return false
		}
	}
	return true
}

func (s *Studio) recordCue(ss *session, cue int) bool {
	for {
		_, held := ss.recorder.Recording(cue)
		if held {
			colours.Prompt.Print("   ✅ Clip saved. Enter to keep, 'r' to re-record: ")
		} else {
			colours.Prompt.Print("   ⏺️  Press Enter to record, 's' to skip: ")
		}
		line, ok := s.readLine()
		if !ok {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "s", "skip":
			colours.Warning.Println("   ⏭️  Skipped, a short pause will play instead")
			return true
		case "r", "rerecord", "re-record":
		case "":
			if held {
				return true
			}
		default:
			colours.Info.Println("   ℹ️  Use Enter, 'r' or 's'")
			continue
		}

		if err := s.captureOnce(ss, cue); err != nil {
			switch {
			case errors.Is(err, media.ErrPermissionDenied):
				colours.Error.Println("   ❌ Microphone access was denied.")
				colours.Info.Println("   💡 Grant this terminal microphone permission and try again, or 's' to skip.")
			case errors.Is(err, recording.ErrConcurrentRecording):
				colours.Error.Println("   ❌ Another cue is still recording.")
			case errors.Is(err, context.Canceled):
				return false
			default:
				colours.Error.Printf("   ❌ Recording failed: %v\n", err)
			}
		}
	}
}

func (s *Studio) captureOnce(ss *session, cue int) error {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := ss.recorder.Begin(ctx, cue); err != nil {
		return err
	}

	colours.Warning.Print("   🔴 Recording... press Enter to stop ")
	_, ok := s.readLine()
	rec, err := ss.recorder.End(cue)
	if !ok {
		return context.Canceled
	}
	if err != nil {
		return err
	}
	if !rec.Playable() {
		colours.Warning.Println("   🤫 Nothing was captured")
		return nil
	}
	colours.Success.Printf("   🎙️  Captured %s\n", rec.Clip.Duration().Round(100*time.Millisecond))
	return nil
}

// highlighter prints each segment as playback reaches it.
func highlighter(st *story.Story) func(story.SegmentIndex) {
	return func(i story.SegmentIndex) {
		if i == story.None || int(i) >= len(st.Segments) {
			return
		}
		fmt.Println()
		colours.Highlight.Printf(" %d ", int(i)+1)
		fmt.Print(" ")
		fmt.Println(st.Segments[i])
		if cue, ok := st.Cue(int(i)); ok {
			colours.Dim.Printf("    🎤 %s\n", cue)
		}
	}
}

// play runs the session's story until it ends, the user types 's' or the
// studio is stopped.
func (s *Studio) play(ss *session) (playback.Outcome, error) {
	colours.Success.Println("🎵 Starting story playback... 🎵")
	fmt.Println("💡 Type 's' and Enter (or press Ctrl+C) to stop")

	if err := ss.orchestrator.Start(s.ctx, ss.story, ss.recorder.Recordings()); err != nil {
		return playback.OutcomeNone, err
	}

	done := make(chan playback.Outcome, 1)
	go func() {
		outcome, _ := ss.orchestrator.Wait(context.Background())
		done <- outcome
	}()

	lines := s.inputLines()
	for {
		select {
		case outcome := <-done:
			s.finishPlayback(ss.story, outcome)
			return outcome, nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "s", "stop":
				ss.orchestrator.Cancel()
			case "":
			default:
				colours.Info.Println("ℹ️  Type 's' to stop")
			}
		}
	}
}

func (s *Studio) finishPlayback(st *story.Story, outcome playback.Outcome) {
	fmt.Println()
	if outcome == playback.OutcomeCompleted {
		if st.Ending != "" {
			colours.Title.Println(st.Ending)
		}
		colours.Success.Println("✅ Story finished! 🌟")
		colours.Prompt.Println("😴 Sleep tight! 🌙")
		return
	}
	colours.Warning.Println("⏹️  Stopped")
}
