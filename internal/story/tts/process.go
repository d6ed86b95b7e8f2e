package tts

import (
	"context"
	"fmt"
	"os/exec"

	"storyecho/internal/story/audio"

	"github.com/sirupsen/logrus"
)

// speakProcess runs a speech command and exposes it as a handle. Stopping
// the handle kills the process; its exit is then not reported as finished.
func speakProcess(ctx context.Context, engine, path string, args []string) (audio.Handle, error) {
	cmd := exec.Command(path, args...)
	tracker := audio.NewTracker(func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	})

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, engine, err)
	}

	go func() {
		err := cmd.Wait()
		if err != nil {
			logrus.WithError(err).WithField("engine", engine).Debug("speech process exited with error")
			tracker.Finish(fmt.Errorf("%w: %s: %v", audio.ErrPlayback, engine, err))
			return
		}
		tracker.Finish(nil)
	}()

	// The utterance is bound to ctx as well as to Stop
	audio.StopOnCancel(ctx, tracker)

	return tracker, nil
}
