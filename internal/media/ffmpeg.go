package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CaptureConfig selects the ffmpeg input device and PCM layout.
type CaptureConfig struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

// FFMPEGMicrophone streams microphone PCM audio (s16le) using ffmpeg.
type FFMPEGMicrophone struct {
	cfg CaptureConfig
}

var _ Microphone = (*FFMPEGMicrophone)(nil)

func NewFFMPEGMicrophone(cfg CaptureConfig) *FFMPEGMicrophone {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &FFMPEGMicrophone{cfg: cfg}
}

func (m *FFMPEGMicrophone) Format() Format {
	return Format{SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels, Precision: 2}
}

func (m *FFMPEGMicrophone) Open(ctx context.Context) (Stream, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", m.cfg.InputFormat,
		"-i", m.cfg.InputDevice,
		"-ac", strconv.Itoa(m.cfg.Channels),
		"-ar", strconv.Itoa(m.cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	// The stream outlives ctx; it only bounds the permission wait below.
	cmd := exec.Command(m.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// Our own pipe, so Wait never closes the read end while audio ffmpeg
	// flushed on exit is still buffered in it.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	pw.Close()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		pr.Close()
		return nil, classifyEarlyExit(err, stderr.String())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		pr.Close()
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegStream{
		stdout:  pr,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		drained: make(chan struct{}),
	}, nil
}

// classifyEarlyExit maps an ffmpeg that died before producing audio to an
// error. Device access refusals become ErrPermissionDenied.
func classifyEarlyExit(err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	for _, marker := range []string{"permission denied", "operation not permitted", "access denied", "not authorized"} {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, msg)
	}
	return errors.New("ffmpeg exited before capture started")
}

type ffmpegStream struct {
	stdout *os.File
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	// drained is closed once a Read has hit the end of the pipe.
	drained   chan struct{}
	drainOnce sync.Once

	stopOnce sync.Once
	stopErr  error
}

// drainGrace bounds how long Close waits for a reader to empty the pipe
// after ffmpeg has exited.
const drainGrace = 500 * time.Millisecond

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil {
		s.drainOnce.Do(func() { close(s.drained) })
	}
	return n, err
}

// Close interrupts ffmpeg, escalating to kill if it does not exit promptly.
// The read end stays open until the reader has taken everything ffmpeg
// wrote, so the tail of the capture is not lost.
func (s *ffmpegStream) Close() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		select {
		case <-s.drained:
		case <-time.After(drainGrace):
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
