// Package studio is the terminal front end: it picks a story, walks the user
// through recording each cue and plays the result back with the current
// segment highlighted.
package studio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"storyecho/internal/config"
	"storyecho/internal/domain/library/generator"
	"storyecho/internal/domain/story"
	"storyecho/internal/media"
	"storyecho/internal/observe"
	"storyecho/internal/story/audio"
	"storyecho/internal/story/narration"
	"storyecho/internal/story/playback"
	"storyecho/internal/story/recording"
	"storyecho/internal/story/tts"

	"github.com/sirupsen/logrus"
)

// Studio holds what outlives a single story session.
type Studio struct {
	cfg     config.Config
	themes  generator.Chain
	store   *generator.FileStore
	catalog *generator.Catalog
	player  audio.Player
	metrics *observe.Metrics

	input     io.Reader
	linesOnce sync.Once
	lines     chan string

	ctx    context.Context
	Cancel context.CancelFunc

	mu      sync.Mutex
	current *session
}

// New builds a studio reading answers from in. A nil metrics records on the
// global MeterProvider.
func New(cfg config.Config, in io.Reader, metrics *observe.Metrics) *Studio {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	store := generator.NewFileStore(cfg.Library.Path)
	themes := generator.Chain{store, generator.NewBuiltin()}

	var catalog *generator.Catalog
	if cfg.Library.URL != "" {
		catalog = generator.NewCatalog(cfg.Library.URL, filepath.Join(config.DataDir(), "catalog"), cfg.Library.MaxAge)
		themes = append(themes, catalog)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Studio{
		cfg:     cfg,
		themes:  themes,
		store:   store,
		catalog: catalog,
		player:  audio.NewSpeakerPlayer(cfg.Audio.SampleRate, cfg.Audio.Buffer),
		metrics: metrics,
		input:   in,
		ctx:     ctx,
		Cancel:  cancel,
	}
}

// Stop cancels whatever the studio is doing; playback stops at its next
// suspension point and every resource of the session is released.
func (s *Studio) Stop() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.orchestrator.Cancel()
	}
	s.Cancel()
}

// inputLines starts the scanner on first use and returns the channel it
// feeds. A line stays with the scanner until someone receives it.
func (s *Studio) inputLines() <-chan string {
	s.linesOnce.Do(func() {
		s.lines = make(chan string)
		go func() {
			defer close(s.lines)
			scanner := bufio.NewScanner(s.input)
			for scanner.Scan() {
				select {
				case s.lines <- scanner.Text():
				case <-s.ctx.Done():
					return
				}
			}
		}()
	})
	return s.lines
}

// readLine returns the next line of input. ok is false once the studio has
// been stopped or the input is exhausted.
func (s *Studio) readLine() (string, bool) {
	select {
	case line, ok := <-s.inputLines():
		return line, ok
	case <-s.ctx.Done():
		return "", false
	}
}

// session is everything owned by one story: its registry, recorder and
// playback. Close tears it all down.
type session struct {
	story        *story.Story
	registry     *media.Registry
	recorder     *recording.Recorder
	orchestrator *playback.Orchestrator
	closers      []io.Closer
}

func (s *Studio) newSession(st *story.Story, progress func(story.SegmentIndex)) *session {
	reg := media.NewRegistry()
	ss := &session{story: st, registry: reg}

	mic := media.NewFFMPEGMicrophone(media.CaptureConfig{
		Command:     s.cfg.Capture.Command,
		InputFormat: s.cfg.Capture.InputFormat,
		InputDevice: s.cfg.Capture.InputDevice,
		SampleRate:  s.cfg.Capture.SampleRate,
		Channels:    s.cfg.Capture.Channels,
	})
	ss.recorder = recording.NewRecorder(mic, reg, recording.WithMetrics(s.metrics))

	synth := narration.New(ss.strategies(s), narration.WithMetrics(s.metrics))
	narrator := playback.NarratorFunc(func(ctx context.Context, text string) audio.Handle {
		return synth.Speak(ctx, text)
	})
	ss.orchestrator = playback.New(narrator, audio.NewClipPlayer(s.player, reg),
		playback.WithPauses(s.cfg.Playback.CuePause, s.cfg.Playback.SegmentPause),
		playback.WithProgress(progress),
		playback.WithMetrics(s.metrics),
	)

	s.mu.Lock()
	s.current = ss
	s.mu.Unlock()
	return ss
}

func (ss *session) strategies(s *Studio) []narration.Strategy {
	var out []narration.Strategy

	remote, err := tts.NewRemote(s.ctx, s.remoteConfig(), s.localConfig())
	if err != nil {
		logrus.WithError(err).Warn("Remote narration unavailable")
	} else if remote != nil {
		if c, ok := remote.(io.Closer); ok {
			ss.closers = append(ss.closers, c)
		}
		out = append(out, narration.NewRemoteStrategy(remote, s.player, ss.registry, s.cfg.Remote.Timeout))
	}

	local, err := tts.NewLocal(s.localConfig())
	if err != nil {
		logrus.WithError(err).Warn("Local narration unavailable")
	} else if local != nil {
		out = append(out, narration.NewLocalStrategy(local))
	}

	if len(out) == 0 {
		logrus.Warn("No narration voice available, segments will play silently")
	}
	return out
}

func (s *Studio) remoteConfig() tts.RemoteConfig {
	r := s.cfg.Remote
	return tts.RemoteConfig{
		Type:      r.Type,
		Voice:     r.Voice,
		Language:  r.Language,
		Endpoint:  r.Endpoint,
		APIKey:    r.APIKey,
		CachePath: r.CachePath,
	}
}

func (s *Studio) localConfig() tts.Config {
	l := s.cfg.Local
	return tts.Config{Type: l.Type, Voice: l.Voice, Speed: l.Speed, Volume: l.Volume}
}

func (s *Studio) closeSession(ss *session) {
	ss.orchestrator.Cancel()
	_, _ = ss.orchestrator.Wait(context.Background())
	if err := ss.recorder.Close(); err != nil {
		logrus.WithError(err).Debug("Recorder closed with error")
	}
	for _, c := range ss.closers {
		_ = c.Close()
	}
	if err := ss.registry.Close(); err != nil {
		logrus.WithError(err).Debug("Registry closed with error")
	}
	if streams, handles := ss.registry.Outstanding(); streams+handles > 0 {
		logrus.WithFields(logrus.Fields{"streams": streams, "handles": handles}).Warn("Session leaked resources")
	}

	s.mu.Lock()
	if s.current == ss {
		s.current = nil
	}
	s.mu.Unlock()
}

// importClips loads cue-<i>.wav files from dir into the session.
func (ss *session) importClips(dir string) (int, error) {
	clips, err := audio.LoadClipDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for cue, clip := range clips {
		if _, ok := ss.story.Cue(cue); !ok {
			logrus.WithField("cue", cue).Warn("Ignoring clip for a cue the story does not have")
			continue
		}
		if _, err := ss.recorder.Import(cue, clip); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// saveClips writes every held clip to dir.
func (ss *session) saveClips(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create clip dir: %w", err)
	}
	n := 0
	for cue, rec := range ss.recorder.Recordings() {
		if err := audio.SaveClip(filepath.Join(dir, audio.ClipFileName(cue)), rec.Clip); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
