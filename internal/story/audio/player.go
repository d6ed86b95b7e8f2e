package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"
)

// Player starts playing a decoded stream. The player owns s from then on and
// closes it when the returned handle is done.
type Player interface {
	Play(ctx context.Context, s beep.StreamSeekCloser, format beep.Format) (Handle, error)
}

// SpeakerPlayer plays through the system speaker. The speaker runs at one
// sample rate; streams in other rates are resampled.
type SpeakerPlayer struct {
	rate   beep.SampleRate
	buffer time.Duration

	initOnce sync.Once
	initErr  error
}

var _ Player = (*SpeakerPlayer)(nil)

func NewSpeakerPlayer(sampleRate int, buffer time.Duration) *SpeakerPlayer {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if buffer <= 0 {
		buffer = time.Second / 10
	}
	return &SpeakerPlayer{rate: beep.SampleRate(sampleRate), buffer: buffer}
}

func (p *SpeakerPlayer) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(p.buffer))
	})
	return p.initErr
}

func (p *SpeakerPlayer) Play(ctx context.Context, s beep.StreamSeekCloser, format beep.Format) (Handle, error) {
	if err := p.init(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: speaker init: %v", ErrPlayback, err)
	}

	var src beep.Streamer = s
	if format.SampleRate != p.rate {
		src = beep.Resample(4, format.SampleRate, p.rate, s)
	}
	ctrl := &beep.Ctrl{Streamer: src, Paused: false}

	detach := func() {
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
	}
	tracker := NewTracker(detach)

	StopOnCancel(ctx, tracker)

	// The stream is only closed once the speaker no longer reads from it.
	go func() {
		<-tracker.Done()
		detach()
		s.Close()
	}()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		if err := s.Err(); err != nil {
			logrus.WithError(err).Warn("audio stream failed")
			tracker.Finish(fmt.Errorf("%w: %v", ErrPlayback, err))
			return
		}
		tracker.Finish(nil)
	})))

	return tracker, nil
}
