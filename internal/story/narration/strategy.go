package narration

import (
	"context"
	"fmt"
	"time"

	"storyecho/internal/story/audio"
	"storyecho/internal/story/tts"

	"github.com/faiface/beep"
)

// SourceKind names where narration audio came from.
type SourceKind string

const (
	SourceRemote SourceKind = "remote"
	SourceLocal  SourceKind = "local"
	SourceNone   SourceKind = "none"
)

// Strategy is one way of turning text into a playing sound. A returned error
// means nothing is playing; a handle may still fail later through Err.
type Strategy interface {
	Kind() SourceKind
	Speak(ctx context.Context, text string) (audio.Handle, error)
}

// HandleStore registers synthesized audio as a playable handle for as long
// as it plays.
type HandleStore interface {
	CreateHandle(data []byte) (string, error)
	Open(url string) ([]byte, error)
	Revoke(url string)
}

// RemoteStrategy synthesizes over the network and plays the result through
// the speaker. The request is bounded by timeout.
type RemoteStrategy struct {
	remote  tts.Remote
	player  audio.Player
	store   HandleStore
	timeout time.Duration
	decode  Decoder
}

// Decoder turns synthesized audio into a playable stream.
type Decoder func(data []byte) (beep.StreamSeekCloser, beep.Format, error)

var _ Strategy = (*RemoteStrategy)(nil)

func NewRemoteStrategy(remote tts.Remote, player audio.Player, store HandleStore, timeout time.Duration) *RemoteStrategy {
	return &RemoteStrategy{remote: remote, player: player, store: store, timeout: timeout, decode: audio.DecodeMP3}
}

// WithDecoder replaces the MP3 decoder, for endpoints returning another
// encoding.
func (r *RemoteStrategy) WithDecoder(d Decoder) *RemoteStrategy {
	r.decode = d
	return r
}

func (r *RemoteStrategy) Kind() SourceKind { return SourceRemote }

func (r *RemoteStrategy) Speak(ctx context.Context, text string) (audio.Handle, error) {
	rctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	data, err := r.remote.Synthesize(rctx, text)
	if err != nil {
		return nil, err
	}

	url, err := r.store.CreateHandle(data)
	if err != nil {
		return nil, fmt.Errorf("failed to register narration audio: %w", err)
	}
	release := func() { r.store.Revoke(url) }

	playable, err := r.store.Open(url)
	if err != nil {
		release()
		return nil, err
	}
	s, format, err := r.decode(playable)
	if err != nil {
		release()
		return nil, err
	}
	h, err := r.player.Play(ctx, s, format)
	if err != nil {
		release()
		return nil, err
	}
	return audio.WithRelease(h, release), nil
}

// LocalStrategy speaks with the on-device synthesizer.
type LocalStrategy struct {
	local tts.Local
}

var _ Strategy = (*LocalStrategy)(nil)

func NewLocalStrategy(local tts.Local) *LocalStrategy {
	return &LocalStrategy{local: local}
}

func (l *LocalStrategy) Kind() SourceKind { return SourceLocal }

func (l *LocalStrategy) Speak(ctx context.Context, text string) (audio.Handle, error) {
	return l.local.Speak(ctx, text)
}
