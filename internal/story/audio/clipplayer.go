package audio

import (
	"context"
	"fmt"

	"storyecho/internal/domain/story"
)

// Resolver maps a playable handle to the bytes it was created from.
type Resolver interface {
	Open(url string) ([]byte, error)
}

// ClipPlayer plays user recordings through their playable handle, so a
// revoked handle can never be played.
type ClipPlayer struct {
	player   Player
	resolver Resolver
}

func NewClipPlayer(player Player, resolver Resolver) *ClipPlayer {
	return &ClipPlayer{player: player, resolver: resolver}
}

func (cp *ClipPlayer) PlayClip(ctx context.Context, rec story.Recording) (Handle, error) {
	if !rec.Playable() {
		return nil, fmt.Errorf("%w: cue %d has no captured clip", ErrPlayback, rec.CueIndex)
	}
	data, err := cp.resolver.Open(rec.Handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	clip := rec.Clip
	clip.Data = data

	s, format, err := NewClipStreamer(clip)
	if err != nil {
		return nil, err
	}
	return cp.player.Play(ctx, s, format)
}
