// Package media owns the acquisition and release of capture streams and
// URL-like playable handles. Every resource handed out by a Registry is
// released exactly once, either explicitly or when the Registry is closed.
package media

import (
	"context"
	"errors"
	"io"
)

// ErrPermissionDenied is returned when the platform refuses microphone access.
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrRegistryClosed is returned when acquiring from a torn-down registry.
var ErrRegistryClosed = errors.New("media registry closed")

// Stream is an open microphone stream yielding raw PCM bytes.
type Stream interface {
	io.ReadCloser
}

// Format describes the PCM layout produced by a microphone.
type Format struct {
	SampleRate int
	Channels   int
	Precision  int
}

// Microphone is platform media capture.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
	Format() Format
}
