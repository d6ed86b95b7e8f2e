//go:build !windows

package tts

import "fmt"

func newSAPIEngine(config Config) (Local, error) {
	return nil, fmt.Errorf("%w: SAPI engine only supports Windows", ErrUnavailable)
}
