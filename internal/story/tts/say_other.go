//go:build !darwin

package tts

import "fmt"

func newSayEngine(config Config) (Local, error) {
	return nil, fmt.Errorf("%w: say engine only supports macOS", ErrUnavailable)
}
