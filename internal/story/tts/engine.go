package tts

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock   EngineType = "mock"
	EngineTypeESpeak EngineType = "espeak"
	EngineTypeSay    EngineType = "say"  // macOS only
	EngineTypeSAPI   EngineType = "sapi" // Windows only
	EngineTypeGoogle EngineType = "google"
	EngineTypeHTTP   EngineType = "http"
	EngineTypeNone   EngineType = "none"
	EngineTypeAuto   EngineType = "auto" // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// NewRemote creates the remote synthesizer described by cfg. It returns nil
// and no error when remote synthesis is disabled or unavailable under auto.
func NewRemote(ctx context.Context, cfg RemoteConfig, local Config) (Remote, error) {
	kind := EngineType(cfg.Type)
	if kind == EngineTypeAuto {
		kind = getBestRemote(cfg)
	}

	var (
		remote Remote
		err    error
	)
	switch kind {
	case EngineTypeNone:
		return nil, nil
	case EngineTypeGoogle:
		remote, err = newGoogleSynthesizer(ctx, cfg, local)
	case EngineTypeHTTP:
		remote, err = NewHTTPSynthesizer(cfg.Endpoint, cfg.APIKey, cfg.Voice)
	default:
		return nil, fmt.Errorf("unsupported remote TTS engine type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CachePath != "" {
		cached, err := NewCachedSynthesizer(remote, string(kind)+":"+cfg.Voice, cfg.CachePath)
		if err != nil {
			logrus.WithError(err).Warn("remote audio cache disabled")
			return remote, nil
		}
		return cached, nil
	}
	return remote, nil
}

// NewLocal creates the on-device synthesizer described by cfg. Under auto an
// unavailable platform engine yields nil, meaning narration without a remote
// voice is skipped.
func NewLocal(cfg Config) (Local, error) {
	auto := cfg.Type == EngineTypeAuto.String()
	if auto {
		cfg.Type = getBestEngineForPlatform().String()
	}

	var (
		local Local
		err   error
	)
	switch cfg.Type {
	case EngineTypeNone.String():
		return nil, nil
	case EngineTypeMock.String():
		return NewMockTTSEngine(cfg), nil
	case EngineTypeESpeak.String():
		local, err = newESpeakEngine(cfg)
	case EngineTypeSay.String():
		local, err = newSayEngine(cfg)
	case EngineTypeSAPI.String():
		local, err = newSAPIEngine(cfg)
	default:
		return nil, fmt.Errorf("unsupported local TTS engine type: %s", cfg.Type)
	}
	if err != nil {
		if auto {
			logrus.WithError(err).WithField("engine", cfg.Type).Warn("no local voice available")
			return nil, nil
		}
		return nil, err
	}
	return local, nil
}

func getBestRemote(cfg RemoteConfig) EngineType {
	if cfg.Endpoint != "" {
		return EngineTypeHTTP
	}
	if hasGoogleCredentials() {
		return EngineTypeGoogle
	}
	return EngineTypeNone
}

// getBestEngineForPlatform returns the recommended local engine for the current platform
func getBestEngineForPlatform() EngineType {
	switch runtime.GOOS {
	case "windows":
		return EngineTypeSAPI
	case "darwin":
		return EngineTypeSay
	default:
		return EngineTypeESpeak
	}
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines() []EngineType {
	engines := []EngineType{EngineTypeMock, EngineTypeESpeak, EngineTypeHTTP}

	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogle)
	}

	switch runtime.GOOS {
	case "windows":
		engines = append(engines, EngineTypeSAPI)
	case "darwin":
		engines = append(engines, EngineTypeSay)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
