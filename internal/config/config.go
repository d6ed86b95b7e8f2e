// Package config registers viper defaults for storyecho and reads them back
// as a typed snapshot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Remote   RemoteTTS
	Local    LocalTTS
	Audio    Audio
	Capture  Capture
	Playback Playback
	Library  Library
	Metrics  Metrics
	LogLevel string
}

type RemoteTTS struct {
	Type      string
	Voice     string
	Language  string
	Endpoint  string
	APIKey    string
	Timeout   time.Duration
	CachePath string
}

type LocalTTS struct {
	Type   string
	Voice  string
	Speed  float64
	Volume float64
}

type Audio struct {
	SampleRate int
	Buffer     time.Duration
}

type Capture struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

type Playback struct {
	CuePause     time.Duration
	SegmentPause time.Duration
}

type Library struct {
	Path   string
	URL    string
	MaxAge time.Duration
}

// Metrics controls the Prometheus scrape endpoint.
type Metrics struct {
	Enabled bool
	Listen  string
}

func SetDefaults() {
	viper.SetDefault("tts.remote.type", "auto")
	viper.SetDefault("tts.remote.voice", "default")
	viper.SetDefault("tts.remote.language", "")
	viper.SetDefault("tts.remote.endpoint", "")
	viper.SetDefault("tts.remote.api_key", "")
	viper.SetDefault("tts.remote.timeout", 8*time.Second)
	viper.SetDefault("tts.remote.cache_path", filepath.Join(dataDir(), "tts"))

	viper.SetDefault("tts.local.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.local.voice", "default")
	viper.SetDefault("tts.local.speed", 1.0)
	viper.SetDefault("tts.local.volume", 0.8)

	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer", 100*time.Millisecond)

	viper.SetDefault("capture.command", "ffmpeg")
	viper.SetDefault("capture.input_format", defaultInputFormat())
	viper.SetDefault("capture.input_device", "")
	viper.SetDefault("capture.sample_rate", 16000)
	viper.SetDefault("capture.channels", 1)

	viper.SetDefault("playback.cue_pause", time.Second)
	viper.SetDefault("playback.segment_pause", 500*time.Millisecond)

	viper.SetDefault("library.path", filepath.Join(dataDir(), "stories"))
	viper.SetDefault("library.url", "")
	viper.SetDefault("library.max_age", 24*time.Hour)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", ":9464")

	viper.SetDefault("log.level", "info")
}

// Init reads storyecho.yaml from $HOME/.storyecho or the working directory
// and binds STORYECHO_* environment variables. A missing file is fine.
func Init() error {
	viper.SetConfigName("storyecho")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.storyecho")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("storyecho")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	logrus.WithField("file", viper.ConfigFileUsed()).Debug("Loaded config file")
	return nil
}

// Load returns the current settings.
func Load() Config {
	return Config{
		Remote: RemoteTTS{
			Type:      viper.GetString("tts.remote.type"),
			Voice:     viper.GetString("tts.remote.voice"),
			Language:  viper.GetString("tts.remote.language"),
			Endpoint:  viper.GetString("tts.remote.endpoint"),
			APIKey:    viper.GetString("tts.remote.api_key"),
			Timeout:   viper.GetDuration("tts.remote.timeout"),
			CachePath: viper.GetString("tts.remote.cache_path"),
		},
		Local: LocalTTS{
			Type:   viper.GetString("tts.local.type"),
			Voice:  viper.GetString("tts.local.voice"),
			Speed:  viper.GetFloat64("tts.local.speed"),
			Volume: viper.GetFloat64("tts.local.volume"),
		},
		Audio: Audio{
			SampleRate: viper.GetInt("audio.sample_rate"),
			Buffer:     viper.GetDuration("audio.buffer"),
		},
		Capture: Capture{
			Command:     viper.GetString("capture.command"),
			InputFormat: viper.GetString("capture.input_format"),
			InputDevice: viper.GetString("capture.input_device"),
			SampleRate:  viper.GetInt("capture.sample_rate"),
			Channels:    viper.GetInt("capture.channels"),
		},
		Playback: Playback{
			CuePause:     viper.GetDuration("playback.cue_pause"),
			SegmentPause: viper.GetDuration("playback.segment_pause"),
		},
		Library: Library{
			Path:   viper.GetString("library.path"),
			URL:    viper.GetString("library.url"),
			MaxAge: viper.GetDuration("library.max_age"),
		},
		Metrics: Metrics{
			Enabled: viper.GetBool("metrics.enabled"),
			Listen:  viper.GetString("metrics.listen"),
		},
		LogLevel: viper.GetString("log.level"),
	}
}

// ApplyLogLevel sets the logrus level, keeping the current one if level is
// not recognised.
func ApplyLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level")
		return
	}
	logrus.SetLevel(lvl)
}

// DataDir is where storyecho keeps caches and saved stories.
func DataDir() string { return dataDir() }

func dataDir() string {
	// Try to use user's cache directory
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "storyecho")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".storyecho", "cache")
	}
	return "cache"
}

func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}
