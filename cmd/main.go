package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"storyecho/internal/cli/scheme/colours"
	"storyecho/internal/config"
	"storyecho/internal/observe"
	"storyecho/internal/story/studio"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	config.SetDefaults()

	// The signal handler reads app from its own goroutine.
	var app atomic.Pointer[studio.Studio]
	shutdownMetrics := func(context.Context) error { return nil }

	rootCmd := &cobra.Command{
		Use:   "storyecho",
		Short: "🎙️ Tell stories together, with your own sound effects",
		Long: `
┌─────────────────────────────────────┐
│  🎙️ Welcome to StoryEcho! 📚        │
│  Stories that need your voice       │
│  Record the sounds, hear the tale   │
└─────────────────────────────────────┘

StoryEcho reads a story aloud and plays the sounds you recorded for it
at just the right moments. Perfect for bedtime! 🌙
		`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			cfg := config.Load()
			config.ApplyLogLevel(cfg.LogLevel)
			metrics, shutdown, err := setupMetrics(cmd.Context(), cfg.Metrics)
			if err != nil {
				return err
			}
			shutdownMetrics = shutdown
			app.Store(studio.New(cfg, os.Stdin, metrics))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.Load().ShowWelcome()
		},
	}

	rootCmd.PersistentFlags().String("voice", "", "Voice for remote narration")
	rootCmd.PersistentFlags().String("remote", "", "Remote narration engine (auto, google, http, none)")
	rootCmd.PersistentFlags().String("local", "", "Local narration engine (auto, espeak, say, sapi, mock, none)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	bindFlag(rootCmd, "tts.remote.voice", "voice")
	bindFlag(rootCmd, "tts.remote.type", "remote")
	bindFlag(rootCmd, "tts.local.type", "local")
	bindFlag(rootCmd, "log.level", "log-level")

	themesCmd := &cobra.Command{
		Use:   "themes",
		Short: "📋 List story themes",
		Long:  "Display the built-in, saved and online story themes",
		Run:   func(cmd *cobra.Command, args []string) { app.Load().ListThemes(cmd, args) },
	}
	themesCmd.Flags().StringP("age", "a", "", "Filter by age group")

	readCmd := &cobra.Command{
		Use:   "read [theme-id]",
		Short: "📖 Record the sounds for a story and hear it told",
		Long:  "Pick a theme (or a story file), record a clip for each sound cue, then listen",
		Args:  cobra.MaximumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return app.Load().ReadStory(cmd, args) },
	}
	readCmd.Flags().StringP("file", "f", "", "Read a story from a JSON or YAML file")
	readCmd.Flags().Bool("no-record", false, "Skip recording and play with the clips already loaded")
	readCmd.Flags().String("clips", "", "Load cue-<n>.wav clips from this directory")
	readCmd.Flags().String("save-clips", "", "Save recorded clips to this directory")

	recordCmd := &cobra.Command{
		Use:   "record [theme-id]",
		Short: "⏺️ Record the sound cues of a story",
		Long:  "Record a clip for each sound cue and save them as WAV files for later",
		Args:  cobra.MaximumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return app.Load().RecordStory(cmd, args) },
	}
	recordCmd.Flags().StringP("file", "f", "", "Read a story from a JSON or YAML file")
	recordCmd.Flags().StringP("out", "o", "", "Directory to write clips to")

	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎤 List narration voices",
		Run:   func(cmd *cobra.Command, args []string) { app.Load().ListVoices(cmd, args) },
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "🗄️ Manage cached audio and themes",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "📊 Show cache status",
			Run:   func(cmd *cobra.Command, args []string) { app.Load().ShowCacheStatus(cmd, args) },
		},
		&cobra.Command{
			Use:   "clear",
			Short: "🧹 Clear cached narration audio and themes",
			Run:   func(cmd *cobra.Command, args []string) { app.Load().ClearCache(cmd, args) },
		},
	)

	saveCmd := &cobra.Command{
		Use:   "save <file>",
		Short: "💾 Add a story file to your library",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return app.Load().SaveStory(cmd, args) },
	}
	saveCmd.Flags().String("id", "", "Theme id (defaults to the file name)")

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show current settings",
		Run:   func(cmd *cobra.Command, args []string) { app.Load().ShowSettings(cmd, args) },
	}

	rootCmd.AddCommand(themesCmd, readCmd, recordCmd, voicesCmd, cacheCmd, saveCmd, settingsCmd)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		stopApp(&app)
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Sweet dreams! 🌙"))
		<-sigChan
		os.Exit(1)
	}()

	err := rootCmd.Execute()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if serr := shutdownMetrics(ctx); serr != nil {
		logrus.WithError(serr).Warn("Failed to flush metrics")
	}
	cancel()
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// stopApp stops the studio if one has been built.
func stopApp(app *atomic.Pointer[studio.Studio]) {
	if s := app.Load(); s != nil {
		s.Stop()
	}
}

// setupMetrics serves Prometheus metrics when enabled. Otherwise the returned
// Metrics is nil and the studio records on the global no-op provider.
func setupMetrics(ctx context.Context, cfg config.Metrics) (*observe.Metrics, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}
	p, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "storyecho", Listen: cfg.Listen})
	if err != nil {
		return nil, noop, fmt.Errorf("failed to start metrics: %w", err)
	}
	m, err := observe.NewMetrics(p.MeterProvider())
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, noop, fmt.Errorf("failed to create metrics: %w", err)
	}
	return m, p.Shutdown, nil
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		logrus.WithError(err).WithField("flag", flag).Fatal("failed to bind flag")
	}
}
