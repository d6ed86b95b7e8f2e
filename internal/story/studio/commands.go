package studio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"storyecho/internal/cli/scheme/colours"
	"storyecho/internal/domain/library"
	"storyecho/internal/domain/story"
	"storyecho/internal/story/tts"

	"github.com/spf13/cobra"
)

func (s *Studio) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🌟 Welcome to StoryEcho! 🌟")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • storyecho themes    - Browse story themes")
	fmt.Println("  • storyecho read      - Record sounds for a story and hear it told")
	fmt.Println("  • storyecho record    - Only record the sound cues of a story")
	fmt.Println("  • storyecho voices    - List narration voices")
	fmt.Println("  • storyecho cache     - Inspect or clear cached audio")
	fmt.Println("  • storyecho save      - Add a story file to your library")
	fmt.Println("  • storyecho settings  - Show current settings")
	fmt.Println()
	colours.Prompt.Println("✨ Ready to tell a story together? ✨")
}

func (s *Studio) ListThemes(cmd *cobra.Command, args []string) {
	age, _ := cmd.Flags().GetString("age")

	fmt.Println()
	colours.Title.Println("📚 Story Themes 📚")
	fmt.Println()

	count := 0
	for _, lib := range s.themes.ListThemes(s.ctx) {
		if len(lib.Themes) == 0 {
			continue
		}
		colours.Info.Printf("📖 From %s:\n", lib.Name)
		for _, t := range lib.Themes {
			if age != "" && !strings.Contains(strings.ToLower(t.AgeGroup), strings.ToLower(age)) {
				continue
			}
			count++
			fmt.Printf("  %d. ", count)
			colours.Title.Printf("%s", t.Name)
			if t.AgeGroup != "" {
				fmt.Printf(" (🎯 %s)", t.AgeGroup)
			}
			fmt.Println()
			if t.Description != "" {
				fmt.Printf("     💡 %s\n", t.Description)
			}
			colours.Info.Printf("     ID: %s\n", t.ID)
			fmt.Println()
		}
	}

	if count == 0 {
		colours.Warning.Println("🔍 No themes found.")
	} else {
		colours.Success.Printf("✨ Found %d themes! ✨\n", count)
	}
}

// resolveStory loads the story named by --file, the first argument, or an
// interactive choice, in that order.
func (s *Studio) resolveStory(cmd *cobra.Command, args []string) (*story.Story, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		return story.ReadFile(file)
	}
	if len(args) > 0 {
		return s.themes.LoadTheme(s.ctx, args[0])
	}
	return s.chooseTheme()
}

func (s *Studio) chooseTheme() (*story.Story, error) {
	var themes []library.Theme
	for _, lib := range s.themes.ListThemes(s.ctx) {
		themes = append(themes, lib.Themes...)
	}
	if len(themes) == 0 {
		return nil, fmt.Errorf("%w: no themes available", library.ErrThemeNotFound)
	}

	fmt.Println()
	colours.Title.Println("📚 Choose Your Story Adventure! 📚")
	fmt.Println()
	for i, t := range themes {
		fmt.Printf("%d. ", i+1)
		colours.Title.Println(t.Name)
	}
	fmt.Println()
	colours.Prompt.Print("🌟 Enter the number of your chosen story (or 'q' to quit): ")

	line, ok := s.readLine()
	input := strings.TrimSpace(line)
	if !ok || input == "q" || input == "quit" {
		return nil, nil
	}
	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(themes) {
		return nil, fmt.Errorf("invalid selection %q", input)
	}
	return s.themes.LoadTheme(s.ctx, themes[choice-1].ID)
}

func (s *Studio) ReadStory(cmd *cobra.Command, args []string) error {
	st, err := s.resolveStory(cmd, args)
	if err != nil {
		return err
	}
	if st == nil {
		colours.Warning.Println("👋 Maybe next time! Sweet dreams! 🌙")
		return nil
	}

	noRecord, _ := cmd.Flags().GetBool("no-record")
	clipsDir, _ := cmd.Flags().GetString("clips")
	saveDir, _ := cmd.Flags().GetString("save-clips")

	s.showStory(st)
	ss := s.newSession(st, highlighter(st))
	defer s.closeSession(ss)

	if clipsDir != "" {
		n, err := ss.importClips(clipsDir)
		if err != nil {
			return fmt.Errorf("failed to load clips: %w", err)
		}
		colours.Success.Printf("🎧 Loaded %d clips from %s\n", n, clipsDir)
	}

	if !noRecord && len(st.SoundCues) > 0 {
		colours.Prompt.Println("🎤 Let's record the sounds for this story!")
		if !s.recordCues(ss) {
			return nil
		}
	}

	if saveDir != "" {
		n, err := ss.saveClips(saveDir)
		if err != nil {
			return err
		}
		colours.Success.Printf("💾 Saved %d clips to %s\n", n, saveDir)
	}

	fmt.Println()
	colours.Prompt.Print("🎧 Ready to listen? Press Enter to start: ")
	if _, ok := s.readLine(); !ok {
		return nil
	}
	_, err = s.play(ss)
	return err
}

func (s *Studio) RecordStory(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return fmt.Errorf("--out is required")
	}
	st, err := s.resolveStory(cmd, args)
	if err != nil || st == nil {
		return err
	}

	s.showStory(st)
	ss := s.newSession(st, nil)
	defer s.closeSession(ss)

	if !s.recordCues(ss) {
		return nil
	}
	n, err := ss.saveClips(out)
	if err != nil {
		return err
	}
	colours.Success.Printf("💾 Saved %d clips to %s\n", n, out)
	colours.Info.Printf("💡 Play them back with: storyecho read --clips %s --no-record\n", out)
	return nil
}

func (s *Studio) ListVoices(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("🎤 Narration Voices 🎤")

	remote, err := tts.NewRemote(s.ctx, s.remoteConfig(), s.localConfig())
	if err != nil {
		colours.Error.Printf("❌ Remote voices unavailable: %v\n", err)
	}
	s.printVoices("Remote", remote)
	if c, ok := remote.(interface{ Close() error }); ok {
		_ = c.Close()
	}

	local, err := tts.NewLocal(s.localConfig())
	if err != nil {
		colours.Error.Printf("❌ Local voices unavailable: %v\n", err)
	}
	s.printVoices("Local", local)

	fmt.Println()
	colours.Info.Print("⚙️  Engines on this platform: ")
	var names []string
	for _, e := range tts.GetAvailableEngines() {
		names = append(names, e.String())
	}
	fmt.Println(strings.Join(names, ", "))
}

func (s *Studio) printVoices(label string, engine any) {
	fmt.Println()
	if engine == nil {
		colours.Warning.Printf("%s: none configured\n", label)
		return
	}
	lister, ok := engine.(tts.VoiceLister)
	if !ok {
		colours.Warning.Printf("%s: voice listing not supported\n", label)
		return
	}
	voices, err := lister.GetAvailableVoices(s.ctx)
	if err != nil {
		colours.Error.Printf("%s: %v\n", label, err)
		return
	}
	sort.Strings(voices)
	colours.Info.Printf("%s (%d):\n", label, len(voices))
	for _, v := range voices {
		fmt.Printf("  • %s\n", v)
	}
}

func (s *Studio) audioCache() (*tts.CachedSynthesizer, error) {
	if s.cfg.Remote.CachePath == "" {
		return nil, fmt.Errorf("audio cache disabled (tts.remote.cache_path is empty)")
	}
	return tts.NewCachedSynthesizer(nil, "", s.cfg.Remote.CachePath)
}

func (s *Studio) ShowCacheStatus(cmd *cobra.Command, args []string) {
	colours.Title.Println("📊 Cache Status")

	cache, err := s.audioCache()
	if err != nil {
		colours.Warning.Printf("⚠️ %v\n", err)
	} else if stats, err := cache.GetCacheStats(); err != nil {
		colours.Error.Printf("❌ Failed to get cache info: %v\n", err)
	} else {
		colours.Info.Printf("📁 Narration audio: %s\n", stats["cache_directory"])
		colours.Info.Printf("🎵 Files: %d (%.2f MB)\n", stats["cached_files"], stats["total_size_mb"])
	}

	if s.catalog == nil {
		colours.Info.Println("🌐 No online theme catalog configured")
		return
	}
	if lib, err := s.catalog.GetLibrary(s.ctx); err != nil {
		colours.Warning.Printf("⚠️ Theme catalog unavailable: %v\n", err)
	} else {
		colours.Info.Printf("🌐 Theme catalog: %d themes from %s\n", len(lib.Themes), lib.URL)
	}
}

func (s *Studio) ClearCache(cmd *cobra.Command, args []string) {
	if cache, err := s.audioCache(); err == nil {
		if err := cache.ClearCache(); err != nil {
			colours.Error.Printf("❌ Failed to clear narration cache: %v\n", err)
		} else {
			colours.Success.Println("✅ Narration audio cache cleared")
		}
	}
	if s.catalog != nil {
		if err := s.catalog.ClearCache(); err != nil {
			colours.Error.Printf("❌ %v\n", err)
		} else {
			colours.Success.Println("✅ Theme catalog cache cleared")
		}
	}
}

// SaveStory validates a story file and copies it into the local library.
func (s *Studio) SaveStory(cmd *cobra.Command, args []string) error {
	st, err := story.ReadFile(args[0])
	if err != nil {
		return err
	}
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if err := s.store.PersistStory(s.ctx, id, st); err != nil {
		return err
	}
	colours.Success.Printf("💾 Saved \"%s\" as theme %s\n", st.Title, id)
	return nil
}

func (s *Studio) ShowSettings(cmd *cobra.Command, args []string) {
	c := s.cfg
	fmt.Println()
	colours.Title.Println("⚙️ Settings ⚙️")
	fmt.Println()

	colours.Prompt.Println("🌐 Remote narration:")
	fmt.Printf("  • Engine: %s\n", c.Remote.Type)
	fmt.Printf("  • Voice: %s\n", c.Remote.Voice)
	if c.Remote.Endpoint != "" {
		fmt.Printf("  • Endpoint: %s\n", c.Remote.Endpoint)
	}
	fmt.Printf("  • Timeout: %s\n", c.Remote.Timeout)
	fmt.Printf("  • Cache: %s\n", orNone(c.Remote.CachePath))
	fmt.Println()

	colours.Prompt.Println("🗣️ Local narration:")
	fmt.Printf("  • Engine: %s\n", c.Local.Type)
	fmt.Printf("  • Voice: %s\n", c.Local.Voice)
	fmt.Printf("  • Speed: %.1fx\n", c.Local.Speed)
	fmt.Printf("  • Volume: %.0f%%\n", c.Local.Volume*100)
	fmt.Println()

	colours.Prompt.Println("🎙️ Capture:")
	fmt.Printf("  • %s -f %s -i %s (%d Hz, %d ch)\n", c.Capture.Command, c.Capture.InputFormat,
		orNone(c.Capture.InputDevice), c.Capture.SampleRate, c.Capture.Channels)
	fmt.Println()

	colours.Prompt.Println("⏱️ Playback:")
	fmt.Printf("  • Pause for a missing clip: %s\n", c.Playback.CuePause)
	fmt.Printf("  • Pause between segments: %s\n", c.Playback.SegmentPause)
	fmt.Println()

	colours.Prompt.Println("📚 Library:")
	fmt.Printf("  • Saved stories: %s\n", c.Library.Path)
	fmt.Printf("  • Online catalog: %s\n", orNone(c.Library.URL))
	fmt.Println()

	colours.Prompt.Println("📈 Metrics:")
	if c.Metrics.Enabled {
		fmt.Printf("  • Prometheus: http://%s/metrics\n", c.Metrics.Listen)
	} else {
		fmt.Println("  • Off (set metrics.enabled to serve /metrics)")
	}
	fmt.Println()

	colours.Info.Printf("💡 Edit %s to change these\n", configFileHint())
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func configFileHint() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".storyecho", "storyecho.yaml")
	}
	return "storyecho.yaml"
}
