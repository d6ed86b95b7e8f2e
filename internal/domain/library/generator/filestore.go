package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storyecho/internal/domain/library"
	"storyecho/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// FileStore keeps stories as files in a directory, one file per theme id.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store, creating dir if needed.
func NewFileStore(dir string) *FileStore {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create library directory")
	}
	return &FileStore{dir: dir}
}

func (fs *FileStore) Name() string { return "Saved Stories" }

// PersistStory writes s as <dir>/<id>.json.
func (fs *FileStore) PersistStory(ctx context.Context, id string, s *story.Story) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid theme id: %q", id)
	}

	path := filepath.Join(fs.dir, id+".json")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create story file: %w", err)
	}
	defer file.Close()

	if err := story.Encode(file, s, "json"); err != nil {
		return fmt.Errorf("failed to encode story: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"id":       id,
		"segments": len(s.Segments),
		"file":     path,
	}).Info("Saved story to library")
	return nil
}

func (fs *FileStore) LoadTheme(ctx context.Context, id string) (*story.Story, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(fs.dir, id+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return story.ReadFile(path)
	}
	return nil, fmt.Errorf("%w: %s", library.ErrThemeNotFound, id)
}

func (fs *FileStore) ListThemes(ctx context.Context) ([]library.Theme, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var themes []library.Theme
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch story.FormatOf(e.Name()) {
		case "json", "yaml", "yml":
		default:
			continue
		}
		s, err := story.ReadFile(filepath.Join(fs.dir, e.Name()))
		if err != nil {
			logrus.WithError(err).WithField("file", e.Name()).Warn("Skipping unreadable story")
			continue
		}
		themes = append(themes, library.Theme{
			ID:          strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Name:        s.Title,
			Description: fmt.Sprintf("%d segments, %d sound cues", len(s.Segments), len(s.SoundCues)),
			Story:       s,
		})
	}
	sort.Slice(themes, func(i, j int) bool { return themes[i].ID < themes[j].ID })
	return themes, nil
}
