package generator

import (
	"context"
	"errors"
	"fmt"

	"storyecho/internal/domain/library"
	"storyecho/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// ThemeSource supplies ready-made stories. Story content is produced
// elsewhere (templates or a generation service) and arrives validated.
type ThemeSource interface {
	Name() string
	ListThemes(ctx context.Context) ([]library.Theme, error)
	LoadTheme(ctx context.Context, id string) (*story.Story, error)
}

// StoryPersister stores a story so it can be loaded as a theme later.
type StoryPersister interface {
	PersistStory(ctx context.Context, id string, s *story.Story) error
}

// Chain asks each source in order.
type Chain []ThemeSource

// LoadTheme returns the first source's story for id.
func (c Chain) LoadTheme(ctx context.Context, id string) (*story.Story, error) {
	for _, src := range c {
		s, err := src.LoadTheme(ctx, id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, library.ErrThemeNotFound) {
			logrus.WithError(err).WithField("source", src.Name()).Warn("theme source failed")
		}
	}
	return nil, fmt.Errorf("%w: %s", library.ErrThemeNotFound, id)
}

// ListThemes collects the themes of every source, grouped per source.
// A failing source is logged and skipped.
func (c Chain) ListThemes(ctx context.Context) []library.ThemeLibrary {
	var out []library.ThemeLibrary
	for _, src := range c {
		themes, err := src.ListThemes(ctx)
		if err != nil {
			logrus.WithError(err).WithField("source", src.Name()).Warn("failed to list themes")
			continue
		}
		out = append(out, library.ThemeLibrary{Name: src.Name(), Themes: themes})
	}
	return out
}
