package library

import (
	"errors"
	"storyecho/internal/domain/story"
)

// ErrThemeNotFound is returned when no source knows the requested theme.
var ErrThemeNotFound = errors.New("theme not found")

// Theme is a selectable story template, as shown in the theme picker.
type Theme struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	AgeGroup    string       `json:"age_group" yaml:"age_group"`
	Story       *story.Story `json:"story" yaml:"story"`
}

// ThemeLibrary represents a collection of themes from one source
type ThemeLibrary struct {
	Name   string  `json:"name"`
	URL    string  `json:"url"`
	Themes []Theme `json:"themes"`
}

// Find returns the theme with the given id.
func (l *ThemeLibrary) Find(id string) (*Theme, bool) {
	for i := range l.Themes {
		if l.Themes[i].ID == id {
			return &l.Themes[i], true
		}
	}
	return nil, false
}
