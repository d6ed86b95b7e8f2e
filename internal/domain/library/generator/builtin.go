package generator

import (
	"context"
	"fmt"

	"storyecho/internal/domain/library"
	"storyecho/internal/domain/story"
)

// Builtin serves the template themes bundled with the app.
type Builtin struct {
	lib library.ThemeLibrary
}

func NewBuiltin() *Builtin {
	return &Builtin{lib: library.ThemeLibrary{
		Name: "Classic Tales Collection",
		Themes: []library.Theme{
			{
				ID:          "three-pigs",
				Name:        "The Three Little Pigs",
				Description: "Huff, puff and help the pigs build their houses",
				AgeGroup:    "3-7 years",
				Story: &story.Story{
					Title: "The Three Little Pigs",
					Segments: []string{
						"Once there were three little pigs who left home to build houses of their own.",
						"The first pig built a house of straw, and along came the big bad wolf.",
						"The third pig built a house of bricks, and the wolf could not blow it down.",
					},
					SoundCues: []string{
						"Make a happy oink, oink!",
						"Huff and puff like the wolf!",
						"Knock on the brick wall, knock, knock!",
					},
					Ending: "And the three little pigs lived safely in the house of bricks. The end.",
				},
			},
			{
				ID:          "space-cat",
				Name:        "Captain Whiskers' Space Adventure",
				Description: "A brave cat explores the galaxy",
				AgeGroup:    "5-9 years",
				Story: &story.Story{
					Title: "Captain Whiskers' Space Adventure",
					Segments: []string{
						"Captain Whiskers was no ordinary cat. He had his own spaceship.",
						"Three, two, one... the rocket roared into the sky!",
						"On the moon he met a friendly alien who loved to purr.",
						"They shared a bowl of moon milk and watched the Earth rise.",
					},
					SoundCues: []string{
						"Meow like a captain!",
						"Count down and make a rocket sound!",
						"Purr like a happy alien!",
					},
					Ending: "Captain Whiskers flew home just in time for his nap. Goodnight, Captain!",
				},
			},
			{
				ID:          "magic-garden",
				Name:        "The Secret Magic Garden",
				Description: "A hidden gate opens onto a singing garden",
				AgeGroup:    "4-8 years",
				Story: &story.Story{
					Title: "The Secret Magic Garden",
					Segments: []string{
						"Behind the old oak tree, Emma discovered a hidden gate.",
						"Inside, the flowers were humming a sleepy song.",
					},
					SoundCues: []string{
						"Creak like an old gate opening!",
					},
					Ending: "Emma tiptoed home, humming the flowers' song all the way to bed.",
				},
			},
		},
	}}
}

func (b *Builtin) Name() string { return b.lib.Name }

func (b *Builtin) ListThemes(ctx context.Context) ([]library.Theme, error) {
	return b.lib.Themes, nil
}

func (b *Builtin) LoadTheme(ctx context.Context, id string) (*story.Story, error) {
	theme, ok := b.lib.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", library.ErrThemeNotFound, id)
	}
	return theme.Story, nil
}
