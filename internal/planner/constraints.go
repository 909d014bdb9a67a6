package planner

import (
	"strings"

	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

// Constraints are the immutable story parameters embedded in every prompt.
type Constraints struct {
	Genre   string `json:"genre" yaml:"genre" mapstructure:"genre"`
	Theme   string `json:"theme" yaml:"theme" mapstructure:"theme"`
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty" mapstructure:"channel"` // "male", "female" or empty
}

// Genre families that are allowed their own non-realist elements. Matching is
// by substring, first family wins.
var genreFamilies = []struct {
	keywords []string
	rule     string
}{
	{
		keywords: []string{"fantasy", "xianxia", "cultivation", "仙侠", "玄幻", "奇幻"},
		rule:     "Fantasy and cultivation elements and supernatural abilities are allowed, but the rules of the world must stay self-consistent; avoid piling up settings for their own sake.",
	},
	{
		keywords: []string{"sci-fi", "scifi", "science fiction", "科幻"},
		rule:     "Science-fiction elements (technology, engineering, space, AI) are allowed and should follow consistent scientific logic; avoid cultivation systems.",
	},
	{
		keywords: []string{"apocalypse", "post-apocalyptic", "末世"},
		rule:     "Apocalypse elements (catastrophe, survival, collapse of order) are allowed with consistent logic; avoid cultivation systems.",
	},
	{
		keywords: []string{"supernatural", "horror", "灵异", "恐怖"},
		rule:     "A supernatural or horror atmosphere is allowed, but it needs clear rules and an explainable chain of clues.",
	},
}

const realismRule = "Stay in a grounded, realistic setting; do not introduce cultivation, magic, cyberpunk, interstellar, alien, doomsday or mecha elements."

const (
	malePacing   = "Channel style: faster pacing, stronger progression and confrontation."
	femalePacing = "Channel style: clearer emotional line, stronger relationships and emotional tension."
)

// Pacing returns the pacing line for an audience channel, or "" for none.
func Pacing(channel string) string {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "male", "男频":
		return malePacing
	case "female", "女频":
		return femalePacing
	default:
		return ""
	}
}

// GenreRule returns the allowed-elements line for a genre.
func GenreRule(genre string) string {
	g := strings.ToLower(strings.TrimSpace(genre))
	for _, f := range genreFamilies {
		for _, k := range f.keywords {
			if strings.Contains(g, k) {
				return f.rule
			}
		}
	}
	return realismRule
}

// ConstraintBlock renders the constraint block for c.
func ConstraintBlock(r *prompts.Resolver, c Constraints) (string, error) {
	if r == nil {
		r = novel.NewResolver(nil, nil)
	}
	genre := strings.TrimSpace(c.Genre)
	if genre == "" {
		genre = "unspecified"
	}
	channel := strings.TrimSpace(c.Channel)
	return r.Render(novel.ConstraintsKey, novel.ConstraintsData{
		Genre:     genre,
		Theme:     strings.TrimSpace(c.Theme),
		Channel:   channel,
		GenreRule: GenreRule(c.Genre),
		Pacing:    Pacing(channel),
	})
}
