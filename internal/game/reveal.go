package game

import (
	"github.com/ztpublic/turtlesoup/internal/domain"
)

// revealAll returns a copy of content with every fact and keyword marked
// revealed, leaving surface and truth text untouched. Applied when a round
// ends or resets with reveal enabled, so a later summary view can show what
// the answer was without further queries. Nil content is a no-op.
func revealAll(content *domain.PuzzleContent) *domain.PuzzleContent {
	if content == nil {
		return nil
	}
	out := content.Clone()
	for i := range out.Facts {
		out.Facts[i].Revealed = true
	}
	for i := range out.Keywords {
		out.Keywords[i].Revealed = true
	}
	return out
}
