package catalog

import (
	"context"
	"fmt"
)

// starterPuzzles ship with the server so a fresh install is playable
// without authoring content first.
var starterPuzzles = []Puzzle{
	{
		ID:          "turtle-soup",
		Title:       "Turtle Soup",
		SurfaceText: "A man walks into a restaurant and orders turtle soup. He takes one sip, pays, goes home, and takes his own life. Why?",
		TruthText: "Years ago the man was shipwrecked with others. To survive, the group fed him what they called turtle soup; it was the flesh of his dead companion. " +
			"Tasting real turtle soup, he realized what he had actually eaten back then.",
		Facts: []string{
			"The man was once shipwrecked.",
			"He had eaten 'turtle soup' before.",
			"The two soups did not taste the same.",
		},
		Keywords: []string{"shipwreck", "survival", "companion", "taste"},
	},
	{
		ID:          "last-floor",
		Title:       "The Elevator",
		SurfaceText: "A woman who lives on the tenth floor rides the elevator to the seventh floor every day and walks the rest. On rainy days she rides all the way up. Why?",
		TruthText:   "She is too short to reach the button for the tenth floor. On rainy days she carries an umbrella and uses it to press the button.",
		Facts: []string{
			"Nothing is wrong with the elevator.",
			"She prefers not to walk.",
		},
		Keywords: []string{"height", "button", "umbrella"},
	},
	{
		ID:          "desert-pack",
		Title:       "The Unopened Pack",
		SurfaceText: "A man is found dead in the desert holding an unopened pack. Why did he die?",
		TruthText:   "He jumped from a plane and his parachute, the unopened pack, failed to deploy.",
		Facts: []string{
			"He did not die of thirst.",
			"He arrived by air.",
		},
		Keywords: []string{"parachute", "plane", "fall"},
	},
}

// SeedDefaults inserts the starter puzzles when the catalog is empty.
// Reports how many were inserted.
func SeedDefaults(ctx context.Context, repo Repository) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count puzzles: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for i := range starterPuzzles {
		p := starterPuzzles[i]
		if err := repo.Put(ctx, &p); err != nil {
			return i, fmt.Errorf("seed puzzle %s: %w", p.ID, err)
		}
	}
	return len(starterPuzzles), nil
}
