// Package saved annotates recommendations with a per-user "saved" flag.
// This is a presentation concern layered over the engine's output; the
// engine itself never sees user identity.
package saved

import (
	"context"

	"card-rewards-api/internal/models"
)

// Lookup is the capability that supplies a user's saved card ids.
type Lookup interface {
	GetSavedCardIDs(ctx context.Context, userID string) ([]string, error)
}

// Decorate marks each recommendation whose card id appears in savedIDs.
// The slice is modified in place.
func Decorate(recommendations []models.CardRecommendation, savedIDs []string) {
	if len(savedIDs) == 0 {
		return
	}

	set := make(map[string]struct{}, len(savedIDs))
	for _, id := range savedIDs {
		set[id] = struct{}{}
	}

	for i := range recommendations {
		_, recommendations[i].IsSaved = set[recommendations[i].ID]
	}
}

// Annotate fetches the user's saved cards and decorates the
// recommendations. A failed lookup leaves the flags untouched rather
// than failing the whole response.
func Annotate(ctx context.Context, lookup Lookup, userID string, recommendations []models.CardRecommendation) {
	if lookup == nil || userID == "" {
		return
	}

	ids, err := lookup.GetSavedCardIDs(ctx, userID)
	if err != nil {
		return
	}

	Decorate(recommendations, ids)
}
