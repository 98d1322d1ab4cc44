package recommend

import (
	"testing"

	"card-rewards-api/internal/models"
)

func candidate(id string, rate float64, fee, minScore int) models.CardRecommendation {
	return models.CardRecommendation{
		CreditCard: models.CreditCard{
			ID:             id,
			AnnualFee:      fee,
			MinCreditScore: minScore,
			IsActive:       true,
		},
		RewardRate: rate,
	}
}

func TestApplyFilters_AnnualFeeInclusiveBoundary(t *testing.T) {
	fee := 95
	candidates := []models.CardRecommendation{
		candidate("a", 5.0, 95, 700),
		candidate("b", 4.0, 96, 700),
		candidate("c", 3.0, 0, 700),
	}

	got := applyFilters(candidates, models.RecommendationFilters{MaxAnnualFee: &fee})

	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Expected [a c], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestApplyFilters_CreditScoreInclusiveBoundary(t *testing.T) {
	// The ceiling is the user's own score: a card requiring exactly that
	// score is attainable.
	score := 700
	candidates := []models.CardRecommendation{
		candidate("a", 5.0, 0, 700),
		candidate("b", 4.0, 0, 701),
	}

	got := applyFilters(candidates, models.RecommendationFilters{MaxCreditScore: &score})

	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].ID != "a" {
		t.Errorf("Expected card a, got %s", got[0].ID)
	}
}

func TestApplyFilters_NoFilters(t *testing.T) {
	candidates := []models.CardRecommendation{
		candidate("a", 5.0, 95, 700),
		candidate("b", 4.0, 550, 800),
	}

	got := applyFilters(candidates, models.RecommendationFilters{})

	if len(got) != 2 {
		t.Fatalf("Expected all candidates to pass, got %d", len(got))
	}
}

func TestApplyFilters_EmptyInput(t *testing.T) {
	fee := 0
	got := applyFilters(nil, models.RecommendationFilters{MaxAnnualFee: &fee})
	if len(got) != 0 {
		t.Fatalf("Expected empty output, got %d", len(got))
	}
}

func TestRank_DescendingByRate(t *testing.T) {
	candidates := []models.CardRecommendation{
		candidate("low", 1.0, 0, 0),
		candidate("high", 5.0, 0, 0),
		candidate("mid", 3.0, 0, 0),
	}

	rank(candidates)

	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if candidates[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, candidates[i].ID)
		}
	}
}

func TestRank_TiesPreserveInsertionOrder(t *testing.T) {
	candidates := []models.CardRecommendation{
		candidate("first", 2.0, 0, 0),
		candidate("second", 2.0, 0, 0),
		candidate("third", 5.0, 0, 0),
		candidate("fourth", 2.0, 0, 0),
	}

	rank(candidates)

	want := []string{"third", "first", "second", "fourth"}
	for i, id := range want {
		if candidates[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, candidates[i].ID)
		}
	}
}
