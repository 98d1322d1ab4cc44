package recommend

import (
	"sort"

	"card-rewards-api/internal/models"
)

// applyFilters drops candidates above the optional ceilings. Both
// boundaries are inclusive: a card costing exactly the fee ceiling is
// kept, and a card requiring exactly the user's credit score is
// attainable.
func applyFilters(candidates []models.CardRecommendation, filters models.RecommendationFilters) []models.CardRecommendation {
	if filters.MaxAnnualFee == nil && filters.MaxCreditScore == nil {
		return candidates
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if filters.MaxAnnualFee != nil && c.AnnualFee > *filters.MaxAnnualFee {
			continue
		}
		if filters.MaxCreditScore != nil && c.MinCreditScore > *filters.MaxCreditScore {
			continue
		}
		filtered = append(filtered, c)
	}

	return filtered
}

// rank orders candidates by reward rate, highest first. The sort is
// stable so ties keep the order the candidates were produced in, which
// is the catalog row order.
func rank(candidates []models.CardRecommendation) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RewardRate > candidates[j].RewardRate
	})
}
