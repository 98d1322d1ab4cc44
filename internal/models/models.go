package models

// CreditCard is a card in the reward catalog. Reference data, curated
// by administrative endpoints and read-only for the recommendation path.
type CreditCard struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Issuer         string  `json:"issuer"`
	AnnualFee      int     `json:"annual_fee"`       // currency units, non-negative
	MinCreditScore int     `json:"min_credit_score"` // minimum recommended score
	BaseReward     float64 `json:"base_reward"`      // percent, applies when no category reward matches
	WelcomeBonus   string  `json:"welcome_bonus,omitempty"`
	Description    string  `json:"description,omitempty"`
	IsActive       bool    `json:"is_active"`
}

// MerchantCategory is a spending category. Every merchant belongs to
// exactly one.
type MerchantCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// CardCategoryReward ties a card to a category at a given rate. A
// rotating reward is only active during its rotation period; multiple
// rows may exist for the same (card, category) pair when they rotate
// on different quarters.
type CardCategoryReward struct {
	ID             string  `json:"id"`
	CardID         string  `json:"card_id"`
	CategoryID     string  `json:"category_id"`
	RewardRate     float64 `json:"reward_rate"` // percent
	IsRotating     bool    `json:"is_rotating"`
	RotationPeriod string  `json:"rotation_period,omitempty"` // Q1..Q4 when rotating
}

// Merchant is a store the user might shop at.
type Merchant struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	CategoryID string   `json:"category_id"`
	Address    string   `json:"address,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	IsChain    bool     `json:"is_chain"`
}

// CardRecommendation is the engine's per-request output: a catalog card
// annotated with the effective rate and why it matched. Never persisted.
type CardRecommendation struct {
	CreditCard
	RewardRate     float64 `json:"reward_rate"`
	CategoryMatch  string  `json:"category_match"`
	IsRotating     bool    `json:"is_rotating"`
	RotationPeriod string  `json:"rotation_period,omitempty"`
	IsSaved        bool    `json:"is_saved"`
}

// RecommendationFilters are the optional post-processing ceilings. Nil
// means no filter. Both boundaries are inclusive: MaxCreditScore is the
// user's own score, so a card requiring exactly that score is attainable.
type RecommendationFilters struct {
	MaxAnnualFee   *int
	MaxCreditScore *int
}

// RecommendationsResponse is the payload for a recommendation request.
type RecommendationsResponse struct {
	MerchantID      string               `json:"merchant_id"`
	MerchantName    string               `json:"merchant_name"`
	Quarter         string               `json:"quarter"`
	Recommendations []CardRecommendation `json:"recommendations"`
}

// SavedCardsResponse lists the card ids a user has saved.
type SavedCardsResponse struct {
	UserID  string   `json:"user_id"`
	CardIDs []string `json:"card_ids"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
