package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"card-rewards-api/internal/models"
	"card-rewards-api/internal/rotation"
)

// Identifiers are opaque slugs or UUIDs supplied by the catalog
// curators, not user input, so the charset is kept tight.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateCard checks a credit card before it enters the catalog.
func ValidateCard(card models.CreditCard) error {
	if err := ValidateID(card.ID, "id"); err != nil {
		return err
	}

	if strings.TrimSpace(card.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}

	if strings.TrimSpace(card.Issuer) == "" {
		return &ValidationError{Field: "issuer", Message: "is required"}
	}

	if card.AnnualFee < 0 {
		return &ValidationError{Field: "annual_fee", Message: "must be non-negative"}
	}

	if card.MinCreditScore < 0 || card.MinCreditScore > 850 {
		return &ValidationError{Field: "min_credit_score", Message: "must be between 0 and 850"}
	}

	if err := validateRate(card.BaseReward, "base_reward"); err != nil {
		return err
	}

	return nil
}

// ValidateCategory checks a merchant category.
func ValidateCategory(category models.MerchantCategory) error {
	if err := ValidateID(category.ID, "id"); err != nil {
		return err
	}

	if strings.TrimSpace(category.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}

	return nil
}

// ValidateMerchant checks a merchant.
func ValidateMerchant(merchant models.Merchant) error {
	if err := ValidateID(merchant.ID, "id"); err != nil {
		return err
	}

	if strings.TrimSpace(merchant.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}

	if err := ValidateID(merchant.CategoryID, "category_id"); err != nil {
		return err
	}

	if (merchant.Latitude == nil) != (merchant.Longitude == nil) {
		return &ValidationError{Field: "latitude", Message: "latitude and longitude must be supplied together"}
	}

	if merchant.Latitude != nil {
		if *merchant.Latitude < -90 || *merchant.Latitude > 90 {
			return &ValidationError{Field: "latitude", Message: "must be between -90 and 90"}
		}
		if *merchant.Longitude < -180 || *merchant.Longitude > 180 {
			return &ValidationError{Field: "longitude", Message: "must be between -180 and 180"}
		}
	}

	return nil
}

// ValidateReward checks a card-category reward row. A rotating row must
// carry a valid quarter token or it could never be selected.
func ValidateReward(reward models.CardCategoryReward) error {
	if err := ValidateID(reward.ID, "id"); err != nil {
		return err
	}

	if err := ValidateID(reward.CardID, "card_id"); err != nil {
		return err
	}

	if err := ValidateID(reward.CategoryID, "category_id"); err != nil {
		return err
	}

	if err := validateRate(reward.RewardRate, "reward_rate"); err != nil {
		return err
	}

	if reward.IsRotating {
		if _, ok := rotation.ParseQuarter(reward.RotationPeriod); !ok {
			return &ValidationError{
				Field:   "rotation_period",
				Message: "must be one of Q1, Q2, Q3, Q4 for a rotating reward",
			}
		}
	}

	return nil
}

func validateRate(rate float64, field string) error {
	if rate < 0 {
		return &ValidationError{Field: field, Message: "must be non-negative"}
	}

	if rate > 100 {
		return &ValidationError{Field: field, Message: "cannot exceed 100 percent"}
	}

	return nil
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateID checks an opaque identifier.
func ValidateID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}

	if !idRegex.MatchString(SanitizeString(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be 1-64 characters of letters, digits, '.', '_' or '-'",
		}
	}

	return nil
}

// ValidateTimeString parses an RFC3339 timestamp.
func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{Field: "time", Message: "is required"}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
