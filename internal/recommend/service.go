// Package recommend implements the reward recommendation engine: given
// a merchant, rank the catalog's credit cards by the cash-back rate the
// user would earn there right now.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"card-rewards-api/internal/cache"
	"card-rewards-api/internal/events"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/models"
	"card-rewards-api/internal/rotation"
)

// GeneralPurchasesLabel is the category match reported when a merchant's
// category has no reward rows and cards fall back to their base rate.
const GeneralPurchasesLabel = "General Purchases"

var (
	// ErrMerchantNotFound means the merchant id does not resolve.
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrCatalogInconsistent means the catalog violated referential
	// integrity (e.g. a merchant references an unknown category).
	ErrCatalogInconsistent = errors.New("catalog inconsistency")
)

// Catalog is the read-only contract the engine consumes. Absence is a
// nil result; an error means the catalog itself is unavailable.
type Catalog interface {
	GetMerchant(ctx context.Context, id string) (*models.Merchant, error)
	GetCategory(ctx context.Context, id string) (*models.MerchantCategory, error)
	GetRewardsForCategory(ctx context.Context, categoryID string) ([]models.CardCategoryReward, error)
	GetCard(ctx context.Context, id string) (*models.CreditCard, error)
	GetActiveCards(ctx context.Context) ([]models.CreditCard, error)
}

// Service computes card recommendations. Stateless and safe for
// concurrent use; every hard error aborts the whole computation, so a
// response is always all-or-nothing.
type Service struct {
	catalog  Catalog
	cache    cache.Cache
	cacheTTL time.Duration
	events   *events.Manager
	features *features.Manager
}

// Options holds optional collaborators for the service.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Events   *events.Manager
	Features *features.Manager
}

// NewService creates an engine over the given catalog with no optional
// collaborators.
func NewService(catalog Catalog) *Service {
	return NewServiceWithOptions(catalog, Options{})
}

// NewServiceWithOptions creates an engine with optional cache, events
// and feature flags wired in.
func NewServiceWithOptions(catalog Catalog, opts Options) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		catalog:  catalog,
		cache:    opts.Cache,
		cacheTTL: ttl,
		events:   opts.Events,
		features: opts.Features,
	}
}

// Recommend returns the ordered card recommendations for a merchant at
// the given instant. The instant is explicit so any quarter can be
// evaluated deterministically.
func (s *Service) Recommend(ctx context.Context, merchantID string, filters models.RecommendationFilters, now time.Time) (*models.RecommendationsResponse, error) {
	window := rotation.CurrentWindow(now)

	cacheKey := recommendationKey(merchantID, window, filters)
	if s.cacheUsable() {
		var cached models.RecommendationsResponse
		if err := cache.GetJSON(ctx, s.cache, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	merchant, err := s.catalog.GetMerchant(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read merchant: %w", err)
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}

	category, err := s.catalog.GetCategory(ctx, merchant.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to read category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("%w: merchant %q references unknown category %q",
			ErrCatalogInconsistent, merchant.ID, merchant.CategoryID)
	}

	rewards, err := s.catalog.GetRewardsForCategory(ctx, category.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read rewards: %w", err)
	}

	var candidates []models.CardRecommendation
	if len(rewards) == 0 {
		// No reward row of any kind exists for this category, so every
		// active card competes at its base rate. A category whose only
		// rows are off-quarter rotating rewards does NOT take this
		// branch: the fallback keys off the raw row count.
		candidates, err = s.fallbackCandidates(ctx)
	} else {
		candidates, err = s.categoryCandidates(ctx, rewards, category, window)
	}
	if err != nil {
		return nil, err
	}

	candidates = applyFilters(candidates, filters)
	rank(candidates)

	resp := &models.RecommendationsResponse{
		MerchantID:      merchant.ID,
		MerchantName:    merchant.Name,
		Quarter:         window.String(),
		Recommendations: candidates,
	}

	if s.cacheUsable() {
		_ = cache.SetJSON(ctx, s.cache, cacheKey, resp, s.cacheTTL)
	}
	if s.events != nil {
		s.events.PublishRecommendationServed(ctx, merchant.ID, window.String(), candidates)
	}

	return resp, nil
}

// categoryCandidates builds candidates from the category's reward rows:
// rotating rows outside the current window are dropped entirely, and
// rows whose card is missing or inactive are silently skipped.
func (s *Service) categoryCandidates(ctx context.Context, rewards []models.CardCategoryReward, category *models.MerchantCategory, window rotation.Quarter) ([]models.CardRecommendation, error) {
	rotatingEnabled := s.features == nil || s.features.IsEnabled(features.FeatureRotatingRewards)

	candidates := make([]models.CardRecommendation, 0, len(rewards))
	for _, row := range rewards {
		if row.IsRotating {
			if !rotatingEnabled {
				continue
			}
			period, ok := rotation.ParseQuarter(row.RotationPeriod)
			if !ok || period != window {
				continue
			}
		}

		card, err := s.catalog.GetCard(ctx, row.CardID)
		if err != nil {
			return nil, fmt.Errorf("failed to read card: %w", err)
		}
		if card == nil || !card.IsActive {
			// Expected data hygiene, not a failure.
			continue
		}

		match := category.Name
		rotationPeriod := ""
		if row.IsRotating {
			match = fmt.Sprintf("%s %s (Currently Active)", row.RotationPeriod, category.Name)
			rotationPeriod = row.RotationPeriod
		}

		candidates = append(candidates, models.CardRecommendation{
			CreditCard:     *card,
			RewardRate:     row.RewardRate,
			CategoryMatch:  match,
			IsRotating:     row.IsRotating,
			RotationPeriod: rotationPeriod,
		})
	}

	return candidates, nil
}

// fallbackCandidates emits every active card at its base reward rate.
func (s *Service) fallbackCandidates(ctx context.Context) ([]models.CardRecommendation, error) {
	cards, err := s.catalog.GetActiveCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read active cards: %w", err)
	}

	candidates := make([]models.CardRecommendation, 0, len(cards))
	for _, card := range cards {
		candidates = append(candidates, models.CardRecommendation{
			CreditCard:    card,
			RewardRate:    card.BaseReward,
			CategoryMatch: GeneralPurchasesLabel,
		})
	}

	return candidates, nil
}

// InvalidateCache drops every cached recommendation. Wired to catalog
// update events so curation writes take effect immediately.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

func (s *Service) cacheUsable() bool {
	if s.cache == nil {
		return false
	}
	return s.features == nil || s.features.IsEnabled(features.FeatureCacheEnabled)
}

func recommendationKey(merchantID string, window rotation.Quarter, filters models.RecommendationFilters) string {
	fee := "-"
	if filters.MaxAnnualFee != nil {
		fee = fmt.Sprintf("%d", *filters.MaxAnnualFee)
	}
	score := "-"
	if filters.MaxCreditScore != nil {
		score = fmt.Sprintf("%d", *filters.MaxCreditScore)
	}
	return fmt.Sprintf("recommendations:%s:%s:%s:%s", merchantID, window, fee, score)
}
