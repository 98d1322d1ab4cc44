package recommend

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"card-rewards-api/internal/cache"
	"card-rewards-api/internal/catalog"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/models"
)

var (
	inQ1 = time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	inQ2 = time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)
)

func setupTestCatalog(t *testing.T) (*catalog.DB, func()) {
	dbPath := "./test_recommend_" + uuid.New().String() + ".db"
	db, err := catalog.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func seedCard(t *testing.T, db *catalog.DB, id string, fee, minScore int, baseReward float64, active bool) {
	t.Helper()
	err := db.UpsertCard(context.Background(), models.CreditCard{
		ID:             id,
		Name:           "Card " + id,
		Issuer:         "Test Bank",
		AnnualFee:      fee,
		MinCreditScore: minScore,
		BaseReward:     baseReward,
		IsActive:       active,
	})
	if err != nil {
		t.Fatalf("Failed to seed card %s: %v", id, err)
	}
}

func seedCategory(t *testing.T, db *catalog.DB, id, name string) {
	t.Helper()
	if err := db.UpsertCategory(context.Background(), models.MerchantCategory{ID: id, Name: name}); err != nil {
		t.Fatalf("Failed to seed category %s: %v", id, err)
	}
}

func seedMerchant(t *testing.T, db *catalog.DB, id, name, categoryID string) {
	t.Helper()
	err := db.UpsertMerchant(context.Background(), models.Merchant{ID: id, Name: name, CategoryID: categoryID})
	if err != nil {
		t.Fatalf("Failed to seed merchant %s: %v", id, err)
	}
}

func seedReward(t *testing.T, db *catalog.DB, id, cardID, categoryID string, rate float64, rotating bool, period string) {
	t.Helper()
	err := db.UpsertReward(context.Background(), models.CardCategoryReward{
		ID:             id,
		CardID:         cardID,
		CategoryID:     categoryID,
		RewardRate:     rate,
		IsRotating:     rotating,
		RotationPeriod: period,
	})
	if err != nil {
		t.Fatalf("Failed to seed reward %s: %v", id, err)
	}
}

func TestRecommend_RotatingRewardOutOfQuarterExcluded(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "general-retail", "General Retail")
	seedMerchant(t, db, "target-id", "Target", "general-retail")
	seedCard(t, db, "card-x", 0, 650, 1.0, true)
	seedCard(t, db, "card-y", 0, 650, 1.0, true)
	seedReward(t, db, "rw-1", "card-x", "general-retail", 5.0, false, "")
	seedReward(t, db, "rw-2", "card-y", "general-retail", 5.0, true, "Q1")

	svc := NewService(db)

	// Evaluated in Q2: the Q1 rotating reward is inactive this period.
	resp, err := svc.Recommend(context.Background(), "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].ID != "card-x" {
		t.Errorf("Expected card-x, got %s", resp.Recommendations[0].ID)
	}
	if resp.Recommendations[0].CategoryMatch != "General Retail" {
		t.Errorf("Expected category match 'General Retail', got %q", resp.Recommendations[0].CategoryMatch)
	}
	if resp.Quarter != "Q2" {
		t.Errorf("Expected quarter Q2, got %s", resp.Quarter)
	}
}

func TestRecommend_RotatingRewardInQuarterIncluded(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "gas", "Gas Stations")
	seedMerchant(t, db, "shell-1", "Shell", "gas")
	seedCard(t, db, "card-y", 0, 650, 1.0, true)
	seedReward(t, db, "rw-1", "card-y", "gas", 5.0, true, "Q1")

	svc := NewService(db)

	resp, err := svc.Recommend(context.Background(), "shell-1", models.RecommendationFilters{}, inQ1)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(resp.Recommendations))
	}

	rec := resp.Recommendations[0]
	if rec.CategoryMatch != "Q1 Gas Stations (Currently Active)" {
		t.Errorf("Unexpected category match %q", rec.CategoryMatch)
	}
	if !rec.IsRotating {
		t.Error("Expected is_rotating to be true")
	}
	if rec.RotationPeriod != "Q1" {
		t.Errorf("Expected rotation period Q1, got %q", rec.RotationPeriod)
	}
	if rec.RewardRate != 5.0 {
		t.Errorf("Expected rate 5.0, got %v", rec.RewardRate)
	}
}

func TestRecommend_FallbackWhenCategoryHasNoRewards(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "misc", "Miscellaneous")
	seedMerchant(t, db, "obscure-shop", "ObscureShop", "misc")
	seedCard(t, db, "card-a", 0, 650, 1.0, true)
	seedCard(t, db, "card-b", 0, 650, 1.5, true)
	seedCard(t, db, "card-c", 0, 650, 2.0, true)

	svc := NewService(db)

	resp, err := svc.Recommend(context.Background(), "obscure-shop", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 3 {
		t.Fatalf("Expected 3 recommendations, got %d", len(resp.Recommendations))
	}

	wantRates := []float64{2.0, 1.5, 1.0}
	for i, rec := range resp.Recommendations {
		if rec.RewardRate != wantRates[i] {
			t.Errorf("Position %d: expected rate %v, got %v", i, wantRates[i], rec.RewardRate)
		}
		if rec.CategoryMatch != GeneralPurchasesLabel {
			t.Errorf("Expected category match %q, got %q", GeneralPurchasesLabel, rec.CategoryMatch)
		}
		if rec.IsRotating {
			t.Error("Fallback recommendations must not be rotating")
		}
	}
}

func TestRecommend_OffQuarterOnlyCategoryIsEmptyNotFallback(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "dining", "Dining")
	seedMerchant(t, db, "bistro-1", "Bistro", "dining")
	seedCard(t, db, "card-y", 0, 650, 1.0, true)
	seedCard(t, db, "card-z", 0, 650, 2.0, true)
	// The category HAS a reward row, it is just inactive this quarter,
	// so the base-rate fallback must not kick in.
	seedReward(t, db, "rw-1", "card-y", "dining", 5.0, true, "Q1")

	svc := NewService(db)

	resp, err := svc.Recommend(context.Background(), "bistro-1", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 0 {
		t.Fatalf("Expected empty result, got %d recommendations", len(resp.Recommendations))
	}
}

func TestRecommend_AnnualFeeFilterExcludesTopCard(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "general-retail", "General Retail")
	seedMerchant(t, db, "target-id", "Target", "general-retail")
	seedCard(t, db, "premium", 95, 750, 1.0, true)
	seedCard(t, db, "free", 0, 650, 1.0, true)
	seedReward(t, db, "rw-1", "premium", "general-retail", 5.0, false, "")
	seedReward(t, db, "rw-2", "free", "general-retail", 3.0, false, "")

	svc := NewService(db)

	fee := 0
	resp, err := svc.Recommend(context.Background(), "target-id", models.RecommendationFilters{MaxAnnualFee: &fee}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].ID != "free" {
		t.Errorf("Expected the no-fee card to lead, got %s", resp.Recommendations[0].ID)
	}
}

func TestRecommend_CreditScoreFilter(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "travel", "Travel")
	seedMerchant(t, db, "airline-1", "Skyways", "travel")
	seedCard(t, db, "elite", 0, 780, 1.0, true)
	seedCard(t, db, "standard", 0, 700, 1.0, true)
	seedReward(t, db, "rw-1", "elite", "travel", 4.0, false, "")
	seedReward(t, db, "rw-2", "standard", "travel", 2.0, false, "")

	svc := NewService(db)

	// Inclusive boundary: a card requiring exactly 700 is attainable.
	score := 700
	resp, err := svc.Recommend(context.Background(), "airline-1", models.RecommendationFilters{MaxCreditScore: &score}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].ID != "standard" {
		t.Errorf("Expected the standard card, got %s", resp.Recommendations[0].ID)
	}
}

func TestRecommend_UnknownMerchant(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	svc := NewService(db)

	_, err := svc.Recommend(context.Background(), "unknown-id", models.RecommendationFilters{}, inQ2)
	if !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("Expected ErrMerchantNotFound, got %v", err)
	}
}

func TestRecommend_MerchantWithUnknownCategory(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	// Seeded directly through the catalog, bypassing curation's
	// reference check, to simulate a corrupted catalog.
	seedMerchant(t, db, "broken-merchant", "Broken", "no-such-category")

	svc := NewService(db)

	_, err := svc.Recommend(context.Background(), "broken-merchant", models.RecommendationFilters{}, inQ2)
	if !errors.Is(err, ErrCatalogInconsistent) {
		t.Fatalf("Expected ErrCatalogInconsistent, got %v", err)
	}
}

func TestRecommend_InactiveAndMissingCardsSoftSkipped(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "grocery", "Groceries")
	seedMerchant(t, db, "market-1", "FreshMart", "grocery")
	seedCard(t, db, "active", 0, 650, 1.0, true)
	seedCard(t, db, "retired", 0, 650, 1.0, false)
	seedReward(t, db, "rw-1", "active", "grocery", 3.0, false, "")
	seedReward(t, db, "rw-2", "retired", "grocery", 6.0, false, "")
	seedReward(t, db, "rw-3", "ghost-card", "grocery", 9.0, false, "")

	svc := NewService(db)

	resp, err := svc.Recommend(context.Background(), "market-1", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(resp.Recommendations))
	}
	if resp.Recommendations[0].ID != "active" {
		t.Errorf("Expected the active card, got %s", resp.Recommendations[0].ID)
	}
}

func TestRecommend_Deterministic(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "general-retail", "General Retail")
	seedMerchant(t, db, "target-id", "Target", "general-retail")
	seedCard(t, db, "card-a", 0, 650, 1.0, true)
	seedCard(t, db, "card-b", 0, 650, 1.0, true)
	seedReward(t, db, "rw-1", "card-a", "general-retail", 2.0, false, "")
	seedReward(t, db, "rw-2", "card-b", "general-retail", 2.0, false, "")

	svc := NewService(db)

	first, err := svc.Recommend(context.Background(), "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("First Recommend failed: %v", err)
	}
	second, err := svc.Recommend(context.Background(), "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Second Recommend failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Identical inputs over an unchanged catalog must yield identical output")
	}

	// Tied rates keep catalog row order.
	if first.Recommendations[0].ID != "card-a" || first.Recommendations[1].ID != "card-b" {
		t.Errorf("Expected [card-a card-b], got [%s %s]",
			first.Recommendations[0].ID, first.Recommendations[1].ID)
	}
}

func TestRecommend_OrderingInvariant(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "general-retail", "General Retail")
	seedMerchant(t, db, "target-id", "Target", "general-retail")
	rates := []float64{1.5, 4.0, 2.0, 10.0, 2.0}
	for _, rate := range rates {
		id := uuid.New().String()
		seedCard(t, db, id, 0, 650, 1.0, true)
		seedReward(t, db, uuid.New().String(), id, "general-retail", rate, false, "")
	}

	svc := NewService(db)

	resp, err := svc.Recommend(context.Background(), "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	for i := 1; i < len(resp.Recommendations); i++ {
		if resp.Recommendations[i-1].RewardRate < resp.Recommendations[i].RewardRate {
			t.Errorf("Ordering violated at %d: %v < %v",
				i, resp.Recommendations[i-1].RewardRate, resp.Recommendations[i].RewardRate)
		}
	}
}

func TestRecommend_RotatingKillSwitch(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "gas", "Gas Stations")
	seedMerchant(t, db, "shell-1", "Shell", "gas")
	seedCard(t, db, "card-y", 0, 650, 1.0, true)
	seedReward(t, db, "rw-1", "card-y", "gas", 5.0, true, "Q1")

	flags := features.NewDefaultManager()
	flags.Disable(features.FeatureRotatingRewards)
	svc := NewServiceWithOptions(db, Options{Features: flags})

	// In-quarter rotating reward, but the feature is off.
	resp, err := svc.Recommend(context.Background(), "shell-1", models.RecommendationFilters{}, inQ1)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(resp.Recommendations) != 0 {
		t.Fatalf("Expected empty result with rotating rewards disabled, got %d", len(resp.Recommendations))
	}
}

func TestRecommend_CacheHitAndInvalidation(t *testing.T) {
	db, cleanup := setupTestCatalog(t)
	defer cleanup()

	seedCategory(t, db, "general-retail", "General Retail")
	seedMerchant(t, db, "target-id", "Target", "general-retail")
	seedCard(t, db, "card-a", 0, 650, 1.0, true)
	seedReward(t, db, "rw-1", "card-a", "general-retail", 2.0, false, "")

	svc := NewServiceWithOptions(db, Options{
		Cache:    cache.NewInMemoryCache(),
		CacheTTL: time.Minute,
		Features: features.NewDefaultManager(),
	})

	ctx := context.Background()

	first, err := svc.Recommend(ctx, "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("First Recommend failed: %v", err)
	}
	if len(first.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(first.Recommendations))
	}

	// A new reward row lands but the cache has not been invalidated.
	seedCard(t, db, "card-b", 0, 650, 1.0, true)
	seedReward(t, db, "rw-2", "card-b", "general-retail", 9.0, false, "")

	cached, err := svc.Recommend(ctx, "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Cached Recommend failed: %v", err)
	}
	if len(cached.Recommendations) != 1 {
		t.Fatalf("Expected cached result with 1 recommendation, got %d", len(cached.Recommendations))
	}

	if err := svc.InvalidateCache(ctx); err != nil {
		t.Fatalf("InvalidateCache failed: %v", err)
	}

	fresh, err := svc.Recommend(ctx, "target-id", models.RecommendationFilters{}, inQ2)
	if err != nil {
		t.Fatalf("Fresh Recommend failed: %v", err)
	}
	if len(fresh.Recommendations) != 2 {
		t.Fatalf("Expected 2 recommendations after invalidation, got %d", len(fresh.Recommendations))
	}
	if fresh.Recommendations[0].ID != "card-b" {
		t.Errorf("Expected the 9.0%% card to lead, got %s", fresh.Recommendations[0].ID)
	}
}
