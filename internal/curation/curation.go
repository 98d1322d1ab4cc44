// Package curation is the administrative write side of the catalog:
// upserting cards, categories, merchants and reward rows, and managing
// users' saved cards. The recommendation engine never writes.
package curation

import (
	"context"
	"errors"
	"fmt"

	"card-rewards-api/internal/catalog"
	"card-rewards-api/internal/events"
	"card-rewards-api/internal/models"
	"card-rewards-api/internal/validation"
)

// ErrReferenceNotFound means a write referenced a record that does not
// exist (e.g. a merchant pointing at an unknown category).
var ErrReferenceNotFound = errors.New("referenced record not found")

// IsClientError reports whether a curation failure was caused by the
// request rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReferenceNotFound)
}

// Service validates and persists catalog writes, publishing an event
// for each one so caches can be invalidated.
type Service struct {
	db     *catalog.DB
	events *events.Manager
}

// NewService creates a curation service. The event manager may be nil.
func NewService(db *catalog.DB, ev *events.Manager) *Service {
	return &Service{db: db, events: ev}
}

// UpsertCard creates or updates a credit card.
func (s *Service) UpsertCard(ctx context.Context, card models.CreditCard) error {
	if err := validation.ValidateCard(card); err != nil {
		return err
	}

	if err := s.db.UpsertCard(ctx, card); err != nil {
		return err
	}

	s.publishUpdate(ctx, "card", card.ID)
	return nil
}

// UpsertCategory creates or updates a merchant category.
func (s *Service) UpsertCategory(ctx context.Context, category models.MerchantCategory) error {
	if err := validation.ValidateCategory(category); err != nil {
		return err
	}

	if err := s.db.UpsertCategory(ctx, category); err != nil {
		return err
	}

	s.publishUpdate(ctx, "category", category.ID)
	return nil
}

// UpsertMerchant creates or updates a merchant. The referenced category
// must already exist; a merchant pointing at an unknown category would
// poison every recommendation request for it.
func (s *Service) UpsertMerchant(ctx context.Context, merchant models.Merchant) error {
	if err := validation.ValidateMerchant(merchant); err != nil {
		return err
	}

	category, err := s.db.GetCategory(ctx, merchant.CategoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("%w: category %q", ErrReferenceNotFound, merchant.CategoryID)
	}

	if err := s.db.UpsertMerchant(ctx, merchant); err != nil {
		return err
	}

	s.publishUpdate(ctx, "merchant", merchant.ID)
	return nil
}

// UpsertReward creates or updates a card-category reward row.
func (s *Service) UpsertReward(ctx context.Context, reward models.CardCategoryReward) error {
	if err := validation.ValidateReward(reward); err != nil {
		return err
	}

	if err := s.db.UpsertReward(ctx, reward); err != nil {
		return err
	}

	s.publishUpdate(ctx, "reward", reward.ID)
	return nil
}

// SaveCard records a saved card for a user. The card must exist.
func (s *Service) SaveCard(ctx context.Context, userID, cardID string) error {
	if err := validation.ValidateID(userID, "user_id"); err != nil {
		return err
	}
	if err := validation.ValidateID(cardID, "card_id"); err != nil {
		return err
	}

	card, err := s.db.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("%w: card %q", ErrReferenceNotFound, cardID)
	}

	if err := s.db.SaveCard(ctx, userID, cardID); err != nil {
		return err
	}

	if s.events != nil {
		s.events.PublishCardSaved(ctx, userID, cardID, true)
	}
	return nil
}

// UnsaveCard removes a saved card for a user.
func (s *Service) UnsaveCard(ctx context.Context, userID, cardID string) error {
	if err := validation.ValidateID(userID, "user_id"); err != nil {
		return err
	}
	if err := validation.ValidateID(cardID, "card_id"); err != nil {
		return err
	}

	if err := s.db.UnsaveCard(ctx, userID, cardID); err != nil {
		return err
	}

	if s.events != nil {
		s.events.PublishCardSaved(ctx, userID, cardID, false)
	}
	return nil
}

// GetSavedCardIDs returns the card ids a user has saved.
func (s *Service) GetSavedCardIDs(ctx context.Context, userID string) ([]string, error) {
	if err := validation.ValidateID(userID, "user_id"); err != nil {
		return nil, err
	}

	return s.db.GetSavedCardIDs(ctx, userID)
}

func (s *Service) publishUpdate(ctx context.Context, kind, id string) {
	if s.events != nil {
		s.events.PublishCatalogUpdated(ctx, kind, id)
	}
}
