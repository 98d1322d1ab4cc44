// Package events is a small in-process pub/sub used to react to catalog
// changes and to observe the recommendation path without coupling the
// engine to its consumers.
package events

import (
	"context"
	"sync"
	"time"

	"card-rewards-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCatalogUpdated is emitted when a curation write lands
	// (card, category, merchant, or reward upsert).
	EventCatalogUpdated EventType = "catalog.updated"
	// EventRecommendationServed is emitted when recommendations are
	// computed for a merchant.
	EventRecommendationServed EventType = "recommendation.served"
	// EventCardSaved is emitted when a user saves or unsaves a card.
	EventCardSaved EventType = "card.saved"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CatalogUpdatedData carries what kind of record changed.
type CatalogUpdatedData struct {
	Kind string // "card", "category", "merchant", "reward"
	ID   string
}

// RecommendationServedData carries the served result summary.
type RecommendationServedData struct {
	MerchantID string
	Quarter    string
	Results    []models.CardRecommendation
	ServedAt   time.Time
}

// CardSavedData carries a saved-card change.
type CardSavedData struct {
	UserID string
	CardID string
	Saved  bool
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously; a failing handler never blocks the request path.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			_ = h(ctx, event)
		}(handler)
	}
}

// PublishCatalogUpdated publishes a catalog change event.
func (m *Manager) PublishCatalogUpdated(ctx context.Context, kind, id string) {
	m.Publish(ctx, EventCatalogUpdated, CatalogUpdatedData{Kind: kind, ID: id})
}

// PublishRecommendationServed publishes a served-recommendation event.
func (m *Manager) PublishRecommendationServed(ctx context.Context, merchantID, quarter string, results []models.CardRecommendation) {
	m.Publish(ctx, EventRecommendationServed, RecommendationServedData{
		MerchantID: merchantID,
		Quarter:    quarter,
		Results:    results,
		ServedAt:   time.Now(),
	})
}

// PublishCardSaved publishes a saved-card change event.
func (m *Manager) PublishCardSaved(ctx context.Context, userID, cardID string, saved bool) {
	m.Publish(ctx, EventCardSaved, CardSavedData{UserID: userID, CardID: cardID, Saved: saved})
}

// Shutdown drops all handlers and stops publishing.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
