package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"card-rewards-api/internal/curation"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/models"
	"card-rewards-api/internal/recommend"
	"card-rewards-api/internal/saved"
	"card-rewards-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	recommender *recommend.Service
	curator     *curation.Service
	savedLookup saved.Lookup
	features    *features.Manager
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	SavedLookup saved.Lookup
	Features    *features.Manager
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(recommender *recommend.Service, curator *curation.Service) *Handler {
	return NewHandlerWithOptions(recommender, curator, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(recommender *recommend.Service, curator *curation.Service, opts NewHandlerOptions) *Handler {
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultHandlerOptions().MaxBodySize
	}

	savedLookup := opts.SavedLookup
	if savedLookup == nil && curator != nil {
		savedLookup = curator
	}

	return &Handler{
		recommender: recommender,
		curator:     curator,
		savedLookup: savedLookup,
		features:    opts.Features,
		maxBodySize: maxBody,
	}
}

// GetRecommendations handles GET /merchants/{merchant_id}/recommendations.
//
// Optional query parameters: max_annual_fee (non-negative ceiling,
// inclusive), max_credit_score (the user's score, inclusive ceiling),
// now (RFC3339, defaults to the current time), user_id (annotates
// results with the is_saved flag).
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	merchantID := validation.SanitizeString(chi.URLParam(r, "merchant_id"))
	if merchantID == "" {
		h.respondError(w, http.StatusBadRequest, "merchant_id is required")
		return
	}

	var filters models.RecommendationFilters
	if raw := r.URL.Query().Get("max_annual_fee"); raw != "" {
		fee, err := strconv.Atoi(raw)
		if err != nil || fee < 0 {
			h.respondError(w, http.StatusBadRequest, "max_annual_fee must be a non-negative integer")
			return
		}
		filters.MaxAnnualFee = &fee
	}
	if raw := r.URL.Query().Get("max_credit_score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil || score < 0 {
			h.respondError(w, http.StatusBadRequest, "max_credit_score must be a non-negative integer")
			return
		}
		filters.MaxCreditScore = &score
	}

	now := time.Now().UTC()
	if raw := r.URL.Query().Get("now"); raw != "" {
		parsed, err := validation.ValidateTimeString(validation.SanitizeString(raw))
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'now' parameter, must be RFC3339 format")
			return
		}
		now = parsed.UTC()
	}

	response, err := h.recommender.Recommend(r.Context(), merchantID, filters, now)
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrMerchantNotFound):
			h.respondError(w, http.StatusNotFound, "merchant not found")
		case errors.Is(err, recommend.ErrCatalogInconsistent):
			log.Printf("catalog inconsistency serving merchant %s: %v", merchantID, err)
			h.respondError(w, http.StatusInternalServerError, "catalog inconsistency")
		default:
			log.Printf("recommendation failed for merchant %s: %v", merchantID, err)
			h.respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if userID := validation.SanitizeString(r.URL.Query().Get("user_id")); userID != "" && h.savedDecorationEnabled() {
		saved.Annotate(r.Context(), h.savedLookup, userID, response.Recommendations)
	}

	h.respondJSON(w, http.StatusOK, response)
}

// CreateCard handles POST /cards.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var card models.CreditCard
	if !h.decodeBody(w, r, &card) {
		return
	}

	card.ID = validation.SanitizeString(card.ID)
	card.Name = validation.SanitizeString(card.Name)
	card.Issuer = validation.SanitizeString(card.Issuer)

	if err := h.curator.UpsertCard(r.Context(), card); err != nil {
		h.respondCurationError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, card)
}

// CreateCategory handles POST /categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var category models.MerchantCategory
	if !h.decodeBody(w, r, &category) {
		return
	}

	category.ID = validation.SanitizeString(category.ID)
	category.Name = validation.SanitizeString(category.Name)

	if err := h.curator.UpsertCategory(r.Context(), category); err != nil {
		h.respondCurationError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, category)
}

// CreateMerchant handles POST /merchants.
func (h *Handler) CreateMerchant(w http.ResponseWriter, r *http.Request) {
	var merchant models.Merchant
	if !h.decodeBody(w, r, &merchant) {
		return
	}

	merchant.ID = validation.SanitizeString(merchant.ID)
	merchant.Name = validation.SanitizeString(merchant.Name)
	merchant.CategoryID = validation.SanitizeString(merchant.CategoryID)

	if err := h.curator.UpsertMerchant(r.Context(), merchant); err != nil {
		h.respondCurationError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, merchant)
}

// CreateReward handles POST /rewards.
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var reward models.CardCategoryReward
	if !h.decodeBody(w, r, &reward) {
		return
	}

	reward.ID = validation.SanitizeString(reward.ID)
	reward.CardID = validation.SanitizeString(reward.CardID)
	reward.CategoryID = validation.SanitizeString(reward.CategoryID)
	reward.RotationPeriod = validation.SanitizeString(reward.RotationPeriod)

	if err := h.curator.UpsertReward(r.Context(), reward); err != nil {
		h.respondCurationError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, reward)
}

// SaveCard handles PUT /users/{user_id}/saved-cards/{card_id}.
func (h *Handler) SaveCard(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))
	cardID := validation.SanitizeString(chi.URLParam(r, "card_id"))

	if err := h.curator.SaveCard(r.Context(), userID, cardID); err != nil {
		h.respondCurationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnsaveCard handles DELETE /users/{user_id}/saved-cards/{card_id}.
func (h *Handler) UnsaveCard(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))
	cardID := validation.SanitizeString(chi.URLParam(r, "card_id"))

	if err := h.curator.UnsaveCard(r.Context(), userID, cardID); err != nil {
		h.respondCurationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSavedCards handles GET /users/{user_id}/saved-cards.
func (h *Handler) GetSavedCards(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	ids, err := h.curator.GetSavedCardIDs(r.Context(), userID)
	if err != nil {
		h.respondCurationError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	h.respondJSON(w, http.StatusOK, models.SavedCardsResponse{UserID: userID, CardIDs: ids})
}

func (h *Handler) savedDecorationEnabled() bool {
	return h.features == nil || h.features.IsEnabled(features.FeatureSavedCardDecoration)
}

// decodeBody decodes a size-limited JSON request body into dest,
// answering the request itself on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}

	return true
}

// respondCurationError maps curation failures: validation problems are
// the client's fault, anything else is a server fault.
func (h *Handler) respondCurationError(w http.ResponseWriter, err error) {
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if curation.IsClientError(err) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("curation write failed: %v", err)
	h.respondError(w, http.StatusInternalServerError, "internal error")
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
