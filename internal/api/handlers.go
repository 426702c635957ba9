/**
 * @description
 * This file contains the HTTP handlers for the economy-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the guardrail logic.
 *
 * @dependencies
 * - encoding/json, log, net/http, time: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yield/economy-service/internal/app"
	"github.com/yield/economy-service/internal/domain"
	"github.com/yield/economy-service/internal/store"
)

// EconomyHandlers holds the application service that handlers will use.
type EconomyHandlers struct {
	service *app.Service
}

// NewEconomyHandlers creates a new instance of EconomyHandlers.
func NewEconomyHandlers(service *app.Service) *EconomyHandlers {
	return &EconomyHandlers{service: service}
}

// awardResponse is sent back after an award calculation or persistence. The
// explanation trail is always included so the client can show the user why an
// award was reduced or refused.
type awardResponse struct {
	AwardedPoints  int64    `json:"awarded_points"`
	OriginalPoints int64    `json:"original_points"`
	LimitedBy      []string `json:"limited_by"`
	Explanation    []string `json:"explanation"`
	TransactionID  *string  `json:"transaction_id,omitempty"`
}

func buildAwardResponse(award *domain.PointAward, record *domain.PointTransaction) awardResponse {
	resp := awardResponse{
		AwardedPoints:  award.AwardedPoints,
		OriginalPoints: award.OriginalPoints,
		LimitedBy:      award.LimitedBy,
		Explanation:    award.Explanation,
	}
	if resp.LimitedBy == nil {
		resp.LimitedBy = []string{}
	}
	if resp.Explanation == nil {
		resp.Explanation = []string{}
	}
	if record != nil {
		id := record.ID.String()
		resp.TransactionID = &id
	}
	return resp
}

// authenticatedUserID resolves the JWT subject placed in the context by the
// auth middleware.
func authenticatedUserID(r *http.Request) (uuid.UUID, bool) {
	subject, ok := GetAuthUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// GetEarningStatsHandler returns the authenticated user's view of their daily
// earning capacity. Users can only read their own stats.
func (h *EconomyHandlers) GetEarningStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID.")
		return
	}

	authUserID, ok := authenticatedUserID(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authenticated user could not be resolved.")
		return
	}
	if userID != authUserID {
		h.writeError(w, http.StatusForbidden, "You can only view your own earning stats.")
		return
	}

	stats, err := h.service.GetUserDailyEarningStats(r.Context(), userID, time.Now().UTC())
	if err != nil {
		log.Printf("level=error component=api msg=\"earning stats lookup failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute earning stats.")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// GetCampaignBudgetHandler returns the derived budget view for a campaign.
func (h *EconomyHandlers) GetCampaignBudgetHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid campaign ID.")
		return
	}

	info, err := h.service.GetCampaignBudgetInfo(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, store.ErrCampaignNotFound) {
			h.writeError(w, http.StatusNotFound, "Campaign not found.")
			return
		}
		log.Printf("level=error component=api msg=\"campaign budget lookup failed\" campaign_id=%s err=%v", campaignID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute campaign budget.")
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// bindAwardRequestUser forces an award request onto the authenticated subject.
// A body naming a different user is rejected rather than silently rewritten.
func (h *EconomyHandlers) bindAwardRequestUser(w http.ResponseWriter, r *http.Request, req *domain.AwardRequest) bool {
	authUserID, ok := authenticatedUserID(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authenticated user could not be resolved.")
		return false
	}
	if req.UserID != uuid.Nil && req.UserID != authUserID {
		h.writeError(w, http.StatusForbidden, "Awards can only target the authenticated user.")
		return false
	}
	req.UserID = authUserID
	return true
}

// PreviewAwardHandler runs the award calculator without persisting anything.
func (h *EconomyHandlers) PreviewAwardHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !h.bindAwardRequestUser(w, r, &req) {
		return
	}

	award, err := h.service.CalculateSafePointAward(r.Context(), req.UserID, req.CampaignID, req.BasePoints, req.QualityScore, time.Now().UTC())
	if err != nil {
		h.writeAwardError(w, req, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildAwardResponse(award, nil))
}

// CreateAwardHandler runs the award calculator and persists the result through
// the atomic spend path.
func (h *EconomyHandlers) CreateAwardHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.AwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !h.bindAwardRequestUser(w, r, &req) {
		return
	}

	award, record, err := h.service.AwardPoints(r.Context(), req, time.Now().UTC())
	if err != nil {
		h.writeAwardError(w, req, err)
		return
	}

	status := http.StatusCreated
	if record == nil {
		// Hard-stopped: nothing was persisted, but the explanation is still
		// meaningful to the caller.
		status = http.StatusOK
	}
	h.writeJSON(w, status, buildAwardResponse(award, record))
}

func (h *EconomyHandlers) writeAwardError(w http.ResponseWriter, req domain.AwardRequest, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidBasePoints):
		h.writeError(w, http.StatusBadRequest, "Base points must be positive.")
	case errors.Is(err, app.ErrInvalidQualityScore):
		h.writeError(w, http.StatusBadRequest, "Quality score must be between 0 and 100.")
	case errors.Is(err, app.ErrAwardRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many award requests. Please slow down.")
	case errors.Is(err, store.ErrCampaignNotFound):
		h.writeError(w, http.StatusNotFound, "Campaign not found.")
	default:
		log.Printf("level=error component=api msg=\"award failed\" user_id=%s campaign_id=%s err=%v", req.UserID, req.CampaignID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to process award.")
	}
}

// ManualAdjustmentHandler records an operator-initiated ledger adjustment.
// Internal-key only; the adjustment bypasses award gates but never earning caps
// (the "other" transaction type sits outside them).
func (h *EconomyHandlers) ManualAdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      uuid.UUID `json:"user_id"`
		Points      int64     `json:"points"`
		Description string    `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID.")
		return
	}

	record, err := h.service.RecordManualAdjustment(r.Context(), req.UserID, req.Points, req.Description)
	if err != nil {
		if errors.Is(err, app.ErrInvalidAdjustmentValue) {
			h.writeError(w, http.StatusBadRequest, "Adjustment points must be non-zero.")
			return
		}
		log.Printf("level=error component=api msg=\"manual adjustment failed\" user_id=%s err=%v", req.UserID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to record adjustment.")
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// PlatformOverviewHandler returns platform-wide payout aggregates for the
// admin dashboard.
func (h *EconomyHandlers) PlatformOverviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetPlatformEconomicOverview(r.Context(), time.Now().UTC())
	if err != nil {
		log.Printf("level=error component=api msg=\"platform overview failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute platform overview.")
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}

// EmergencyControlHandler applies the emergency budget control to a campaign.
func (h *EconomyHandlers) EmergencyControlHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid campaign ID.")
		return
	}

	paused, err := h.service.EmergencyBudgetControl(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, store.ErrCampaignNotFound) {
			h.writeError(w, http.StatusNotFound, "Campaign not found.")
			return
		}
		log.Printf("level=error component=api msg=\"emergency control failed\" campaign_id=%s err=%v", campaignID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to apply emergency budget control.")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

// SweepHandler applies the emergency budget control across all active campaigns.
func (h *EconomyHandlers) SweepHandler(w http.ResponseWriter, r *http.Request) {
	paused, err := h.service.SweepOverBudgetCampaigns(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"budget sweep failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to sweep campaign budgets.")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"paused_campaigns": paused})
}

// writeJSON is a helper for writing JSON responses.
func (h *EconomyHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *EconomyHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
