package handler

import (
	"net/http"

	"github.com/prowhq/billing/internal/contextkeys"
	"github.com/prowhq/billing/internal/domain"
	"github.com/prowhq/billing/internal/service"
)

// SubscriptionHandler handles subscription-lifecycle endpoints.
type SubscriptionHandler struct {
	subs *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subs *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

func orgFromContext(r *http.Request) (string, bool) {
	orgID, ok := r.Context().Value(contextkeys.OrgID).(string)
	return orgID, ok && orgID != ""
}

// Get handles GET /api/billing/subscription.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	sub, err := h.subs.GetOrganizationSubscription(r.Context(), orgID)
	if err != nil {
		Error(w, err)
		return
	}
	if sub == nil {
		// No subscription yet is a normal state for fresh organizations.
		JSON(w, http.StatusOK, map[string]interface{}{"status": "none"})
		return
	}
	JSON(w, http.StatusOK, sub)
}

// CreateFree handles POST /api/billing/subscription/free, placing a newly
// provisioned organization on the free plan.
func (h *SubscriptionHandler) CreateFree(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	sub, err := h.subs.CreateFreeSubscription(r.Context(), orgID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, sub)
}

// Cancel handles POST /api/billing/subscription/cancel.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CancelSubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	sub, err := h.subs.CancelSubscription(r.Context(), orgID, req.Immediate)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}
