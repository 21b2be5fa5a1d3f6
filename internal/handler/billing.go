package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prowhq/billing/internal/domain"
	"github.com/prowhq/billing/internal/service"
	"github.com/prowhq/billing/pkg/converge"
)

// BillingHandler handles checkout, callback, charge, refund and
// payment-method endpoints.
type BillingHandler struct {
	payments *service.PaymentService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(payments *service.PaymentService) *BillingHandler {
	return &BillingHandler{payments: payments}
}

// Checkout handles POST /api/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		Error(w, err)
		return
	}

	session, err := h.payments.CreateHostedSession(r.Context(), orgID, req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// Callback handles GET/POST /api/billing/callback: the front end relays the
// gateway's redirect parameters here after the hosted page returns.
func (h *BillingHandler) Callback(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := r.ParseForm(); err != nil {
		Error(w, domain.ErrBadRequest("invalid callback payload"))
		return
	}
	payload := make(converge.Fields, len(r.Form))
	for key := range r.Form {
		payload[key] = r.Form.Get(key)
	}

	result, err := h.payments.ProcessCallback(r.Context(), orgID, payload)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// Charge handles POST /api/billing/charge: a server-to-server charge
// against a stored payment method.
func (h *BillingHandler) Charge(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.ChargeRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		Error(w, err)
		return
	}

	result, err := h.payments.ProcessTokenPayment(r.Context(), orgID, req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// Refund handles POST /api/admin/billing/refund.
func (h *BillingHandler) Refund(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req domain.RefundRequest
	if err := DecodeAndValidate(r, &req); err != nil {
		Error(w, err)
		return
	}

	result, err := h.payments.ProcessRefund(r.Context(), orgID, req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// ListPayments handles GET /api/billing/payments?page=&pageSize=.
func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	payments, total, err := h.payments.ListPayments(r.Context(), orgID, page, pageSize)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"total":    total,
	})
}

// PaymentEvents handles GET /api/billing/payments/{id}/events: the audit
// trail for one payment.
func (h *BillingHandler) PaymentEvents(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	events, err := h.payments.GetPaymentEvents(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, events)
}

// ListPaymentMethods handles GET /api/billing/payment-methods.
func (h *BillingHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	methods, err := h.payments.ListPaymentMethods(r.Context(), orgID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, methods)
}

// SetDefaultPaymentMethod handles POST /api/billing/payment-methods/{id}/default.
func (h *BillingHandler) SetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.payments.SetDefaultPaymentMethod(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeletePaymentMethod handles DELETE /api/billing/payment-methods/{id}.
func (h *BillingHandler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	orgID, ok := orgFromContext(r)
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.payments.DeletePaymentMethod(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ExpirePending handles POST /api/admin/billing/expire-pending. Pending
// checkouts older than maxAgeHours (default 24) are failed.
func (h *BillingHandler) ExpirePending(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxAgeHours int `json:"maxAgeHours"`
	}
	// Empty body means the default window.
	_ = DecodeJSON(r, &req)
	if req.MaxAgeHours <= 0 {
		req.MaxAgeHours = 24
	}

	count, err := h.payments.ExpireStalePendingPayments(r.Context(), time.Duration(req.MaxAgeHours)*time.Hour)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]int{"expired": count})
}
