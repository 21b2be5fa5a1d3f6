package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prowhq/billing/internal/domain"
	"github.com/prowhq/billing/pkg/converge"
)

// sessionTTL is how long a hosted checkout session is advertised as valid.
// Advisory only; the gateway enforces its own timeout.
const sessionTTL = 30 * time.Minute

// PaymentService orchestrates gateway interactions: hosted checkout,
// callback reconciliation, token charges, refunds and the audit trail.
type PaymentService struct {
	gateway     converge.Gateway
	payments    PaymentStore
	billing     CustomerStore
	subs        *SubscriptionService
	cipher      TokenCipher
	broadcaster EventBroadcaster

	// strictMatch disables the oldest-pending callback fallback. The
	// fallback can mis-attribute a callback when one organization runs
	// concurrent checkouts; strict mode trades that risk for failing
	// callbacks that carry no invoice number.
	strictMatch bool

	now func() time.Time
}

// NewPaymentService creates a new PaymentService. broadcaster may be nil.
func NewPaymentService(
	gateway converge.Gateway,
	payments PaymentStore,
	billing CustomerStore,
	subs *SubscriptionService,
	cipher TokenCipher,
	broadcaster EventBroadcaster,
	strictMatch bool,
) *PaymentService {
	return &PaymentService{
		gateway:     gateway,
		payments:    payments,
		billing:     billing,
		subs:        subs,
		cipher:      cipher,
		broadcaster: broadcaster,
		strictMatch: strictMatch,
		now:         time.Now,
	}
}

// newInvoiceNumber generates the unique string correlating a checkout
// attempt across the redirect round-trip.
func newInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%d-%s", now.Unix(), strings.ToUpper(uuid.New().String()[:8]))
}

// logEvent appends an audit row and pushes it to live subscribers. Audit
// writes are best-effort: a failed insert is logged, never fatal to the
// payment flow it documents.
func (s *PaymentService) logEvent(ctx context.Context, orgID string, paymentID *string, typ domain.PaymentEventType, payload map[string]any) {
	e := &domain.PaymentEvent{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		PaymentID:      paymentID,
		Type:           typ,
		Payload:        payload,
		CreatedAt:      s.now(),
	}
	if err := s.payments.AppendEvent(ctx, e); err != nil {
		log.Printf("failed to append %s event for org %s: %v", typ, orgID, err)
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(orgID, e)
	}
}

// CreateHostedSession starts a hosted checkout. A pending Payment row is
// written before the user is redirected, so even abandoned checkouts leave
// a record. The returned session token is the invoice number.
func (s *PaymentService) CreateHostedSession(ctx context.Context, orgID string, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	plan, err := s.subs.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	amount := plan.PriceFor(req.BillingInterval)
	if amount <= 0 {
		return nil, domain.ErrBadRequest("free plan does not require checkout")
	}

	customer, err := s.billing.GetOrCreateCustomer(ctx, orgID, req.CustomerEmail, req.CustomerName)
	if err != nil {
		return nil, domain.ErrInternal("failed to create billing customer", err)
	}

	now := s.now()
	invoice := newInvoiceNumber(now)
	payment := &domain.Payment{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		AmountCents:    amount,
		Currency:       "USD",
		Status:         domain.PaymentPending,
		Description:    fmt.Sprintf("%s plan (%s)", plan.Name, req.BillingInterval),
		Metadata: map[string]string{
			domain.MetaInvoiceNumber:   invoice,
			domain.MetaPlanID:          plan.ID,
			domain.MetaBillingInterval: string(req.BillingInterval),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, domain.ErrInternal("failed to record checkout", err)
	}

	s.logEvent(ctx, orgID, &payment.ID, domain.EventCheckoutInitiated, map[string]any{
		"invoiceNumber": invoice,
		"planId":        plan.ID,
		"interval":      string(req.BillingInterval),
		"amountCents":   amount,
		"customerId":    customer.ID,
	})

	hostedURL := s.gateway.HostedPaymentURL(converge.HostedSessionRequest{
		AmountCents:   amount,
		InvoiceNumber: invoice,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		ReturnURL:     req.ReturnURL,
		CancelURL:     req.CancelURL,
	})

	return &domain.CheckoutSession{
		SessionToken:  invoice,
		HostedPageURL: hostedURL,
		ExpiresAt:     now.Add(sessionTTL),
	}, nil
}

// resolveCallbackPayment finds the pending payment a callback belongs to.
// Preferred match is the invoice number embedded in payment metadata; when
// the payload has none (or it matches nothing) the oldest pending payment
// for the organization is assumed, unless strict matching is on.
func (s *PaymentService) resolveCallbackPayment(ctx context.Context, orgID string, payload converge.Fields) (*domain.Payment, error) {
	if invoice := payload.Get("ssl_invoice_number"); invoice != "" {
		payment, err := s.payments.FindPendingByInvoice(ctx, orgID, invoice)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}
	if s.strictMatch {
		return nil, nil
	}
	return s.payments.FindOldestPending(ctx, orgID)
}

// ProcessCallback reconciles a hosted-checkout redirect payload against the
// organization's pending payment. An unmatched callback is reported in the
// result, not raised as an error; there is nothing transient about
// "no such payment" that a retry would fix.
func (s *PaymentService) ProcessCallback(ctx context.Context, orgID string, payload converge.Fields) (*domain.CallbackResult, error) {
	payment, err := s.resolveCallbackPayment(ctx, orgID, payload)
	if err != nil {
		return nil, domain.ErrInternal("failed to resolve callback payment", err)
	}

	// The audit trail captures every callback, matched or not.
	var paymentID *string
	if payment != nil {
		paymentID = &payment.ID
	}
	s.logEvent(ctx, orgID, paymentID, domain.EventCallbackReceived, map[string]any{
		"payload": payload.Encode(),
	})

	if payment == nil {
		return &domain.CallbackResult{Success: false, Error: "Payment not found"}, nil
	}

	if payload.Approved() {
		txnID := payload.Get("ssl_txn_id")
		approval := payload.Get("ssl_approval_code")
		if err := s.payments.MarkCompleted(ctx, payment.ID, txnID, approval); err != nil {
			return nil, domain.ErrInternal("failed to complete payment", err)
		}

		if payload.Get("ssl_token") != "" {
			if err := s.savePaymentToken(ctx, orgID, payload); err != nil {
				// The charge already settled; a token-save problem must
				// not unwind it.
				log.Printf("failed to save payment token for org %s: %v", orgID, err)
			}
		}

		s.logEvent(ctx, orgID, &payment.ID, domain.EventPaymentCompleted, map[string]any{
			"txnId":        txnID,
			"approvalCode": approval,
			"amountCents":  payment.AmountCents,
		})

		s.activateFromMetadata(ctx, orgID, payment)

		return &domain.CallbackResult{Success: true, PaymentID: payment.ID}, nil
	}

	mapping := converge.MapFailure(payload)
	if err := s.payments.MarkFailed(ctx, payment.ID, mapping.User); err != nil {
		return nil, domain.ErrInternal("failed to record payment failure", err)
	}
	s.logEvent(ctx, orgID, &payment.ID, domain.EventPaymentFailed, map[string]any{
		"result":        payload.Get("ssl_result"),
		"resultMessage": payload.Get("ssl_result_message"),
		"internal":      mapping.Internal,
		"userMessage":   mapping.User,
	})

	return &domain.CallbackResult{Success: false, PaymentID: payment.ID, Error: mapping.User}, nil
}

// activateFromMetadata moves the organization onto the plan recorded at
// checkout time. The payment has already settled; an activation failure is
// logged for operator follow-up rather than failing the callback.
func (s *PaymentService) activateFromMetadata(ctx context.Context, orgID string, payment *domain.Payment) {
	planID := payment.Metadata[domain.MetaPlanID]
	if planID == "" {
		return
	}
	interval := domain.BillingInterval(payment.Metadata[domain.MetaBillingInterval])
	if !interval.Valid() {
		interval = domain.IntervalMonthly
	}
	if _, err := s.subs.ActivateSubscription(ctx, orgID, planID, interval); err != nil {
		log.Printf("payment %s completed but subscription activation failed for org %s: %v", payment.ID, orgID, err)
	}
}

// savePaymentToken persists the reusable token a successful callback
// returned. Methods are deduplicated by organization + last-4; a matched
// method gets its token and expiry refreshed in place.
func (s *PaymentService) savePaymentToken(ctx context.Context, orgID string, payload converge.Fields) error {
	customer, err := s.billing.GetOrCreateCustomer(ctx, orgID, payload.Get("ssl_email"), "")
	if err != nil {
		return fmt.Errorf("failed to load billing customer: %w", err)
	}

	encToken, err := s.cipher.Encrypt([]byte(payload.Get("ssl_token")))
	if err != nil {
		return fmt.Errorf("failed to encrypt gateway token: %w", err)
	}

	cardNumber := payload.Get("ssl_card_number")
	brand := strings.ToLower(payload.Get("ssl_card_type"))
	if brand == "" {
		brand = converge.DetectCardBrand(cardNumber)
	}
	expMonth, expYear := parseExpiry(payload.Get("ssl_exp_date"))

	_, err = s.billing.UpsertMethod(ctx, &domain.PaymentMethod{
		OrganizationID:    orgID,
		BillingCustomerID: customer.ID,
		GatewayToken:      encToken,
		CardLast4:         last4(cardNumber),
		CardBrand:         brand,
		ExpMonth:          expMonth,
		ExpYear:           expYear,
	})
	return err
}

// ProcessTokenPayment charges a stored payment method server-to-server.
// Gateway declines come back as a structured result; only transport and
// configuration problems are errors.
func (s *PaymentService) ProcessTokenPayment(ctx context.Context, orgID string, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	method, err := s.billing.GetMethod(ctx, orgID, req.PaymentMethodID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load payment method", err)
	}
	if method == nil {
		return nil, domain.ErrNotFound("payment method not found")
	}

	now := s.now()
	invoice := newInvoiceNumber(now)
	payment := &domain.Payment{
		ID:              uuid.New().String(),
		OrganizationID:  orgID,
		PaymentMethodID: &method.ID,
		AmountCents:     req.AmountCents,
		Currency:        "USD",
		Status:          domain.PaymentProcessing,
		Description:     req.Description,
		Metadata:        map[string]string{domain.MetaInvoiceNumber: invoice},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, domain.ErrInternal("failed to record payment", err)
	}

	s.logEvent(ctx, orgID, &payment.ID, domain.EventTokenPaymentInitiated, map[string]any{
		"paymentMethodId": method.ID,
		"invoiceNumber":   invoice,
		"amountCents":     req.AmountCents,
	})

	token, err := s.cipher.Decrypt(method.GatewayToken)
	if err != nil {
		return nil, s.failWithAPIError(ctx, payment, fmt.Errorf("failed to decrypt gateway token: %w", err))
	}

	fields, err := s.gateway.Sale(ctx, string(token), req.AmountCents, invoice)
	if err != nil {
		return nil, s.failWithAPIError(ctx, payment, err)
	}

	s.logEvent(ctx, orgID, &payment.ID, domain.EventAPIResponse, map[string]any{
		"response": fields.Encode(),
	})

	if fields.Approved() {
		txnID := fields.Get("ssl_txn_id")
		if err := s.payments.MarkCompleted(ctx, payment.ID, txnID, fields.Get("ssl_approval_code")); err != nil {
			return nil, domain.ErrInternal("failed to complete payment", err)
		}
		s.logEvent(ctx, orgID, &payment.ID, domain.EventPaymentCompleted, map[string]any{
			"txnId":       txnID,
			"amountCents": req.AmountCents,
		})
		return &domain.ChargeResult{Success: true, PaymentID: payment.ID, TransactionID: txnID}, nil
	}

	mapping := converge.MapFailure(fields)
	if err := s.payments.MarkFailed(ctx, payment.ID, mapping.User); err != nil {
		return nil, domain.ErrInternal("failed to record payment failure", err)
	}
	s.logEvent(ctx, orgID, &payment.ID, domain.EventPaymentFailed, map[string]any{
		"result":      fields.Get("ssl_result"),
		"internal":    mapping.Internal,
		"userMessage": mapping.User,
	})
	return &domain.ChargeResult{Success: false, PaymentID: payment.ID, Error: mapping.User}, nil
}

// failWithAPIError records a transport/configuration failure: the raw
// detail goes to the payment row and audit log, while the caller gets a
// sanitized payment error that leaks nothing processor-internal.
func (s *PaymentService) failWithAPIError(ctx context.Context, payment *domain.Payment, cause error) error {
	if err := s.payments.MarkFailed(ctx, payment.ID, cause.Error()); err != nil {
		log.Printf("failed to record api error on payment %s: %v", payment.ID, err)
	}
	s.logEvent(ctx, payment.OrganizationID, &payment.ID, domain.EventAPIError, map[string]any{
		"error": cause.Error(),
	})
	return domain.ErrPayment("payment processing failed")
}

// ProcessRefund refunds a settled payment, fully or partially. A requested
// amount above the remaining refundable balance is clamped, never rejected;
// only a zero remaining balance fails.
func (s *PaymentService) ProcessRefund(ctx context.Context, orgID string, req domain.RefundRequest) (*domain.RefundResult, error) {
	payment, err := s.payments.Get(ctx, orgID, req.PaymentID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load payment", err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound("payment not found")
	}
	if !payment.Status.Refundable() {
		return nil, domain.ErrPayment("only completed payments can be refunded")
	}
	if payment.GatewayTxnID == "" {
		return nil, domain.ErrPayment("payment has no gateway transaction to refund")
	}

	// The clamp works from a balance read before the gateway call, so two
	// concurrent refunds of the same payment can both reach the gateway.
	// The ledger write below is what holds the refunded <= amount invariant:
	// AddRefund is a single UPDATE backed by a CHECK constraint, so the
	// loser's write fails and its gateway credit surfaces in reconciliation
	// instead of over-crediting the ledger.
	remaining := payment.AmountCents - payment.RefundedAmountCents
	if remaining <= 0 {
		return nil, domain.ErrPayment("payment is already fully refunded")
	}
	amount := req.AmountCents
	if amount <= 0 || amount > remaining {
		amount = remaining
	}

	s.logEvent(ctx, orgID, &payment.ID, domain.EventRefundInitiated, map[string]any{
		"txnId":       payment.GatewayTxnID,
		"amountCents": amount,
	})

	fields, err := s.gateway.Refund(ctx, payment.GatewayTxnID, amount)
	if err != nil {
		s.logEvent(ctx, orgID, &payment.ID, domain.EventRefundError, map[string]any{
			"error": err.Error(),
		})
		return nil, domain.ErrPayment("refund processing failed")
	}

	s.logEvent(ctx, orgID, &payment.ID, domain.EventAPIResponse, map[string]any{
		"response": fields.Encode(),
	})

	if !fields.Approved() {
		mapping := converge.MapFailure(fields)
		s.logEvent(ctx, orgID, &payment.ID, domain.EventRefundFailed, map[string]any{
			"result":      fields.Get("ssl_result"),
			"internal":    mapping.Internal,
			"userMessage": mapping.User,
		})
		return &domain.RefundResult{
			Success:             false,
			PaymentID:           payment.ID,
			RefundedAmountCents: payment.RefundedAmountCents,
			Status:              payment.Status,
			Error:               mapping.User,
		}, nil
	}

	updated, err := s.payments.AddRefund(ctx, payment.ID, amount)
	if err != nil {
		return nil, domain.ErrInternal("failed to record refund", err)
	}
	s.logEvent(ctx, orgID, &payment.ID, domain.EventRefundCompleted, map[string]any{
		"amountCents":         amount,
		"refundedAmountCents": updated.RefundedAmountCents,
		"status":              string(updated.Status),
	})

	return &domain.RefundResult{
		Success:             true,
		PaymentID:           updated.ID,
		RefundedAmountCents: updated.RefundedAmountCents,
		Status:              updated.Status,
	}, nil
}

// ListPayments returns the organization's payment history, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, orgID string, page, pageSize int) ([]domain.Payment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.payments.ListByOrg(ctx, orgID, pageSize, (page-1)*pageSize)
}

// GetPaymentEvents returns a payment's audit trail oldest first.
func (s *PaymentService) GetPaymentEvents(ctx context.Context, orgID, paymentID string) ([]domain.PaymentEvent, error) {
	payment, err := s.payments.Get(ctx, orgID, paymentID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load payment", err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound("payment not found")
	}
	events, err := s.payments.ListEventsByPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load payment events", err)
	}
	return events, nil
}

// ExpireStalePendingPayments fails pending payments older than maxAge and
// records an expiry event for each. Invoked by operators, not a timer.
func (s *PaymentService) ExpireStalePendingPayments(ctx context.Context, maxAge time.Duration) (int, error) {
	expired, err := s.payments.ExpireStalePending(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, domain.ErrInternal("failed to expire pending payments", err)
	}
	for i := range expired {
		p := &expired[i]
		s.logEvent(ctx, p.OrganizationID, &p.ID, domain.EventPaymentExpired, map[string]any{
			"invoiceNumber": p.Metadata[domain.MetaInvoiceNumber],
			"ageLimit":      maxAge.String(),
		})
	}
	return len(expired), nil
}

// parseExpiry reads the gateway's MM/YY expiry format (MMYY tolerated).
func parseExpiry(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	var monthStr, yearStr string
	if strings.Contains(raw, "/") {
		parts := strings.SplitN(raw, "/", 2)
		monthStr, yearStr = parts[0], parts[1]
	} else if len(raw) == 4 {
		monthStr, yearStr = raw[:2], raw[2:]
	} else {
		return 0, 0
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return 0, 0
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, 0
	}
	if year < 100 {
		year += 2000
	}
	return month, year
}

// last4 returns the final four digits of a (possibly masked) card number.
func last4(cardNumber string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cardNumber)
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
