package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prowhq/billing/internal/domain"
	"github.com/prowhq/billing/pkg/converge"
)

type paymentFixture struct {
	svc      *PaymentService
	subSvc   *SubscriptionService
	gateway  *fakeGateway
	payments *fakePaymentStore
	billing  *fakeCustomerStore
	subs     *fakeSubscriptionStore
	cast     *captureBroadcaster
	fixed    time.Time
}

func newPaymentFixture(t *testing.T, strict bool) *paymentFixture {
	t.Helper()
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	subs := newFakeSubscriptionStore()
	subSvc := NewSubscriptionService(subs, newFakePlanStore())
	subSvc.now = func() time.Time { return fixed }

	gateway := &fakeGateway{}
	payments := newFakePaymentStore()
	billing := newFakeCustomerStore()
	cast := &captureBroadcaster{}

	svc := NewPaymentService(gateway, payments, billing, subSvc, plainCipher{}, cast, strict)
	svc.now = func() time.Time { return fixed }

	return &paymentFixture{
		svc: svc, subSvc: subSvc, gateway: gateway, payments: payments,
		billing: billing, subs: subs, cast: cast, fixed: fixed,
	}
}

func checkoutRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		PlanID:          "starter",
		BillingInterval: domain.IntervalMonthly,
		CustomerEmail:   "ops@acme.test",
		CustomerName:    "Ada Lovelace",
		ReturnURL:       "https://app.example.test/return",
		CancelURL:       "https://app.example.test/cancel",
	}
}

func (fx *paymentFixture) startCheckout(t *testing.T, orgID string) *domain.Payment {
	t.Helper()
	session, err := fx.svc.CreateHostedSession(context.Background(), orgID, checkoutRequest())
	if err != nil {
		t.Fatalf("CreateHostedSession: %v", err)
	}
	p, err := fx.payments.FindPendingByInvoice(context.Background(), orgID, session.SessionToken)
	if err != nil || p == nil {
		t.Fatalf("pending payment not recorded for invoice %s", session.SessionToken)
	}
	return p
}

func TestCreateHostedSession(t *testing.T) {
	fx := newPaymentFixture(t, false)
	ctx := context.Background()

	session, err := fx.svc.CreateHostedSession(ctx, "org-1", checkoutRequest())
	if err != nil {
		t.Fatalf("CreateHostedSession: %v", err)
	}

	if session.SessionToken == "" || !strings.HasPrefix(session.SessionToken, "INV-") {
		t.Errorf("session token = %q", session.SessionToken)
	}
	if !strings.Contains(session.HostedPageURL, "29.00") {
		t.Errorf("hosted URL missing formatted amount: %s", session.HostedPageURL)
	}
	if !session.ExpiresAt.Equal(fx.fixed.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", session.ExpiresAt)
	}

	p, _ := fx.payments.FindPendingByInvoice(ctx, "org-1", session.SessionToken)
	if p == nil {
		t.Fatal("pending payment not recorded")
	}
	if p.AmountCents != 2900 {
		t.Errorf("amount = %d, want 2900", p.AmountCents)
	}
	if p.Metadata[domain.MetaPlanID] != "starter" {
		t.Errorf("planId metadata = %q", p.Metadata[domain.MetaPlanID])
	}

	types := fx.payments.eventTypes()
	if len(types) != 1 || types[0] != domain.EventCheckoutInitiated {
		t.Errorf("events = %v", types)
	}

	t.Run("free plan rejected", func(t *testing.T) {
		req := checkoutRequest()
		req.PlanID = "free"
		if _, err := fx.svc.CreateHostedSession(ctx, "org-1", req); err == nil {
			t.Fatal("expected error for free plan checkout")
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		req := checkoutRequest()
		req.PlanID = "gold"
		_, err := fx.svc.CreateHostedSession(ctx, "org-1", req)
		if !domain.IsNotFound(err) {
			t.Fatalf("got %v, want not found", err)
		}
	})
}

func TestProcessCallbackApproved(t *testing.T) {
	fx := newPaymentFixture(t, false)
	ctx := context.Background()
	p := fx.startCheckout(t, "org-1")

	result, err := fx.svc.ProcessCallback(ctx, "org-1", converge.Fields{
		"ssl_result":        "0",
		"ssl_txn_id":        "TXN1",
		"ssl_approval_code": "OK42",
		"ssl_invoice_number": p.Metadata[domain.MetaInvoiceNumber],
		"ssl_token":          "tok_99",
		"ssl_card_number":    "************1111",
		"ssl_card_type":      "VISA",
		"ssl_exp_date":       "12/28",
		"ssl_email":          "ops@acme.test",
	})
	if err != nil {
		t.Fatalf("ProcessCallback: %v", err)
	}
	if !result.Success || result.PaymentID != p.ID {
		t.Fatalf("result = %+v", result)
	}

	stored, _ := fx.payments.Get(ctx, "org-1", p.ID)
	if stored.Status != domain.PaymentCompleted {
		t.Errorf("status = %q, want completed", stored.Status)
	}
	if stored.GatewayTxnID != "TXN1" || stored.ApprovalCode != "OK42" {
		t.Errorf("txn/approval = %q/%q", stored.GatewayTxnID, stored.ApprovalCode)
	}

	// Subscription activated from checkout metadata.
	sub, _ := fx.subs.FindByOrg(ctx, "org-1")
	if sub == nil || sub.PlanID != "starter" || sub.Status != domain.SubscriptionActive {
		t.Fatalf("subscription not activated: %+v", sub)
	}

	// Token stored encrypted, brand normalized, first method is default.
	methods, _ := fx.billing.ListMethods(ctx, "org-1")
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
	m := methods[0]
	if m.GatewayToken == "tok_99" {
		t.Error("gateway token stored in plaintext")
	}
	plain, err := plainCipher{}.Decrypt(m.GatewayToken)
	if err != nil || string(plain) != "tok_99" {
		t.Errorf("stored token does not decrypt to original: %q %v", plain, err)
	}
	if m.CardLast4 != "1111" || m.CardBrand != "visa" {
		t.Errorf("last4/brand = %q/%q", m.CardLast4, m.CardBrand)
	}
	if m.ExpMonth != 12 || m.ExpYear != 2028 {
		t.Errorf("expiry = %d/%d", m.ExpMonth, m.ExpYear)
	}
	if !m.IsDefault {
		t.Error("first saved method should be default")
	}

	types := fx.payments.eventTypes()
	want := []domain.PaymentEventType{
		domain.EventCheckoutInitiated,
		domain.EventCallbackReceived,
		domain.EventPaymentCompleted,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, types[i], want[i])
		}
	}
	if len(fx.cast.events) != len(want) {
		t.Errorf("broadcast %d events, want %d", len(fx.cast.events), len(want))
	}

	// The per-payment audit trail exposes the same sequence.
	events, err := fx.svc.GetPaymentEvents(ctx, "org-1", p.ID)
	if err != nil {
		t.Fatalf("GetPaymentEvents: %v", err)
	}
	if len(events) != len(want) {
		t.Errorf("audit trail has %d events, want %d", len(events), len(want))
	}
	if _, err := fx.svc.GetPaymentEvents(ctx, "org-other", p.ID); !domain.IsNotFound(err) {
		t.Errorf("cross-org audit read: got %v, want not found", err)
	}
}

func TestProcessCallbackDeclined(t *testing.T) {
	fx := newPaymentFixture(t, false)
	ctx := context.Background()
	p := fx.startCheckout(t, "org-1")

	result, err := fx.svc.ProcessCallback(ctx, "org-1", converge.Fields{
		"ssl_result":         "05",
		"ssl_result_message": "DECLINED ISSUER CODE XYZ",
		"ssl_invoice_number": p.Metadata[domain.MetaInvoiceNumber],
	})
	if err != nil {
		t.Fatalf("ProcessCallback: %v", err)
	}
	if result.Success {
		t.Fatal("decline reported as success")
	}
	// Raw gateway text never reaches the user.
	if strings.Contains(result.Error, "XYZ") {
		t.Errorf("raw gateway message leaked: %q", result.Error)
	}
	if !strings.Contains(result.Error, "declined") {
		t.Errorf("error = %q", result.Error)
	}

	stored, _ := fx.payments.Get(ctx, "org-1", p.ID)
	if stored.Status != domain.PaymentFailed {
		t.Errorf("status = %q, want failed", stored.Status)
	}
	if stored.FailureReason != result.Error {
		t.Errorf("failure reason = %q", stored.FailureReason)
	}

	// No subscription activation on failure.
	if sub, _ := fx.subs.FindByOrg(ctx, "org-1"); sub != nil {
		t.Errorf("subscription activated on declined payment: %+v", sub)
	}
}

func TestProcessCallbackMatching(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to oldest pending", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		first := fx.startCheckout(t, "org-1")
		// Second checkout created later.
		fx.svc.now = func() time.Time { return fx.fixed.Add(time.Minute) }
		fx.startCheckout(t, "org-1")

		result, err := fx.svc.ProcessCallback(ctx, "org-1", converge.Fields{
			"ssl_result": "0",
			"ssl_txn_id": "TXN9",
		})
		if err != nil {
			t.Fatalf("ProcessCallback: %v", err)
		}
		if !result.Success || result.PaymentID != first.ID {
			t.Fatalf("result = %+v, want oldest pending %s", result, first.ID)
		}
	})

	t.Run("strict mode refuses fallback", func(t *testing.T) {
		fx := newPaymentFixture(t, true)
		fx.startCheckout(t, "org-1")

		result, err := fx.svc.ProcessCallback(ctx, "org-1", converge.Fields{
			"ssl_result": "0",
			"ssl_txn_id": "TXN9",
		})
		if err != nil {
			t.Fatalf("ProcessCallback: %v", err)
		}
		if result.Success {
			t.Fatal("strict mode matched a callback without an invoice")
		}
		if result.Error != "Payment not found" {
			t.Errorf("error = %q", result.Error)
		}
	})

	t.Run("unmatched callback still audited", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		result, err := fx.svc.ProcessCallback(ctx, "org-1", converge.Fields{
			"ssl_result": "0",
		})
		if err != nil {
			t.Fatalf("ProcessCallback: %v", err)
		}
		if result.Success {
			t.Fatal("unmatched callback reported success")
		}
		types := fx.payments.eventTypes()
		if len(types) != 1 || types[0] != domain.EventCallbackReceived {
			t.Errorf("events = %v", types)
		}
	})
}

func (fx *paymentFixture) storeMethod(t *testing.T, orgID, token, last4 string) *domain.PaymentMethod {
	t.Helper()
	customer, _ := fx.billing.GetOrCreateCustomer(context.Background(), orgID, "ops@acme.test", "")
	enc, _ := plainCipher{}.Encrypt([]byte(token))
	m, err := fx.billing.UpsertMethod(context.Background(), &domain.PaymentMethod{
		OrganizationID:    orgID,
		BillingCustomerID: customer.ID,
		GatewayToken:      enc,
		CardLast4:         last4,
		CardBrand:         "visa",
	})
	if err != nil {
		t.Fatalf("UpsertMethod: %v", err)
	}
	return m
}

func TestProcessTokenPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("approved", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		m := fx.storeMethod(t, "org-1", "tok_1", "1111")
		fx.gateway.saleFields = converge.Fields{"ssl_result": "0", "ssl_txn_id": "TXN7", "ssl_approval_code": "A1"}

		result, err := fx.svc.ProcessTokenPayment(ctx, "org-1", domain.ChargeRequest{
			PaymentMethodID: m.ID, AmountCents: 9900, Description: "Professional renewal",
		})
		if err != nil {
			t.Fatalf("ProcessTokenPayment: %v", err)
		}
		if !result.Success || result.TransactionID != "TXN7" {
			t.Fatalf("result = %+v", result)
		}
		// The stored token is decrypted before hitting the gateway.
		if fx.gateway.lastToken != "tok_1" {
			t.Errorf("gateway got token %q, want tok_1", fx.gateway.lastToken)
		}

		stored, _ := fx.payments.Get(ctx, "org-1", result.PaymentID)
		if stored.Status != domain.PaymentCompleted {
			t.Errorf("status = %q", stored.Status)
		}
	})

	t.Run("declined", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		m := fx.storeMethod(t, "org-1", "tok_1", "1111")
		fx.gateway.saleFields = converge.Fields{"ssl_result": "51"}

		result, err := fx.svc.ProcessTokenPayment(ctx, "org-1", domain.ChargeRequest{
			PaymentMethodID: m.ID, AmountCents: 9900,
		})
		if err != nil {
			t.Fatalf("declines are results, not errors: %v", err)
		}
		if result.Success {
			t.Fatal("decline reported as success")
		}
		if !strings.Contains(result.Error, "insufficient funds") {
			t.Errorf("error = %q", result.Error)
		}

		stored, _ := fx.payments.Get(ctx, "org-1", result.PaymentID)
		if stored.Status != domain.PaymentFailed {
			t.Errorf("status = %q", stored.Status)
		}
	})

	t.Run("gateway transport error", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		m := fx.storeMethod(t, "org-1", "tok_1", "1111")
		fx.gateway.saleErr = context.DeadlineExceeded

		_, err := fx.svc.ProcessTokenPayment(ctx, "org-1", domain.ChargeRequest{
			PaymentMethodID: m.ID, AmountCents: 9900,
		})
		if !domain.IsPaymentError(err) {
			t.Fatalf("got %v, want payment error", err)
		}
		// The sanitized message carries no transport detail.
		if strings.Contains(err.Error(), "deadline") {
			t.Errorf("raw cause leaked: %v", err)
		}

		types := fx.payments.eventTypes()
		if types[len(types)-1] != domain.EventAPIError {
			t.Errorf("last event = %q, want api_error", types[len(types)-1])
		}
	})

	t.Run("method from another org", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		m := fx.storeMethod(t, "org-other", "tok_1", "1111")

		_, err := fx.svc.ProcessTokenPayment(ctx, "org-1", domain.ChargeRequest{
			PaymentMethodID: m.ID, AmountCents: 9900,
		})
		if !domain.IsNotFound(err) {
			t.Fatalf("got %v, want not found", err)
		}
	})
}

func (fx *paymentFixture) completedPayment(t *testing.T, orgID string, amount int64) *domain.Payment {
	t.Helper()
	p := fx.startCheckout(t, orgID)
	if err := fx.payments.MarkCompleted(context.Background(), p.ID, "TXN1", "OK"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	got, _ := fx.payments.Get(context.Background(), orgID, p.ID)
	got.AmountCents = amount
	fx.payments.payments[p.ID].AmountCents = amount
	return got
}

func TestProcessRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("partial then full", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		p := fx.completedPayment(t, "org-1", 2900)
		fx.gateway.refundFields = converge.Fields{"ssl_result": "0", "ssl_txn_id": "R1"}

		result, err := fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID, AmountCents: 1000})
		if err != nil {
			t.Fatalf("ProcessRefund: %v", err)
		}
		if !result.Success || result.RefundedAmountCents != 1000 {
			t.Fatalf("result = %+v", result)
		}
		if result.Status != domain.PaymentPartiallyRefunded {
			t.Errorf("status = %q", result.Status)
		}

		// Zero amount refunds the remaining balance.
		result, err = fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID})
		if err != nil {
			t.Fatalf("second refund: %v", err)
		}
		if result.RefundedAmountCents != 2900 || result.Status != domain.PaymentRefunded {
			t.Fatalf("result = %+v", result)
		}
		if got := fx.gateway.refundCalls; len(got) != 2 || got[1] != 1900 {
			t.Errorf("refund amounts sent to gateway = %v", got)
		}

		// Fully refunded payments reject further refunds.
		_, err = fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID, AmountCents: 1})
		if !domain.IsPaymentError(err) {
			t.Fatalf("got %v, want payment error", err)
		}
	})

	t.Run("over-refund clamped", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		p := fx.completedPayment(t, "org-1", 2900)
		fx.gateway.refundFields = converge.Fields{"ssl_result": "0"}

		result, err := fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID, AmountCents: 99999})
		if err != nil {
			t.Fatalf("ProcessRefund: %v", err)
		}
		if result.RefundedAmountCents != 2900 {
			t.Errorf("refunded = %d, want clamp to 2900", result.RefundedAmountCents)
		}
		if fx.gateway.refundCalls[0] != 2900 {
			t.Errorf("gateway asked for %d", fx.gateway.refundCalls[0])
		}
	})

	t.Run("pending payment not refundable", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		p := fx.startCheckout(t, "org-1")
		_, err := fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID})
		if !domain.IsPaymentError(err) {
			t.Fatalf("got %v, want payment error", err)
		}
	})

	t.Run("stale-balance refund cannot over-credit the ledger", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		p := fx.completedPayment(t, "org-1", 2900)
		fx.gateway.refundFields = converge.Fields{"ssl_result": "0"}

		// A competing refund lands between this refund's balance read and
		// its ledger write.
		fx.gateway.refundHook = func() {
			fx.gateway.refundHook = nil
			if _, err := fx.payments.AddRefund(context.Background(), p.ID, 2900); err != nil {
				t.Fatalf("competing refund: %v", err)
			}
		}

		_, err := fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID})
		if err == nil {
			t.Fatal("stale refund should fail at the ledger write")
		}
		stored, _ := fx.payments.Get(ctx, "org-1", p.ID)
		if stored.RefundedAmountCents != 2900 {
			t.Errorf("refunded = %d, want exactly the payment amount", stored.RefundedAmountCents)
		}
	})

	t.Run("gateway rejection is a result", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		p := fx.completedPayment(t, "org-1", 2900)
		fx.gateway.refundFields = converge.Fields{"ssl_result": "96"}

		result, err := fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: p.ID})
		if err != nil {
			t.Fatalf("ProcessRefund: %v", err)
		}
		if result.Success {
			t.Fatal("rejected refund reported success")
		}
		stored, _ := fx.payments.Get(ctx, "org-1", p.ID)
		if stored.RefundedAmountCents != 0 {
			t.Errorf("refunded amount mutated on failed refund: %d", stored.RefundedAmountCents)
		}
	})

	t.Run("unknown payment", func(t *testing.T) {
		fx := newPaymentFixture(t, false)
		_, err := fx.svc.ProcessRefund(ctx, "org-1", domain.RefundRequest{PaymentID: "nope"})
		if !domain.IsNotFound(err) {
			t.Fatalf("got %v, want not found", err)
		}
	})
}

func TestExpireStalePendingPayments(t *testing.T) {
	fx := newPaymentFixture(t, false)
	ctx := context.Background()

	stale := fx.startCheckout(t, "org-1")
	fx.svc.now = func() time.Time { return fx.fixed.Add(48 * time.Hour) }
	fresh := fx.startCheckout(t, "org-1")

	count, err := fx.svc.ExpireStalePendingPayments(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("ExpireStalePendingPayments: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired %d, want 1", count)
	}

	p, _ := fx.payments.Get(ctx, "org-1", stale.ID)
	if p.Status != domain.PaymentFailed {
		t.Errorf("stale payment status = %q", p.Status)
	}
	p, _ = fx.payments.Get(ctx, "org-1", fresh.ID)
	if p.Status != domain.PaymentPending {
		t.Errorf("fresh payment status = %q", p.Status)
	}

	types := fx.payments.eventTypes()
	if types[len(types)-1] != domain.EventPaymentExpired {
		t.Errorf("last event = %q, want payment_expired", types[len(types)-1])
	}
}

func TestPaymentMethodManagement(t *testing.T) {
	fx := newPaymentFixture(t, false)
	ctx := context.Background()

	first := fx.storeMethod(t, "org-1", "tok_1", "1111")
	second := fx.storeMethod(t, "org-1", "tok_2", "2222")

	methods, err := fx.svc.ListPaymentMethods(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListPaymentMethods: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("got %d methods", len(methods))
	}
	if !methods[0].IsDefault || methods[0].ID != first.ID {
		t.Errorf("default should sort first, got %+v", methods[0])
	}

	if err := fx.svc.SetDefaultPaymentMethod(ctx, "org-1", second.ID); err != nil {
		t.Fatalf("SetDefaultPaymentMethod: %v", err)
	}
	methods, _ = fx.svc.ListPaymentMethods(ctx, "org-1")
	for _, m := range methods {
		if m.ID == second.ID && !m.IsDefault {
			t.Error("second method not default after SetDefault")
		}
		if m.ID == first.ID && m.IsDefault {
			t.Error("old default not cleared")
		}
	}

	// Deleting the default promotes a survivor.
	if err := fx.svc.DeletePaymentMethod(ctx, "org-1", second.ID); err != nil {
		t.Fatalf("DeletePaymentMethod: %v", err)
	}
	methods, _ = fx.svc.ListPaymentMethods(ctx, "org-1")
	if len(methods) != 1 || !methods[0].IsDefault {
		t.Fatalf("surviving method should be default: %+v", methods)
	}

	if err := fx.svc.DeletePaymentMethod(ctx, "org-1", "missing"); !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
	if err := fx.svc.SetDefaultPaymentMethod(ctx, "org-1", "missing"); !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestListPaymentsPagination(t *testing.T) {
	fx := newPaymentFixture(t, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Minute
		fx.svc.now = func() time.Time { return fx.fixed.Add(offset) }
		fx.startCheckout(t, "org-1")
	}
	fx.startCheckout(t, "org-other")

	page, total, err := fx.svc.ListPayments(ctx, "org-1", 1, 2)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d", len(page))
	}
	// Newest first.
	if page[0].CreatedAt.Before(page[1].CreatedAt) {
		t.Error("payments not sorted newest first")
	}

	// Out-of-range defaults.
	page, _, err = fx.svc.ListPayments(ctx, "org-1", 0, 1000)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(page) != 5 {
		t.Errorf("defaulted page returned %d payments", len(page))
	}
}

func TestParseExpiry(t *testing.T) {
	cases := []struct {
		raw   string
		month int
		year  int
	}{
		{"12/28", 12, 2028},
		{"01/31", 1, 2031},
		{"1228", 12, 2028},
		{"12/2028", 12, 2028},
		{"13/28", 0, 0},
		{"garbage", 0, 0},
		{"", 0, 0},
	}
	for _, c := range cases {
		m, y := parseExpiry(c.raw)
		if m != c.month || y != c.year {
			t.Errorf("parseExpiry(%q) = %d/%d, want %d/%d", c.raw, m, y, c.month, c.year)
		}
	}
}
