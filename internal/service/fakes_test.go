package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prowhq/billing/internal/domain"
	"github.com/prowhq/billing/pkg/converge"
)

// In-memory fakes for the store interfaces. They implement the same
// semantics the pgx repositories promise, minus persistence.

type fakePlanStore struct {
	plans []domain.SubscriptionPlan
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{plans: domain.DefaultPlans()}
}

func (f *fakePlanStore) ListActive(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	out := make([]domain.SubscriptionPlan, 0, len(f.plans))
	for _, p := range f.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthlyPriceCents < out[j].MonthlyPriceCents })
	return out, nil
}

func (f *fakePlanStore) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	for i := range f.plans {
		if f.plans[i].ID == id {
			p := f.plans[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePlanStore) GetFreePlan(ctx context.Context) (*domain.SubscriptionPlan, error) {
	for i := range f.plans {
		if f.plans[i].Type == domain.PlanFree {
			p := f.plans[i]
			return &p, nil
		}
	}
	return nil, nil
}

type fakeSubscriptionStore struct {
	mu   sync.Mutex
	byOrg map[string]*domain.Subscription
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{byOrg: make(map[string]*domain.Subscription)}
}

func (f *fakeSubscriptionStore) FindByOrg(ctx context.Context, orgID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byOrg[orgID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSubscriptionStore) Exists(ctx context.Context, orgID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byOrg[orgID]
	return ok, nil
}

func (f *fakeSubscriptionStore) Create(ctx context.Context, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byOrg[s.OrganizationID]; ok {
		return fmt.Errorf("duplicate subscription for org %s", s.OrganizationID)
	}
	copied := *s
	f.byOrg[s.OrganizationID] = &copied
	return nil
}

func (f *fakeSubscriptionStore) Upsert(ctx context.Context, s *domain.Subscription) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.byOrg[s.OrganizationID]
	if !ok {
		copied := *s
		f.byOrg[s.OrganizationID] = &copied
		out := copied
		return &out, nil
	}
	// Mirrors the ON CONFLICT update: keep row identity, reset state.
	existing.PlanID = s.PlanID
	existing.Status = s.Status
	existing.BillingInterval = s.BillingInterval
	existing.CurrentPeriodStart = s.CurrentPeriodStart
	existing.CurrentPeriodEnd = s.CurrentPeriodEnd
	existing.CancelAtPeriodEnd = false
	existing.CanceledAt = nil
	existing.UpdatedAt = s.UpdatedAt
	out := *existing
	return &out, nil
}

func (f *fakeSubscriptionStore) Update(ctx context.Context, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byOrg[s.OrganizationID]; !ok {
		return fmt.Errorf("subscription not found")
	}
	copied := *s
	f.byOrg[s.OrganizationID] = &copied
	return nil
}

type fakeCustomerStore struct {
	mu        sync.Mutex
	customers map[string]*domain.BillingCustomer
	methods   []*domain.PaymentMethod
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{customers: make(map[string]*domain.BillingCustomer)}
}

func (f *fakeCustomerStore) GetOrCreateCustomer(ctx context.Context, orgID, email, name string) (*domain.BillingCustomer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.customers[orgID]; ok {
		return c, nil
	}
	c := &domain.BillingCustomer{ID: uuid.New().String(), OrganizationID: orgID, Email: email, Name: name}
	f.customers[orgID] = c
	return c, nil
}

func (f *fakeCustomerStore) ListMethods(ctx context.Context, orgID string) ([]domain.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentMethod
	for _, m := range f.methods {
		if m.OrganizationID == orgID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

func (f *fakeCustomerStore) GetMethod(ctx context.Context, orgID, id string) (*domain.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m.ID == id && m.OrganizationID == orgID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerStore) UpsertMethod(ctx context.Context, m *domain.PaymentMethod) (*domain.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.methods {
		if existing.OrganizationID == m.OrganizationID && existing.CardLast4 == m.CardLast4 {
			existing.GatewayToken = m.GatewayToken
			existing.CardBrand = m.CardBrand
			existing.ExpMonth = m.ExpMonth
			existing.ExpYear = m.ExpYear
			copied := *existing
			return &copied, nil
		}
	}
	isFirst := true
	for _, existing := range f.methods {
		if existing.OrganizationID == m.OrganizationID {
			isFirst = false
			break
		}
	}
	copied := *m
	copied.ID = uuid.New().String()
	copied.IsDefault = isFirst
	f.methods = append(f.methods, &copied)
	out := copied
	return &out, nil
}

func (f *fakeCustomerStore) SetDefaultMethod(ctx context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var target *domain.PaymentMethod
	for _, m := range f.methods {
		if m.ID == id && m.OrganizationID == orgID {
			target = m
		}
	}
	if target == nil {
		return domain.ErrNotFound("payment method not found")
	}
	for _, m := range f.methods {
		if m.OrganizationID == orgID {
			m.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func (f *fakeCustomerStore) DeleteMethod(ctx context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := -1
	for i, m := range f.methods {
		if m.ID == id && m.OrganizationID == orgID {
			idx = i
		}
	}
	if idx == -1 {
		return domain.ErrNotFound("payment method not found")
	}
	wasDefault := f.methods[idx].IsDefault
	f.methods = append(f.methods[:idx], f.methods[idx+1:]...)
	if wasDefault {
		for _, m := range f.methods {
			if m.OrganizationID == orgID {
				m.IsDefault = true
				break
			}
		}
	}
	return nil
}

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
	events   []*domain.PaymentEvent
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[string]*domain.Payment)}
}

func (f *fakePaymentStore) Create(ctx context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *p
	f.payments[p.ID] = &copied
	return nil
}

func (f *fakePaymentStore) Get(ctx context.Context, orgID, id string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.OrganizationID != orgID {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakePaymentStore) FindPendingByInvoice(ctx context.Context, orgID, invoice string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrganizationID == orgID && p.Status == domain.PaymentPending && p.Metadata[domain.MetaInvoiceNumber] == invoice {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) FindOldestPending(ctx context.Context, orgID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *domain.Payment
	for _, p := range f.payments {
		if p.OrganizationID != orgID || p.Status != domain.PaymentPending {
			continue
		}
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copied := *oldest
	return &copied, nil
}

func (f *fakePaymentStore) MarkCompleted(ctx context.Context, id, txnID, approvalCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.Status = domain.PaymentCompleted
	p.GatewayTxnID = txnID
	p.ApprovalCode = approvalCode
	return nil
}

func (f *fakePaymentStore) MarkFailed(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.Status = domain.PaymentFailed
	p.FailureReason = reason
	return nil
}

func (f *fakePaymentStore) AddRefund(ctx context.Context, id string, amountCents int64) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment not found")
	}
	// Same bound the schema CHECK constraint enforces.
	if p.RefundedAmountCents+amountCents > p.AmountCents {
		return nil, fmt.Errorf("refund exceeds payment amount")
	}
	p.RefundedAmountCents += amountCents
	if p.RefundedAmountCents >= p.AmountCents {
		p.Status = domain.PaymentRefunded
	} else {
		p.Status = domain.PaymentPartiallyRefunded
	}
	copied := *p
	return &copied, nil
}

func (f *fakePaymentStore) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Payment
	for _, p := range f.payments {
		if p.OrganizationID == orgID {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakePaymentStore) ExpireStalePending(ctx context.Context, cutoff time.Time) ([]domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []domain.Payment
	for _, p := range f.payments {
		if p.Status == domain.PaymentPending && p.CreatedAt.Before(cutoff) {
			p.Status = domain.PaymentFailed
			p.FailureReason = "checkout session expired"
			expired = append(expired, *p)
		}
	}
	return expired, nil
}

func (f *fakePaymentStore) AppendEvent(ctx context.Context, e *domain.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *e
	f.events = append(f.events, &copied)
	return nil
}

func (f *fakePaymentStore) ListEventsByPayment(ctx context.Context, orgID, paymentID string) ([]domain.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PaymentEvent
	for _, e := range f.events {
		if e.OrganizationID == orgID && e.PaymentID != nil && *e.PaymentID == paymentID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) eventTypes() []domain.PaymentEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PaymentEventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

// fakeGateway scripts gateway responses per call.
type fakeGateway struct {
	saleFields   converge.Fields
	saleErr      error
	refundFields converge.Fields
	refundErr    error

	// refundHook runs inside Refund, before it returns. Tests use it to
	// interleave competing writes between the balance read and the ledger
	// update.
	refundHook func()

	saleCalls   []int64
	refundCalls []int64
	lastToken   string
}

func (g *fakeGateway) HostedPaymentURL(req converge.HostedSessionRequest) string {
	return "https://pay.example.test/hosted?ssl_invoice_number=" + req.InvoiceNumber +
		"&ssl_amount=" + converge.FormatAmount(req.AmountCents)
}

func (g *fakeGateway) Sale(ctx context.Context, token string, amountCents int64, invoiceNumber string) (converge.Fields, error) {
	g.lastToken = token
	g.saleCalls = append(g.saleCalls, amountCents)
	return g.saleFields, g.saleErr
}

func (g *fakeGateway) Refund(ctx context.Context, txnID string, amountCents int64) (converge.Fields, error) {
	g.refundCalls = append(g.refundCalls, amountCents)
	if g.refundHook != nil {
		g.refundHook()
	}
	return g.refundFields, g.refundErr
}

// plainCipher is a reversible stand-in for AES-GCM.
type plainCipher struct{}

func (plainCipher) Encrypt(plaintext []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(plaintext), nil
}

func (plainCipher) Decrypt(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []*domain.PaymentEvent
}

func (b *captureBroadcaster) Broadcast(orgID string, e *domain.PaymentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
