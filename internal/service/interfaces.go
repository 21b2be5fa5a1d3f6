package service

import (
	"context"
	"time"

	"github.com/prowhq/billing/internal/domain"
)

// Consumer-side store interfaces. The pgx repositories in
// internal/repository satisfy these; tests substitute in-memory fakes.

// PlanStore reads the subscription plan catalog.
type PlanStore interface {
	ListActive(ctx context.Context) ([]domain.SubscriptionPlan, error)
	GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error)
	GetFreePlan(ctx context.Context) (*domain.SubscriptionPlan, error)
}

// SubscriptionStore persists the one-row-per-organization subscriptions.
type SubscriptionStore interface {
	FindByOrg(ctx context.Context, orgID string) (*domain.Subscription, error)
	Exists(ctx context.Context, orgID string) (bool, error)
	Create(ctx context.Context, s *domain.Subscription) error
	Upsert(ctx context.Context, s *domain.Subscription) (*domain.Subscription, error)
	Update(ctx context.Context, s *domain.Subscription) error
}

// CustomerStore persists billing customers and tokenized payment methods.
type CustomerStore interface {
	GetOrCreateCustomer(ctx context.Context, orgID, email, name string) (*domain.BillingCustomer, error)
	ListMethods(ctx context.Context, orgID string) ([]domain.PaymentMethod, error)
	GetMethod(ctx context.Context, orgID, id string) (*domain.PaymentMethod, error)
	UpsertMethod(ctx context.Context, m *domain.PaymentMethod) (*domain.PaymentMethod, error)
	SetDefaultMethod(ctx context.Context, orgID, id string) error
	DeleteMethod(ctx context.Context, orgID, id string) error
}

// PaymentStore persists payment attempts and their audit events.
type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, orgID, id string) (*domain.Payment, error)
	FindPendingByInvoice(ctx context.Context, orgID, invoice string) (*domain.Payment, error)
	FindOldestPending(ctx context.Context, orgID string) (*domain.Payment, error)
	MarkCompleted(ctx context.Context, id, txnID, approvalCode string) error
	MarkFailed(ctx context.Context, id, reason string) error
	AddRefund(ctx context.Context, id string, amountCents int64) (*domain.Payment, error)
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error)
	ExpireStalePending(ctx context.Context, cutoff time.Time) ([]domain.Payment, error)
	AppendEvent(ctx context.Context, e *domain.PaymentEvent) error
	ListEventsByPayment(ctx context.Context, orgID, paymentID string) ([]domain.PaymentEvent, error)
}

// TokenCipher encrypts gateway tokens at rest. pkg/crypto.Encryptor
// satisfies this.
type TokenCipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(encoded string) ([]byte, error)
}

// EventBroadcaster pushes audit events to live subscribers (the WebSocket
// feed). Implementations must not block.
type EventBroadcaster interface {
	Broadcast(orgID string, e *domain.PaymentEvent)
}
