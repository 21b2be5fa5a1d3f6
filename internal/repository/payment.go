package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prowhq/billing/internal/domain"
)

// PaymentRepository handles payments and their append-only audit events.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, organization_id, subscription_id, payment_method_id,
	amount_cents, currency, status, gateway_txn_id, approval_code, description,
	failure_reason, refunded_amount_cents, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.SubscriptionID, &p.PaymentMethodID,
		&p.AmountCents, &p.Currency, &p.Status, &p.GatewayTxnID, &p.ApprovalCode,
		&p.Description, &p.FailureReason, &p.RefundedAmountCents, &p.Metadata,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new payment attempt.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, p.OrganizationID, p.SubscriptionID, p.PaymentMethodID,
		p.AmountCents, p.Currency, p.Status, p.GatewayTxnID, p.ApprovalCode,
		p.Description, p.FailureReason, p.RefundedAmountCents, p.Metadata,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// Get returns a payment scoped to the organization, or nil when absent or
// owned by someone else.
func (r *PaymentRepository) Get(ctx context.Context, orgID, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND organization_id = $2`
	p, err := scanPayment(r.db.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// FindPendingByInvoice returns the pending payment whose metadata carries
// the given invoice number, or nil.
func (r *PaymentRepository) FindPendingByInvoice(ctx context.Context, orgID, invoice string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE organization_id = $1 AND status = 'pending' AND metadata->>'invoiceNumber' = $2
		ORDER BY created_at ASC LIMIT 1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, orgID, invoice))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment by invoice: %w", err)
	}
	return p, nil
}

// FindOldestPending returns the organization's oldest pending payment, or
// nil. This backs the callback-reconciliation fallback when the redirect
// payload carries no usable invoice number.
func (r *PaymentRepository) FindOldestPending(ctx context.Context, orgID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE organization_id = $1 AND status = 'pending'
		ORDER BY created_at ASC LIMIT 1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, orgID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending payment: %w", err)
	}
	return p, nil
}

// MarkCompleted settles a payment as completed with its gateway references.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id, txnID, approvalCode string) error {
	query := `
		UPDATE payments SET status = 'completed', gateway_txn_id = $2, approval_code = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, txnID, approvalCode)
	if err != nil {
		return fmt.Errorf("failed to mark payment completed: %w", err)
	}
	return nil
}

// MarkFailed settles a payment as failed with the (already user-safe) reason.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id, reason string) error {
	query := `UPDATE payments SET status = 'failed', failure_reason = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

// AddRefund applies a refund amount atomically. The status flips to
// refunded exactly when the cumulative refund reaches the full amount,
// otherwise partially_refunded. Returns the updated payment.
func (r *PaymentRepository) AddRefund(ctx context.Context, id string, amountCents int64) (*domain.Payment, error) {
	query := `
		UPDATE payments SET
			refunded_amount_cents = refunded_amount_cents + $2,
			status = CASE
				WHEN refunded_amount_cents + $2 >= amount_cents THEN 'refunded'
				ELSE 'partially_refunded'
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRow(ctx, query, id, amountCents))
	if err != nil {
		return nil, fmt.Errorf("failed to apply refund: %w", err)
	}
	return p, nil
}

// ListByOrg returns the organization's payments newest first, paginated,
// along with the total count.
func (r *PaymentRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE organization_id = $1`, orgID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE organization_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, total, rows.Err()
}

// ExpireStalePending fails pending payments older than the cutoff. Hosted
// sessions expire on the gateway side; this is the application-side cleanup
// for checkouts that were abandoned. Returns the expired payments.
func (r *PaymentRepository) ExpireStalePending(ctx context.Context, cutoff time.Time) ([]domain.Payment, error) {
	query := `
		UPDATE payments SET status = 'failed', failure_reason = 'checkout session expired', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
		RETURNING ` + paymentColumns
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending payments: %w", err)
	}
	defer rows.Close()

	var expired []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired payment: %w", err)
		}
		expired = append(expired, *p)
	}
	return expired, rows.Err()
}

// AppendEvent writes an audit-trail row. Events are append-only.
func (r *PaymentRepository) AppendEvent(ctx context.Context, e *domain.PaymentEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO payment_events (id, organization_id, payment_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, e.ID, e.OrganizationID, e.PaymentID, e.Type, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append payment event: %w", err)
	}
	return nil
}

// ListEventsByPayment returns a payment's audit trail oldest first.
func (r *PaymentRepository) ListEventsByPayment(ctx context.Context, orgID, paymentID string) ([]domain.PaymentEvent, error) {
	query := `
		SELECT id, organization_id, payment_id, type, payload, created_at
		FROM payment_events
		WHERE organization_id = $1 AND payment_id = $2
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, orgID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.PaymentID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
