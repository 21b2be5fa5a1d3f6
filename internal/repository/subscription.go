package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prowhq/billing/internal/domain"
)

// SubscriptionRepository handles database operations for subscriptions.
// The schema enforces one subscription row per organization.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, organization_id, plan_id, status, billing_interval,
	current_period_start, current_period_end, cancel_at_period_end, canceled_at,
	trial_start, trial_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.PlanID, &s.Status, &s.BillingInterval,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CanceledAt,
		&s.TrialStart, &s.TrialEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByOrg returns the organization's subscription with its plan joined
// inline, or nil when none exists. "No subscription" is a valid state for
// brand-new organizations, not an error.
func (r *SubscriptionRepository) FindByOrg(ctx context.Context, orgID string) (*domain.Subscription, error) {
	query := `
		SELECT s.id, s.organization_id, s.plan_id, s.status, s.billing_interval,
			s.current_period_start, s.current_period_end, s.cancel_at_period_end, s.canceled_at,
			s.trial_start, s.trial_end, s.created_at, s.updated_at,
			p.id, p.name, p.type, p.monthly_price_cents, p.yearly_price_cents,
			p.max_seats, p.max_workspaces, p.max_documents, p.features, p.is_active,
			p.created_at, p.updated_at
		FROM subscriptions s
		JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.organization_id = $1
	`
	var s domain.Subscription
	var p domain.SubscriptionPlan
	err := r.db.QueryRow(ctx, query, orgID).Scan(
		&s.ID, &s.OrganizationID, &s.PlanID, &s.Status, &s.BillingInterval,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CanceledAt,
		&s.TrialStart, &s.TrialEnd, &s.CreatedAt, &s.UpdatedAt,
		&p.ID, &p.Name, &p.Type, &p.MonthlyPriceCents, &p.YearlyPriceCents,
		&p.MaxSeats, &p.MaxWorkspaces, &p.MaxDocuments, &p.Features, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	s.Plan = &p
	return &s, nil
}

// Create inserts a new subscription row. Fails on the unique organization
// constraint if one already exists.
func (r *SubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.OrganizationID, s.PlanID, s.Status, s.BillingInterval,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd, s.CanceledAt,
		s.TrialStart, s.TrialEnd, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Upsert activates a subscription: inserts a row for the organization or,
// if one exists, overwrites plan, interval, status and period, clearing any
// prior cancellation markers. Single statement, so concurrent activations
// for the same organization cannot produce duplicate rows.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *domain.Subscription) (*domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NULL, $8, $9, $10, $11)
		ON CONFLICT (organization_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			billing_interval = EXCLUDED.billing_interval,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = FALSE,
			canceled_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(r.db.QueryRow(ctx, query,
		s.ID, s.OrganizationID, s.PlanID, s.Status, s.BillingInterval,
		s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.TrialStart, s.TrialEnd, s.CreatedAt, s.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return sub, nil
}

// Update overwrites the mutable fields of an existing subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, s *domain.Subscription) error {
	query := `
		UPDATE subscriptions SET
			plan_id = $2, status = $3, billing_interval = $4,
			current_period_start = $5, current_period_end = $6,
			cancel_at_period_end = $7, canceled_at = $8, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		s.ID, s.PlanID, s.Status, s.BillingInterval,
		s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd, s.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s not found", s.ID)
	}
	return nil
}

// Exists reports whether the organization already has a subscription row.
func (r *SubscriptionRepository) Exists(ctx context.Context, orgID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE organization_id = $1)`, orgID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription existence: %w", err)
	}
	return exists, nil
}
