package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prowhq/billing/internal/domain"
)

// freePlanPeriodYears is the sentinel period length for the free tier. The
// free plan never expires; a far-future period end stands in for "infinite".
const freePlanPeriodYears = 100

// SubscriptionService owns the per-organization subscription state machine
// and the plan catalog accessors.
type SubscriptionService struct {
	subs  SubscriptionStore
	plans PlanStore
	now   func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(subs SubscriptionStore, plans PlanStore) *SubscriptionService {
	return &SubscriptionService{subs: subs, plans: plans, now: time.Now}
}

// ListPlans returns active plans ordered by monthly price ascending.
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	return s.plans.ListActive(ctx)
}

// GetPlan returns a plan by ID or a not-found error.
func (s *SubscriptionService) GetPlan(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load plan", err)
	}
	if plan == nil {
		return nil, domain.ErrNotFound("plan not found")
	}
	return plan, nil
}

// GetOrganizationSubscription returns the organization's subscription with
// plan details joined, or nil when none exists. Brand-new organizations
// have no subscription until provisioning; that is not an error.
func (s *SubscriptionService) GetOrganizationSubscription(ctx context.Context, orgID string) (*domain.Subscription, error) {
	return s.subs.FindByOrg(ctx, orgID)
}

// CreateFreeSubscription puts a newly provisioned organization on the free
// plan. Fails with a conflict when a subscription row already exists.
func (s *SubscriptionService) CreateFreeSubscription(ctx context.Context, orgID string) (*domain.Subscription, error) {
	exists, err := s.subs.Exists(ctx, orgID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check subscription", err)
	}
	if exists {
		return nil, domain.ErrConflict("organization already has a subscription")
	}

	freePlan, err := s.plans.GetFreePlan(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to load free plan", err)
	}
	if freePlan == nil {
		return nil, domain.ErrInternal("free plan is not seeded", nil)
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:                 uuid.New().String(),
		OrganizationID:     orgID,
		PlanID:             freePlan.ID,
		Status:             domain.SubscriptionActive,
		BillingInterval:    domain.IntervalMonthly,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(freePlanPeriodYears, 0, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to create subscription", err)
	}

	sub.Plan = freePlan
	return sub, nil
}

// ActivateSubscription moves the organization onto a paid plan. It is the
// single transition point invoked after a successful payment and is an
// idempotent upsert: repeated activation resets the period to now+interval
// and clears any prior cancellation markers.
func (s *SubscriptionService) ActivateSubscription(ctx context.Context, orgID, planID string, interval domain.BillingInterval) (*domain.Subscription, error) {
	if !interval.Valid() {
		return nil, domain.ErrBadRequest("invalid billing interval")
	}

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	periodEnd := now.AddDate(0, 1, 0)
	if interval == domain.IntervalYearly {
		periodEnd = now.AddDate(1, 0, 0)
	}

	sub := &domain.Subscription{
		ID:                 uuid.New().String(),
		OrganizationID:     orgID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		BillingInterval:    interval,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	saved, err := s.subs.Upsert(ctx, sub)
	if err != nil {
		return nil, domain.ErrInternal("failed to activate subscription", err)
	}

	saved.Plan = plan
	return saved, nil
}

// CancelSubscription cancels an organization's subscription.
//
// immediate=true downgrades to the free plan right away and marks the
// subscription canceled; this requires a seeded free plan.
//
// immediate=false leaves plan and status untouched and only flags
// CancelAtPeriodEnd. CanceledAt then records when cancellation was
// requested; the subscription stays usable until CurrentPeriodEnd.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, orgID string, immediate bool) (*domain.Subscription, error) {
	sub, err := s.subs.FindByOrg(ctx, orgID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, domain.ErrNotFound("organization has no subscription")
	}

	now := s.now()
	if immediate {
		freePlan, err := s.plans.GetFreePlan(ctx)
		if err != nil {
			return nil, domain.ErrInternal("failed to load free plan", err)
		}
		if freePlan == nil {
			return nil, domain.ErrInternal("free plan is not seeded; cannot downgrade", nil)
		}

		sub.PlanID = freePlan.ID
		sub.Status = domain.SubscriptionCanceled
		sub.CancelAtPeriodEnd = false
		sub.CanceledAt = &now
		if err := s.subs.Update(ctx, sub); err != nil {
			return nil, domain.ErrInternal("failed to cancel subscription", err)
		}
		sub.Plan = freePlan
		return sub, nil
	}

	sub.CancelAtPeriodEnd = true
	sub.CanceledAt = &now
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to cancel subscription", err)
	}
	return sub, nil
}
