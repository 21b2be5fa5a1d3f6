package domain

import "time"

// SubscriptionStatus is the lifecycle state of an organization's subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPaused   SubscriptionStatus = "paused"
)

// Subscription is an organization's single subscription row (1:1, enforced
// by a unique constraint). It is never deleted, only mutated or
// period-extended.
//
// CanceledAt records when cancellation was REQUESTED. For a deferred
// cancellation (CancelAtPeriodEnd=true) the subscription stays active until
// CurrentPeriodEnd; compute the effective end from that field, never from
// CanceledAt.
type Subscription struct {
	ID                 string             `json:"id"`
	OrganizationID     string             `json:"organizationId"`
	PlanID             string             `json:"planId"`
	Status             SubscriptionStatus `json:"status"`
	BillingInterval    BillingInterval    `json:"billingInterval"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
	CanceledAt         *time.Time         `json:"canceledAt,omitempty"`
	TrialStart         *time.Time         `json:"trialStart,omitempty"`
	TrialEnd           *time.Time         `json:"trialEnd,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`

	// Plan is joined inline by getOrganizationSubscription.
	Plan *SubscriptionPlan `json:"plan,omitempty"`
}

// CancelSubscriptionRequest is the input for canceling a subscription.
type CancelSubscriptionRequest struct {
	// Immediate downgrades to the free plan now; otherwise the subscription
	// runs until the end of the paid period.
	Immediate bool `json:"immediate"`
}
