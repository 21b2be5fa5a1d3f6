package domain

import "time"

// PlanType is the tier of a subscription plan.
type PlanType string

const (
	PlanFree         PlanType = "free"
	PlanStarter      PlanType = "starter"
	PlanProfessional PlanType = "professional"
	PlanEnterprise   PlanType = "enterprise"
)

// BillingInterval is how often a subscription renews.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// Valid reports whether the interval is one we bill on.
func (i BillingInterval) Valid() bool {
	return i == IntervalMonthly || i == IntervalYearly
}

// Unlimited is the sentinel quota value meaning "no limit".
const Unlimited = -1

// SubscriptionPlan is a catalog entry. Seeded once at startup and read-only
// afterwards except for administrative edits.
type SubscriptionPlan struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Type              PlanType  `json:"type"`
	MonthlyPriceCents int64     `json:"monthlyPriceCents"`
	YearlyPriceCents  int64     `json:"yearlyPriceCents"`
	MaxSeats          int       `json:"maxSeats"`
	MaxWorkspaces     int       `json:"maxWorkspaces"`
	MaxDocuments      int       `json:"maxDocuments"`
	Features          []string  `json:"features"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// PriceFor selects the monthly or yearly price in minor currency units.
func (p *SubscriptionPlan) PriceFor(interval BillingInterval) int64 {
	if interval == IntervalYearly {
		return p.YearlyPriceCents
	}
	return p.MonthlyPriceCents
}

// DefaultPlans returns the plan catalog seeded on first startup.
func DefaultPlans() []SubscriptionPlan {
	return []SubscriptionPlan{
		{
			ID:                "free",
			Name:              "Free",
			Type:              PlanFree,
			MonthlyPriceCents: 0,
			YearlyPriceCents:  0,
			MaxSeats:          2,
			MaxWorkspaces:     1,
			MaxDocuments:      25,
			Features:          []string{"1 workspace", "25 documents", "Community support"},
			IsActive:          true,
		},
		{
			ID:                "starter",
			Name:              "Starter",
			Type:              PlanStarter,
			MonthlyPriceCents: 2900,
			YearlyPriceCents:  29000,
			MaxSeats:          5,
			MaxWorkspaces:     3,
			MaxDocuments:      500,
			Features:          []string{"3 workspaces", "500 documents", "AI chat", "Email support"},
			IsActive:          true,
		},
		{
			ID:                "professional",
			Name:              "Professional",
			Type:              PlanProfessional,
			MonthlyPriceCents: 9900,
			YearlyPriceCents:  99000,
			MaxSeats:          25,
			MaxWorkspaces:     10,
			MaxDocuments:      5000,
			Features:          []string{"10 workspaces", "5,000 documents", "AI chat", "Work products", "Priority support"},
			IsActive:          true,
		},
		{
			ID:                "enterprise",
			Name:              "Enterprise",
			Type:              PlanEnterprise,
			MonthlyPriceCents: 29900,
			YearlyPriceCents:  299000,
			MaxSeats:          Unlimited,
			MaxWorkspaces:     Unlimited,
			MaxDocuments:      Unlimited,
			Features:          []string{"Unlimited workspaces", "Unlimited documents", "AI chat", "Work products", "QuickBooks reporting", "Dedicated support"},
			IsActive:          true,
		},
	}
}
