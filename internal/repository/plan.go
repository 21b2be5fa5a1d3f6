package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prowhq/billing/internal/domain"
)

// PlanRepository handles database operations for subscription plans.
type PlanRepository struct {
	db *pgxpool.Pool
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, type, monthly_price_cents, yearly_price_cents,
	max_seats, max_workspaces, max_documents, features, is_active, created_at, updated_at`

func scanPlan(row pgx.Row) (*domain.SubscriptionPlan, error) {
	var p domain.SubscriptionPlan
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.MonthlyPriceCents, &p.YearlyPriceCents,
		&p.MaxSeats, &p.MaxWorkspaces, &p.MaxDocuments, &p.Features,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive returns active plans ordered by monthly price ascending.
func (r *PlanRepository) ListActive(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + `
		FROM subscription_plans WHERE is_active ORDER BY monthly_price_cents ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// GetByID returns a plan by ID, or nil when absent.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`
	p, err := scanPlan(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// GetFreePlan returns the active free-tier plan, or nil when unseeded.
func (r *PlanRepository) GetFreePlan(ctx context.Context) (*domain.SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + `
		FROM subscription_plans WHERE type = 'free' AND is_active LIMIT 1`
	p, err := scanPlan(r.db.QueryRow(ctx, query))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get free plan: %w", err)
	}
	return p, nil
}

// SeedDefaults inserts the default plan catalog if the table is empty.
func (r *PlanRepository) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscription_plans`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	for _, p := range domain.DefaultPlans() {
		_, err := r.db.Exec(ctx, `
			INSERT INTO subscription_plans
				(id, name, type, monthly_price_cents, yearly_price_cents,
				 max_seats, max_workspaces, max_documents, features, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Type, p.MonthlyPriceCents, p.YearlyPriceCents,
			p.MaxSeats, p.MaxWorkspaces, p.MaxDocuments, p.Features, p.IsActive, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.ID, err)
		}
	}
	return nil
}
