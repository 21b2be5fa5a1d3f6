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

// BillingRepository handles billing customers and tokenized payment methods.
type BillingRepository struct {
	db *pgxpool.Pool
}

// NewBillingRepository creates a new BillingRepository.
func NewBillingRepository(db *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{db: db}
}

const customerColumns = `id, organization_id, email, name, address_line1, address_line2,
	city, state, postal_code, country, created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.BillingCustomer, error) {
	var c domain.BillingCustomer
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Email, &c.Name, &c.AddressLine1, &c.AddressLine2,
		&c.City, &c.State, &c.PostalCode, &c.Country, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateCustomer returns the organization's billing customer, creating
// it lazily on first checkout. The unique organization constraint makes the
// insert race-safe.
func (r *BillingRepository) GetOrCreateCustomer(ctx context.Context, orgID, email, name string) (*domain.BillingCustomer, error) {
	now := time.Now()
	query := `
		INSERT INTO billing_customers (id, organization_id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (organization_id) DO UPDATE SET updated_at = NOW()
		RETURNING ` + customerColumns
	c, err := scanCustomer(r.db.QueryRow(ctx, query, uuid.New().String(), orgID, email, name, now))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create billing customer: %w", err)
	}
	return c, nil
}

const methodColumns = `id, organization_id, billing_customer_id, gateway_token,
	card_last4, card_brand, exp_month, exp_year, is_default, created_at, updated_at`

func scanMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := row.Scan(
		&m.ID, &m.OrganizationID, &m.BillingCustomerID, &m.GatewayToken,
		&m.CardLast4, &m.CardBrand, &m.ExpMonth, &m.ExpYear, &m.IsDefault,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMethods returns the organization's payment methods, default first.
func (r *BillingRepository) ListMethods(ctx context.Context, orgID string) ([]domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumns + `
		FROM payment_methods WHERE organization_id = $1
		ORDER BY is_default DESC, created_at ASC`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, *m)
	}
	return methods, rows.Err()
}

// GetMethod returns a payment method scoped to the organization, or nil.
// The organization filter is the tenant-isolation check.
func (r *BillingRepository) GetMethod(ctx context.Context, orgID, id string) (*domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumns + `
		FROM payment_methods WHERE id = $1 AND organization_id = $2`
	m, err := scanMethod(r.db.QueryRow(ctx, query, id, orgID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	return m, nil
}

// UpsertMethod saves a gateway token, matching an existing method by
// organization + last-4 and updating it in place, else inserting a new one.
// The first method an organization saves becomes its default. Runs in a
// serializable transaction so concurrent callbacks cannot create duplicates
// or two defaults.
func (r *BillingRepository) UpsertMethod(ctx context.Context, m *domain.PaymentMethod) (*domain.PaymentMethod, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanMethod(tx.QueryRow(ctx, `
		SELECT `+methodColumns+`
		FROM payment_methods
		WHERE organization_id = $1 AND card_last4 = $2
		FOR UPDATE`,
		m.OrganizationID, m.CardLast4,
	))
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to find existing payment method: %w", err)
	}

	var saved *domain.PaymentMethod
	if existing != nil {
		saved, err = scanMethod(tx.QueryRow(ctx, `
			UPDATE payment_methods SET
				gateway_token = $2, card_brand = $3, exp_month = $4, exp_year = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING `+methodColumns,
			existing.ID, m.GatewayToken, m.CardBrand, m.ExpMonth, m.ExpYear,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to update payment method: %w", err)
		}
	} else {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM payment_methods WHERE organization_id = $1`,
			m.OrganizationID,
		).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count payment methods: %w", err)
		}

		now := time.Now()
		saved, err = scanMethod(tx.QueryRow(ctx, `
			INSERT INTO payment_methods (`+methodColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			RETURNING `+methodColumns,
			uuid.New().String(), m.OrganizationID, m.BillingCustomerID, m.GatewayToken,
			m.CardLast4, m.CardBrand, m.ExpMonth, m.ExpYear, count == 0, now,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to insert payment method: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment method upsert: %w", err)
	}
	return saved, nil
}

// SetDefaultMethod marks the given method as the organization's default,
// clearing the previous default in the same transaction.
func (r *BillingRepository) SetDefaultMethod(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = FALSE, updated_at = NOW()
		 WHERE organization_id = $1 AND is_default`, orgID,
	); err != nil {
		return fmt.Errorf("failed to clear default payment method: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = TRUE, updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2`, id, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to set default payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("payment method not found")
	}

	return tx.Commit(ctx)
}

// DeleteMethod removes a payment method. If it was the default, the oldest
// remaining method (if any) is promoted so the one-default invariant holds.
func (r *BillingRepository) DeleteMethod(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var wasDefault bool
	err = tx.QueryRow(ctx,
		`DELETE FROM payment_methods WHERE id = $1 AND organization_id = $2 RETURNING is_default`,
		id, orgID,
	).Scan(&wasDefault)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound("payment method not found")
		}
		return fmt.Errorf("failed to delete payment method: %w", err)
	}

	if wasDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE payment_methods SET is_default = TRUE, updated_at = NOW()
			WHERE id = (
				SELECT id FROM payment_methods
				WHERE organization_id = $1
				ORDER BY created_at ASC LIMIT 1
			)`, orgID,
		); err != nil {
			return fmt.Errorf("failed to promote replacement default: %w", err)
		}
	}

	return tx.Commit(ctx)
}
