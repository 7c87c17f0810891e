package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investor/domain/entities"
	"investor/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation           = "23505"
	openCorrelationConstraint = "idx_investments_open_correlation"
)

const investmentColumns = `
		id, owner_id, plan_amount, rate_per_minute::text, cycle_days, activation_bonus,
		status, accrued_returns, phone_number, correlation_id, secondary_correlation_id,
		external_receipt, result_code, result_description, created_at, last_accrual_at,
		settled_at, activated_at, completed_at, updated_at`

// InvestmentRepository implements investment data access on PostgreSQL
type InvestmentRepository struct {
	q Queryable
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(q Queryable) interfaces.InvestmentRepository {
	return &InvestmentRepository{q: q}
}

// Create inserts a new investment
func (r *InvestmentRepository) Create(ctx context.Context, inv *entities.Investment) error {
	query := `
		INSERT INTO investments (
			id, owner_id, plan_amount, rate_per_minute, cycle_days, activation_bonus,
			status, accrued_returns, phone_number, correlation_id, secondary_correlation_id,
			created_at, last_accrual_at
		)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		inv.ID,
		inv.OwnerID,
		inv.Plan.Amount,
		inv.Plan.RatePerMinute.String(),
		inv.Plan.CycleDays,
		inv.Plan.ActivationBonus,
		string(inv.Status),
		inv.AccruedReturns,
		inv.PhoneNumber,
		inv.CorrelationID,
		inv.SecondaryCorrelationID,
		inv.CreatedAt,
		inv.LastAccrualAt,
	).Scan(&inv.UpdatedAt)
	if isOpenCorrelationViolation(err) {
		return entities.ErrDuplicateCorrelation
	}
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}

	return nil
}

// GetByID retrieves an investment by its ID
func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	inv, err := scanInvestment(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment %s: %w", id, err)
	}
	return inv, nil
}

// GetByCorrelationID retrieves the investment backed by a payment. An open record wins
// over terminal ones; among terminal records the newest is returned.
func (r *InvestmentRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entities.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE correlation_id = $1
		ORDER BY (status IN ('pending', 'active')) DESC, created_at DESC
		LIMIT 1
	`

	inv, err := scanInvestment(r.q.QueryRow(ctx, query, correlationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment by correlation id: %w", err)
	}
	return inv, nil
}

// ListByOwner returns an owner's investments, newest first
func (r *InvestmentRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entities.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "owner", query, ownerID)
}

// ListByStatus returns every investment in a status, oldest first
func (r *InvestmentRepository) ListByStatus(ctx context.Context, status entities.InvestmentStatus) ([]*entities.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE status = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, "status", query, string(status))
}

// ListPendingCreatedBefore returns pending investments older than the cutoff
func (r *InvestmentRepository) ListPendingCreatedBefore(ctx context.Context, before time.Time) ([]*entities.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, "pending", query, before)
}

// UpdateIfStatus applies upd in a single statement guarded by the expected status.
// Returns and accrual time can only grow; identifiers, result and timestamps are
// written once.
func (r *InvestmentRepository) UpdateIfStatus(ctx context.Context, id uuid.UUID, expected entities.InvestmentStatus, upd entities.InvestmentUpdate) (*entities.Investment, error) {
	if err := upd.Validate(expected); err != nil {
		return nil, err
	}

	query := `
		UPDATE investments SET
			status                   = COALESCE($3, status),
			accrued_returns          = GREATEST(accrued_returns, COALESCE($4, accrued_returns)),
			last_accrual_at          = GREATEST(last_accrual_at, COALESCE($5, last_accrual_at)),
			correlation_id           = COALESCE(correlation_id, $6),
			secondary_correlation_id = COALESCE(secondary_correlation_id, $7),
			external_receipt         = COALESCE(external_receipt, $8),
			result_code              = COALESCE(result_code, $9),
			result_description       = COALESCE(result_description, $10),
			settled_at               = COALESCE(settled_at, $11),
			activated_at             = COALESCE(activated_at, $12),
			completed_at             = COALESCE(completed_at, $13),
			updated_at               = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + investmentColumns

	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}

	inv, err := scanInvestment(r.q.QueryRow(ctx, query,
		id,
		string(expected),
		status,
		upd.AccruedReturns,
		upd.LastAccrualAt,
		upd.CorrelationID,
		upd.SecondaryCorrelationID,
		upd.ExternalReceipt,
		upd.ResultCode,
		upd.ResultDescription,
		upd.SettledAt,
		upd.ActivatedAt,
		upd.CompletedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrStaleState
	}
	if isOpenCorrelationViolation(err) {
		return nil, entities.ErrDuplicateCorrelation
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update investment %s: %w", id, err)
	}
	return inv, nil
}

func (r *InvestmentRepository) list(ctx context.Context, what, query string, arg any) ([]*entities.Investment, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments by %s: %w", what, err)
	}
	defer rows.Close()

	investments := make([]*entities.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate investments: %w", err)
	}
	return investments, nil
}

func scanInvestment(row pgx.Row) (*entities.Investment, error) {
	var inv entities.Investment
	var rate, status string

	err := row.Scan(
		&inv.ID,
		&inv.OwnerID,
		&inv.Plan.Amount,
		&rate,
		&inv.Plan.CycleDays,
		&inv.Plan.ActivationBonus,
		&status,
		&inv.AccruedReturns,
		&inv.PhoneNumber,
		&inv.CorrelationID,
		&inv.SecondaryCorrelationID,
		&inv.ExternalReceipt,
		&inv.ResultCode,
		&inv.ResultDescription,
		&inv.CreatedAt,
		&inv.LastAccrualAt,
		&inv.SettledAt,
		&inv.ActivatedAt,
		&inv.CompletedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = entities.InvestmentStatus(status)
	inv.Plan.RatePerMinute, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return &inv, nil
}

func isOpenCorrelationViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == openCorrelationConstraint
}
