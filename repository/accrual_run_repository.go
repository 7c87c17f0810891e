package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"investor/domain/entities"
	"investor/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const accrualRunColumns = `
		id, started_at, finished_at, investments_scanned, investments_accrued,
		investments_completed, investments_failed, total_returns_accrued,
		execution_summary, created_at`

// AccrualRunRepository implements the accrual run audit log
type AccrualRunRepository struct {
	q Queryable
}

// NewAccrualRunRepository creates a new accrual run repository
func NewAccrualRunRepository(q Queryable) interfaces.AccrualRunRepository {
	return &AccrualRunRepository{q: q}
}

// Create records a finished run
func (r *AccrualRunRepository) Create(ctx context.Context, run *entities.AccrualRun) error {
	var summaryJSON []byte
	if run.ExecutionSummary != nil {
		var err error
		summaryJSON, err = json.Marshal(run.ExecutionSummary)
		if err != nil {
			return fmt.Errorf("failed to marshal execution summary: %w", err)
		}
	}

	query := `
		INSERT INTO accrual_runs (
			started_at, finished_at, investments_scanned, investments_accrued,
			investments_completed, investments_failed, total_returns_accrued, execution_summary
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		run.StartedAt,
		run.FinishedAt,
		run.InvestmentsScanned,
		run.InvestmentsAccrued,
		run.InvestmentsCompleted,
		run.InvestmentsFailed,
		run.TotalReturnsAccrued,
		summaryJSON,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create accrual run started at %s: %w",
			run.StartedAt.Format(time.RFC3339), err)
	}

	return nil
}

// GetLatest returns the most recent run
func (r *AccrualRunRepository) GetLatest(ctx context.Context) (*entities.AccrualRun, error) {
	query := `
		SELECT ` + accrualRunColumns + `
		FROM accrual_runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`

	run, err := scanAccrualRun(r.q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest accrual run: %w", err)
	}
	return run, nil
}

// ListSince returns runs started at or after since, newest first
func (r *AccrualRunRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*entities.AccrualRun, error) {
	query := `
		SELECT ` + accrualRunColumns + `
		FROM accrual_runs
		WHERE started_at >= $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accrual runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*entities.AccrualRun, 0)
	for rows.Next() {
		run, err := scanAccrualRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accrual run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accrual runs: %w", err)
	}
	return runs, nil
}

func scanAccrualRun(row pgx.Row) (*entities.AccrualRun, error) {
	var run entities.AccrualRun
	var summaryJSON []byte

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.InvestmentsScanned,
		&run.InvestmentsAccrued,
		&run.InvestmentsCompleted,
		&run.InvestmentsFailed,
		&run.TotalReturnsAccrued,
		&summaryJSON,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}
	return &run, nil
}
