package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yield/economy-service/internal/domain"
)

// SpendCampaignBudgetAtomic persists an award under a campaign row lock.
//
// The award calculator reads budget and capacity figures outside any
// transaction, so two near-simultaneous awards against the same campaign can
// both pass those checks. This method closes that window: it locks the
// campaign row, recomputes spend and the user's daily earnings inside the
// transaction, and refuses to insert the ledger entry if either guardrail
// would be breached.
func (r *PostgresRepository) SpendCampaignBudgetAtomic(ctx context.Context, params SpendCampaignBudgetParams) (*domain.PointTransaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the campaign row so concurrent spends serialize here.
	var status string
	lockQuery := `
		SELECT status
		FROM campaigns
		WHERE id = $1
		FOR UPDATE
	`
	if err := tx.QueryRow(ctx, lockQuery, params.CampaignID).Scan(&status); err != nil {
		return nil, fmt.Errorf("failed to lock campaign: %w", err)
	}
	if status != domain.CampaignStatusActive {
		return nil, ErrCampaignBudgetExhausted
	}

	// 2. Recompute spend under the lock and enforce the budget ceiling.
	var spent int64
	spendQuery := `
		SELECT COALESCE(SUM(calculated_points) FILTER (WHERE status = 'approved'), 0)
		FROM task_submissions
		WHERE campaign_id = $1
	`
	if err := tx.QueryRow(ctx, spendQuery, params.CampaignID).Scan(&spent); err != nil {
		return nil, fmt.Errorf("failed to recompute campaign spend: %w", err)
	}
	if spent+params.Points > params.TotalBudgetPoints {
		return nil, ErrCampaignBudgetExhausted
	}

	// 3. Recompute the user's daily earnings and enforce the tier cap.
	var earnedToday int64
	dailyQuery := `
		SELECT COALESCE(SUM(points), 0)
		FROM point_transactions
		WHERE user_id = $1
		  AND points > 0
		  AND transaction_type IN ` + earnableTypesSQL + `
		  AND created_at >= $2
		  AND created_at < $3
	`
	if err := tx.QueryRow(ctx, dailyQuery, params.UserID, params.DayStart, params.DayEnd).Scan(&earnedToday); err != nil {
		return nil, fmt.Errorf("failed to recompute daily earnings: %w", err)
	}
	if earnedToday+params.Points > params.DailyLimit {
		return nil, ErrDailyCapacityExhausted
	}

	// 4. Append the ledger entry.
	record := &domain.PointTransaction{
		ID:              uuid.New(),
		UserID:          params.UserID,
		CampaignID:      &params.CampaignID,
		SubmissionID:    params.SubmissionID,
		Points:          params.Points,
		TransactionType: params.TransactionType,
		Description:     params.Description,
	}
	insertQuery := `
		INSERT INTO point_transactions (id, user_id, campaign_id, submission_id, points, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		record.ID, record.UserID, record.CampaignID, record.SubmissionID,
		record.Points, record.TransactionType, record.Description,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert point transaction: %w", err)
	}

	// 5. Stamp the submission's awarded points so future spend recomputation
	//    sees this award once the submission is approved.
	if params.SubmissionID != nil {
		stampQuery := `
			UPDATE task_submissions
			SET calculated_points = $2
			WHERE id = $1 AND campaign_id = $3
		`
		tag, err := tx.Exec(ctx, stampQuery, *params.SubmissionID, params.Points, params.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("failed to stamp submission points: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrSubmissionNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit spend transaction: %w", err)
	}
	return record, nil
}
