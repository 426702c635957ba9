/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL queries and logic for interacting with the ledger
 * tables: user_profiles, point_transactions, campaigns, task_submissions and
 * admin_notifications.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and connection pool.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yield/economy-service/internal/domain"
)

var (
	ErrUserNotFound            = errors.New("user profile not found")
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrSubmissionNotFound      = errors.New("task submission not found")
	ErrCampaignBudgetExhausted = errors.New("campaign budget exhausted")
	ErrDailyCapacityExhausted  = errors.New("daily earning capacity exhausted")
)

// earnableTypesSQL is the transaction_type filter for earnings queries. Only
// these types count toward the daily cap; negative adjustments are excluded by
// the points > 0 predicate alongside it.
const earnableTypesSQL = `('task_completion', 'quality_bonus', 'early_bird_bonus')`

// PostgresRepository is the PostgreSQL implementation of the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository with the given connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserProfileByID retrieves the tier-relevant subset of a user's profile.
func (r *PostgresRepository) FindUserProfileByID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	query := `
		SELECT id, tasks_completed, level, created_at
		FROM user_profiles
		WHERE id = $1
	`
	var profile domain.UserProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.TasksCompleted,
		&profile.Level,
		&profile.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user profile: %w", err)
	}
	return &profile, nil
}

// SumEarnedPoints sums a user's positive earnable ledger entries in [from, to).
func (r *PostgresRepository) SumEarnedPoints(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM point_transactions
		WHERE user_id = $1
		  AND points > 0
		  AND transaction_type IN ` + earnableTypesSQL + `
		  AND created_at >= $2
		  AND created_at < $3
	`
	var total int64
	if err := r.db.QueryRow(ctx, query, userID, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum earned points: %w", err)
	}
	return total, nil
}

// CountUsers counts all registered user profiles.
func (r *PostgresRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CreatePointTransaction appends one entry to the point ledger.
func (r *PostgresRepository) CreatePointTransaction(ctx context.Context, tx *domain.PointTransaction) error {
	query := `
		INSERT INTO point_transactions (id, user_id, campaign_id, submission_id, points, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		tx.ID, tx.UserID, tx.CampaignID, tx.SubmissionID, tx.Points, tx.TransactionType, tx.Description,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create point transaction: %w", err)
	}
	return nil
}

// SumEarnedPointsPlatform sums positive earnable ledger entries across all
// users in [from, to).
func (r *PostgresRepository) SumEarnedPointsPlatform(ctx context.Context, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM point_transactions
		WHERE points > 0
		  AND transaction_type IN ` + earnableTypesSQL + `
		  AND created_at >= $1
		  AND created_at < $2
	`
	var total int64
	if err := r.db.QueryRow(ctx, query, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum platform earned points: %w", err)
	}
	return total, nil
}

// FindCampaignByID retrieves a campaign, including its funded USD budget.
func (r *PostgresRepository) FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	query := `
		SELECT id, brand_id, title, points, budget_usd_cents, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`
	var campaign domain.Campaign
	err := r.db.QueryRow(ctx, query, campaignID).Scan(
		&campaign.ID,
		&campaign.BrandID,
		&campaign.Title,
		&campaign.Points,
		&campaign.BudgetUSDCents,
		&campaign.Status,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to find campaign: %w", err)
	}
	return &campaign, nil
}

// FindActiveCampaignIDs lists the ids of all campaigns currently accepting
// submissions, for the over-budget sweep.
func (r *PostgresRepository) FindActiveCampaignIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM campaigns WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan campaign id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active campaigns: %w", err)
	}
	return ids, nil
}

// CountActiveCampaigns counts campaigns currently accepting submissions.
func (r *PostgresRepository) CountActiveCampaigns(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns WHERE status = 'active'`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active campaigns: %w", err)
	}
	return count, nil
}

// GetCampaignSubmissionTotals aggregates the submission ledger for a campaign:
// spent points over approved submissions, and participant counts.
func (r *PostgresRepository) GetCampaignSubmissionTotals(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignSubmissionTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(calculated_points) FILTER (WHERE status = 'approved'), 0),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*)
		FROM task_submissions
		WHERE campaign_id = $1
	`
	var totals domain.CampaignSubmissionTotals
	err := r.db.QueryRow(ctx, query, campaignID).Scan(
		&totals.SpentPoints,
		&totals.ApprovedCount,
		&totals.ParticipantCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign submissions: %w", err)
	}
	return &totals, nil
}

// AddCampaignFunding increases a campaign's funded USD budget. Called by the
// funding event consumer after a payment settles.
func (r *PostgresRepository) AddCampaignFunding(ctx context.Context, campaignID uuid.UUID, amountUSDCents int64) error {
	query := `
		UPDATE campaigns
		SET budget_usd_cents = budget_usd_cents + $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, campaignID, amountUSDCents)
	if err != nil {
		return fmt.Errorf("failed to add campaign funding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// UpdateCampaignStatus sets a campaign's lifecycle status.
func (r *PostgresRepository) UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	query := `
		UPDATE campaigns
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, campaignID, status)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// CreateAdminNotification inserts an operator alert. When a dedupe key is set
// and an alert with the same key already exists, the insert is skipped and the
// method reports false.
func (r *PostgresRepository) CreateAdminNotification(ctx context.Context, notification *domain.AdminNotification) (bool, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	query := `
		INSERT INTO admin_notifications (id, category, title, body, related_entity_id, dedupe_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (dedupe_key) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		notification.ID,
		notification.Category,
		notification.Title,
		notification.Body,
		notification.RelatedEntityID,
		notification.DedupeKey,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create admin notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
