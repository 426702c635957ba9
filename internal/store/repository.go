/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the economy-service. By defining an interface,
 * we decouple the guardrail logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yield/economy-service/internal/domain"
)

// SpendCampaignBudgetParams carries everything the atomic spend primitive needs
// to re-validate both guardrails inside one database transaction.
type SpendCampaignBudgetParams struct {
	UserID            uuid.UUID
	CampaignID        uuid.UUID
	SubmissionID      *uuid.UUID
	Points            int64
	TransactionType   domain.TransactionType
	Description       string
	TotalBudgetPoints int64
	DailyLimit        int64
	DayStart          time.Time
	DayEnd            time.Time
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User profile and point ledger methods
	FindUserProfileByID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
	SumEarnedPoints(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CreatePointTransaction(ctx context.Context, tx *domain.PointTransaction) error
	SumEarnedPointsPlatform(ctx context.Context, from, to time.Time) (int64, error)

	// Campaign and submission methods
	FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	FindActiveCampaignIDs(ctx context.Context) ([]uuid.UUID, error)
	CountActiveCampaigns(ctx context.Context) (int64, error)
	GetCampaignSubmissionTotals(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignSubmissionTotals, error)
	AddCampaignFunding(ctx context.Context, campaignID uuid.UUID, amountUSDCents int64) error
	UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error

	// SpendCampaignBudgetAtomic re-checks the campaign budget and the user's
	// daily capacity under a row lock, then inserts the ledger entry and stamps
	// the submission's calculated points, all in one transaction. It fails with
	// ErrCampaignBudgetExhausted or ErrDailyCapacityExhausted instead of
	// overspending when a concurrent award won the race.
	SpendCampaignBudgetAtomic(ctx context.Context, params SpendCampaignBudgetParams) (*domain.PointTransaction, error)

	// Admin notification methods. CreateAdminNotification reports false when an
	// identical notification (by dedupe key) already exists.
	CreateAdminNotification(ctx context.Context, notification *domain.AdminNotification) (bool, error)
}
