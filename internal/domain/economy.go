/**
 * @description
 * This file defines the core domain models for the economy-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Points are stored as `int64` integers. All multiplications floor, never round,
 *   so the platform can only under-pay relative to the nominal reward.
 * - Campaign budgets are stored in USD cents (`int64` smallest currency unit),
 *   which avoids floating-point inaccuracies with financial data.
 * - Derived structures (UserEarningStats, CampaignBudgetInfo) are recomputed from
 *   the ledger on every call and never persisted or cached.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a point ledger entry.
type TransactionType string

const (
	TransactionTaskCompletion TransactionType = "task_completion"
	TransactionQualityBonus   TransactionType = "quality_bonus"
	TransactionEarlyBirdBonus TransactionType = "early_bird_bonus"
	TransactionSpinBonus      TransactionType = "spin_bonus"
	TransactionTaskBoost      TransactionType = "task_boost"
	TransactionOther          TransactionType = "other"
)

// EarnableTransactionTypes are the ledger entry types that count toward a user's
// daily earning cap. Spin and boost rewards sit outside the cap.
var EarnableTransactionTypes = []TransactionType{
	TransactionTaskCompletion,
	TransactionQualityBonus,
	TransactionEarlyBirdBonus,
}

// PointTransaction is one immutable ledger entry. The sum of a user's positive
// earnable transactions for a UTC calendar day is their daily earnings; the
// ledger is the source of truth, never a cached counter.
type PointTransaction struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	CampaignID      *uuid.UUID      `json:"campaign_id,omitempty"`
	SubmissionID    *uuid.UUID      `json:"submission_id,omitempty"`
	Points          int64           `json:"points"` // signed; positive = earned
	TransactionType TransactionType `json:"transaction_type"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UserProfile is the subset of the user record the economy-service reads.
// Tier is a pure function of these fields and is never stored.
type UserProfile struct {
	ID             uuid.UUID `json:"id"`
	TasksCompleted int       `json:"tasks_completed"`
	Level          int       `json:"level"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tier is a user classification governing their daily earning cap.
type Tier string

const (
	TierNew     Tier = "new_user"
	TierRegular Tier = "regular"
	TierVeteran Tier = "veteran"
	TierVIP     Tier = "vip"
)

// UserEarningStats is the derived view of a user's remaining daily earning
// capacity. Recomputed on demand; never cached across requests.
type UserEarningStats struct {
	UserID            uuid.UUID `json:"user_id"`
	Tier              Tier      `json:"tier"`
	DailyEarnings     int64     `json:"daily_earnings"`
	DailyLimit        int64     `json:"daily_limit"`
	CanEarnMore       bool      `json:"can_earn_more"`
	RemainingCapacity int64     `json:"remaining_capacity"`
}

// Campaign statuses.
const (
	CampaignStatusActive = "active"
	CampaignStatusPaused = "paused"
	CampaignStatusEnded  = "ended"
)

// Campaign is a brand-funded pool of tasks. BudgetUSDCents is the funded USD
// allocation; the payment webhook processor owns increasing it.
type Campaign struct {
	ID            uuid.UUID `json:"id"`
	BrandID       uuid.UUID `json:"brand_id"`
	Title         string    `json:"title"`
	Points        int64     `json:"points"` // nominal reward per task
	BudgetUSDCents int64    `json:"budget_usd_cents"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Task submission statuses. Only approved submissions count toward campaign spend.
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

// TaskSubmission is a user's submission against a campaign task. Once approved,
// CalculatedPoints becomes immutable and contributes to budget consumption.
type TaskSubmission struct {
	ID               uuid.UUID `json:"id"`
	CampaignID       uuid.UUID `json:"campaign_id"`
	UserID           uuid.UUID `json:"user_id"`
	Status           string    `json:"status"`
	CalculatedPoints *int64    `json:"calculated_points,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// CampaignBudgetInfo is the derived budget view for one campaign. Recomputed
// from the submission ledger on every call so concurrent award calculations
// never read a stale figure.
type CampaignBudgetInfo struct {
	CampaignID          uuid.UUID `json:"campaign_id"`
	TotalBudgetUSDCents int64     `json:"total_budget_usd_cents"`
	TotalBudgetPoints   int64     `json:"total_budget_points"`
	SpentPoints         int64     `json:"spent_points"`
	RemainingPoints     int64     `json:"remaining_points"`
	ApprovedSubmissions int64     `json:"approved_submissions"`
	ParticipantCount    int64     `json:"participant_count"`
	IsOverBudget        bool      `json:"is_over_budget"`
}

// CampaignSubmissionTotals aggregates the submission ledger for one campaign.
type CampaignSubmissionTotals struct {
	SpentPoints      int64
	ApprovedCount    int64
	ParticipantCount int64
}

// Award limitation reasons, surfaced through PointAward.LimitedBy.
const (
	LimitDailyLimitExceeded     = "daily_limit_exceeded"
	LimitDailyCapacity          = "daily_capacity"
	LimitCampaignBudgetExceeded = "campaign_budget_exceeded"
	LimitCampaignBudget         = "campaign_budget"
	LimitQualityPenalty         = "quality_penalty"
)

// PointAward is the outcome of the safe award calculation. A hard-stopped award
// carries zero points; any other award carries at least one. Explanation holds
// a human-readable audit trail of every clamp and adjustment applied.
type PointAward struct {
	AwardedPoints  int64    `json:"awarded_points"`
	OriginalPoints int64    `json:"original_points"`
	LimitedBy      []string `json:"limited_by"`
	Explanation    []string `json:"explanation"`
}

// HardStopped reports whether the award was zeroed by a hard gate (daily limit
// or campaign budget already exhausted) rather than clamped.
func (a *PointAward) HardStopped() bool {
	for _, reason := range a.LimitedBy {
		if reason == LimitDailyLimitExceeded || reason == LimitCampaignBudgetExceeded {
			return true
		}
	}
	return false
}

// AdminNotification is an operator-facing alert record. DedupeKey prevents the
// emergency budget control from inserting the same alert on every sweep.
type AdminNotification struct {
	ID              uuid.UUID  `json:"id"`
	Category        string     `json:"category"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	RelatedEntityID *uuid.UUID `json:"related_entity_id,omitempty"`
	DedupeKey       *string    `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PlatformEconomicOverview aggregates platform-wide payout figures for the
// admin dashboard.
type PlatformEconomicOverview struct {
	TotalUsers          int64 `json:"total_users"`
	ActiveCampaigns     int64 `json:"active_campaigns"`
	PointsIssuedToday   int64 `json:"points_issued_today"`
	PointsIssuedMonth   int64 `json:"points_issued_this_month"`
}

// AwardRequest is the DTO for award calculation and persistence API requests.
type AwardRequest struct {
	UserID       uuid.UUID  `json:"user_id"`
	CampaignID   uuid.UUID  `json:"campaign_id"`
	SubmissionID *uuid.UUID `json:"submission_id,omitempty"`
	BasePoints   int64      `json:"base_points"`
	QualityScore *int       `json:"quality_score,omitempty"`
}
