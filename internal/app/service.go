/**
 * @description
 * This file contains the core guardrail logic for the economy-service. The
 * `Service` struct owns the four public operations of the point economy:
 * daily earning capacity, campaign budget tracking, safe award calculation,
 * and the platform overview / emergency budget control.
 *
 * Key properties:
 * - Derived figures (earning stats, budget info) are recomputed from the
 *   ledger on every call; nothing is cached across requests.
 * - The award-and-persist path delegates the final budget and capacity checks
 *   to an atomic repository primitive, so concurrent awards cannot jointly
 *   overspend a campaign.
 * - Every operation takes an explicit `now` where the calendar matters, so
 *   day and month windows are deterministic under test.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yield/economy-service/internal/domain"
	"github.com/yield/economy-service/internal/store"
	"github.com/yield/economy-service/pkg/rabbitmq"
)

var (
	ErrInvalidBasePoints      = errors.New("base points must be positive")
	ErrInvalidQualityScore    = errors.New("quality score must be between 0 and 100")
	ErrAwardRateLimited       = errors.New("award rate limit exceeded")
	ErrInvalidAdjustmentValue = errors.New("adjustment points must be non-zero")
)

// AwardRateLimiter throttles the award path per subject. A nil limiter
// disables throttling.
type AwardRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the point-economy guardrail operations.
type Service struct {
	repo                    store.Repository
	eventProducer           rabbitmq.Publisher
	awardRateLimiter        AwardRateLimiter
	awardRateLimitPerMinute int
}

// NewService creates a new economy service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		eventProducer: producer,
	}
}

// SetAwardRateLimiter enables per-user throttling on the award path.
func (s *Service) SetAwardRateLimiter(limiter AwardRateLimiter, perMinute int) {
	s.awardRateLimiter = limiter
	s.awardRateLimitPerMinute = perMinute
}

// utcDayWindow returns the [start, end) bounds of the UTC calendar day
// containing the given instant.
func utcDayWindow(now time.Time) (time.Time, time.Time) {
	t := now.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// utcMonthStart returns the first instant of the UTC calendar month containing
// the given instant.
func utcMonthStart(now time.Time) time.Time {
	t := now.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// GetUserDailyEarningStats computes a user's earnings for the UTC calendar day
// of `now` and their tier-based cap. A missing profile resolves to the
// new-user tier rather than failing, which keeps the earning gate
// conservative; store failures propagate.
func (s *Service) GetUserDailyEarningStats(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.UserEarningStats, error) {
	dayStart, dayEnd := utcDayWindow(now)

	earned, err := s.repo.SumEarnedPoints(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily earnings: %w", err)
	}

	profile, err := s.repo.FindUserProfileByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to load user profile: %w", err)
		}
		log.Printf("level=warn component=economy msg=\"profile missing; falling back to new-user tier\" user_id=%s", userID)
		profile = nil
	}

	tier := ResolveTier(profile, now)
	limit := domain.DailyLimitForTier(tier)

	remaining := limit - earned
	if remaining < 0 {
		remaining = 0
	}

	return &domain.UserEarningStats{
		UserID:            userID,
		Tier:              tier,
		DailyEarnings:     earned,
		DailyLimit:        limit,
		CanEarnMore:       earned < limit,
		RemainingCapacity: remaining,
	}, nil
}

// GetCampaignBudgetInfo computes a campaign's point budget and consumption
// from the submission ledger. Fails with store.ErrCampaignNotFound when the
// campaign does not exist.
func (s *Service) GetCampaignBudgetInfo(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignBudgetInfo, error) {
	campaign, err := s.repo.FindCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.GetCampaignSubmissionTotals(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign spend: %w", err)
	}

	totalPoints := domain.BudgetPoints(campaign.BudgetUSDCents)
	remaining := totalPoints - totals.SpentPoints
	if remaining < 0 {
		remaining = 0
	}

	return &domain.CampaignBudgetInfo{
		CampaignID:          campaignID,
		TotalBudgetUSDCents: campaign.BudgetUSDCents,
		TotalBudgetPoints:   totalPoints,
		SpentPoints:         totals.SpentPoints,
		RemainingPoints:     remaining,
		ApprovedSubmissions: totals.ApprovedCount,
		ParticipantCount:    totals.ParticipantCount,
		IsOverBudget:        totals.SpentPoints >= totalPoints,
	}, nil
}

// CalculateSafePointAward runs the award gate pipeline against the current
// ledger state. It is a pure calculator: nothing is persisted, and the caller
// decides whether to commit the result via AwardPoints.
func (s *Service) CalculateSafePointAward(ctx context.Context, userID, campaignID uuid.UUID, basePoints int64, qualityScore *int, now time.Time) (*domain.PointAward, error) {
	award, _, _, err := s.computeAward(ctx, userID, campaignID, basePoints, qualityScore, now)
	return award, err
}

// computeAward fetches the current guardrail figures and runs the pipeline,
// returning the figures alongside the award so the persist path can reuse them.
func (s *Service) computeAward(ctx context.Context, userID, campaignID uuid.UUID, basePoints int64, qualityScore *int, now time.Time) (*domain.PointAward, *domain.UserEarningStats, *domain.CampaignBudgetInfo, error) {
	if basePoints <= 0 {
		return nil, nil, nil, ErrInvalidBasePoints
	}
	if qualityScore != nil && (*qualityScore < 0 || *qualityScore > 100) {
		return nil, nil, nil, ErrInvalidQualityScore
	}

	stats, err := s.GetUserDailyEarningStats(ctx, userID, now)
	if err != nil {
		return nil, nil, nil, err
	}
	budget, err := s.GetCampaignBudgetInfo(ctx, campaignID)
	if err != nil {
		return nil, nil, nil, err
	}

	award := runAwardPipeline(awardInput{
		basePoints:   basePoints,
		stats:        stats,
		budget:       budget,
		qualityScore: qualityScore,
	})
	return award, stats, budget, nil
}

// AwardPoints runs the calculator and, unless the award was hard-stopped,
// persists it through the atomic spend primitive. When a concurrent award wins
// the race between calculation and persistence, the atomic check fails and the
// returned award reports the corresponding hard stop instead of overspending.
func (s *Service) AwardPoints(ctx context.Context, req domain.AwardRequest, now time.Time) (*domain.PointAward, *domain.PointTransaction, error) {
	if s.awardRateLimiter != nil && s.awardRateLimitPerMinute > 0 {
		count, _, err := s.awardRateLimiter.ConsumeRateLimit(ctx, "award", req.UserID.String(), s.awardRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Printf("level=warn component=economy msg=\"award rate limiter unavailable; allowing request\" user_id=%s err=%v", req.UserID, err)
		} else if count > s.awardRateLimitPerMinute {
			return nil, nil, ErrAwardRateLimited
		}
	}

	award, stats, budget, err := s.computeAward(ctx, req.UserID, req.CampaignID, req.BasePoints, req.QualityScore, now)
	if err != nil {
		return nil, nil, err
	}
	if award.HardStopped() {
		return award, nil, nil
	}

	dayStart, dayEnd := utcDayWindow(now)
	record, err := s.repo.SpendCampaignBudgetAtomic(ctx, store.SpendCampaignBudgetParams{
		UserID:            req.UserID,
		CampaignID:        req.CampaignID,
		SubmissionID:      req.SubmissionID,
		Points:            award.AwardedPoints,
		TransactionType:   domain.TransactionTaskCompletion,
		Description:       "Task completion award",
		TotalBudgetPoints: budget.TotalBudgetPoints,
		DailyLimit:        stats.DailyLimit,
		DayStart:          dayStart,
		DayEnd:            dayEnd,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCampaignBudgetExhausted):
			award.AwardedPoints = 0
			award.LimitedBy = append(award.LimitedBy, domain.LimitCampaignBudgetExceeded)
			award.Explanation = append(award.Explanation, "campaign budget was consumed by a concurrent award before this one could be recorded")
			return award, nil, nil
		case errors.Is(err, store.ErrDailyCapacityExhausted):
			award.AwardedPoints = 0
			award.LimitedBy = append(award.LimitedBy, domain.LimitDailyLimitExceeded)
			award.Explanation = append(award.Explanation, "daily capacity was consumed by a concurrent award before this one could be recorded")
			return award, nil, nil
		default:
			return nil, nil, fmt.Errorf("failed to persist award: %w", err)
		}
	}

	if s.eventProducer != nil {
		event := rabbitmq.PointsAwardedEvent{
			TransactionID: record.ID,
			UserID:        req.UserID,
			CampaignID:    req.CampaignID,
			Points:        award.AwardedPoints,
			LimitedBy:     award.LimitedBy,
			Timestamp:     now.UTC(),
		}
		if err := s.eventProducer.PublishPointsAwardedEvent(ctx, event); err != nil {
			log.Printf("level=warn component=economy msg=\"points awarded event publish failed\" user_id=%s campaign_id=%s err=%v", req.UserID, req.CampaignID, err)
		}
	}

	return award, record, nil
}

// RecordManualAdjustment appends an operator-initiated adjustment to the point
// ledger. Adjustments use the "other" transaction type, so they never count
// toward daily earning caps and may be negative (clawbacks, support credits).
func (s *Service) RecordManualAdjustment(ctx context.Context, userID uuid.UUID, points int64, description string) (*domain.PointTransaction, error) {
	if points == 0 {
		return nil, ErrInvalidAdjustmentValue
	}
	if description == "" {
		description = "Manual balance adjustment"
	}

	record := &domain.PointTransaction{
		ID:              uuid.New(),
		UserID:          userID,
		Points:          points,
		TransactionType: domain.TransactionOther,
		Description:     description,
	}
	if err := s.repo.CreatePointTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record manual adjustment: %w", err)
	}

	log.Printf("level=info component=economy msg=\"manual adjustment recorded\" user_id=%s points=%d", userID, points)
	return record, nil
}

// GetPlatformEconomicOverview aggregates platform-wide payout figures for the
// admin dashboard.
func (s *Service) GetPlatformEconomicOverview(ctx context.Context, now time.Time) (*domain.PlatformEconomicOverview, error) {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	campaigns, err := s.repo.CountActiveCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active campaigns: %w", err)
	}

	dayStart, dayEnd := utcDayWindow(now)
	today, err := s.repo.SumEarnedPointsPlatform(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to sum today's payouts: %w", err)
	}
	month, err := s.repo.SumEarnedPointsPlatform(ctx, utcMonthStart(now), dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to sum this month's payouts: %w", err)
	}

	return &domain.PlatformEconomicOverview{
		TotalUsers:        users,
		ActiveCampaigns:   campaigns,
		PointsIssuedToday: today,
		PointsIssuedMonth: month,
	}, nil
}

// EmergencyBudgetControl pauses a campaign whose approved spend has reached
// its point budget, records a deduplicated admin notification, and publishes a
// pause event. Returns true when the campaign was (or already is) over budget.
// Calling it repeatedly on the same over-budget campaign is idempotent: the
// status write is a no-op and the notification dedupe key suppresses
// duplicates.
func (s *Service) EmergencyBudgetControl(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	info, err := s.GetCampaignBudgetInfo(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if !info.IsOverBudget {
		return false, nil
	}

	if err := s.repo.UpdateCampaignStatus(ctx, campaignID, domain.CampaignStatusPaused); err != nil {
		return false, fmt.Errorf("failed to pause campaign: %w", err)
	}

	dedupeKey := fmt.Sprintf("campaign_over_budget:%s", campaignID)
	inserted, err := s.repo.CreateAdminNotification(ctx, &domain.AdminNotification{
		Category: "economy",
		Title:    "Campaign paused: budget exhausted",
		Body: fmt.Sprintf("Campaign %s spent %d of %d budgeted points and was paused automatically.",
			campaignID, info.SpentPoints, info.TotalBudgetPoints),
		RelatedEntityID: &campaignID,
		DedupeKey:       &dedupeKey,
	})
	if err != nil {
		return false, fmt.Errorf("failed to record admin notification: %w", err)
	}

	if inserted {
		log.Printf("level=warn component=economy msg=\"campaign paused over budget\" campaign_id=%s spent=%d budget=%d",
			campaignID, info.SpentPoints, info.TotalBudgetPoints)
		if s.eventProducer != nil {
			event := rabbitmq.CampaignPausedEvent{
				CampaignID:   campaignID,
				SpentPoints:  info.SpentPoints,
				BudgetPoints: info.TotalBudgetPoints,
				Reason:       "budget_exhausted",
				Timestamp:    time.Now().UTC(),
			}
			if err := s.eventProducer.PublishCampaignPausedEvent(ctx, event); err != nil {
				log.Printf("level=warn component=economy msg=\"campaign paused event publish failed\" campaign_id=%s err=%v", campaignID, err)
			}
		}
	}

	return true, nil
}

// SweepOverBudgetCampaigns applies the emergency budget control to every
// active campaign and returns how many were paused. Individual campaign
// failures are logged and skipped so one bad record cannot stall the sweep.
func (s *Service) SweepOverBudgetCampaigns(ctx context.Context) (int, error) {
	ids, err := s.repo.FindActiveCampaignIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active campaigns: %w", err)
	}

	paused := 0
	for _, id := range ids {
		overBudget, err := s.EmergencyBudgetControl(ctx, id)
		if err != nil {
			log.Printf("level=error component=economy msg=\"sweep skipped campaign\" campaign_id=%s err=%v", id, err)
			continue
		}
		if overBudget {
			paused++
		}
	}
	return paused, nil
}
