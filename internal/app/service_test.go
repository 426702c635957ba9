package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yield/economy-service/internal/domain"
	"github.com/yield/economy-service/internal/store"
	"github.com/yield/economy-service/pkg/rabbitmq"
)

type economyRepoStub struct {
	store.Repository

	profile    *domain.UserProfile
	profileErr error
	earned     int64
	earnedErr  error
	campaign   *domain.Campaign
	campaignErr error
	totals     *domain.CampaignSubmissionTotals

	spendResult *domain.PointTransaction
	spendErr    error

	// First value is consumed on the first CreateAdminNotification call,
	// the second on the next, and so on.
	notifInsertedSeq []bool

	earnedFrom, earnedTo time.Time
	spendCalled          bool
	spendParams          store.SpendCampaignBudgetParams
	statusUpdates        []string
	notifications        []*domain.AdminNotification
	createdTransactions  []*domain.PointTransaction
}

func (s *economyRepoStub) FindUserProfileByID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.profile, nil
}

func (s *economyRepoStub) SumEarnedPoints(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	s.earnedFrom, s.earnedTo = from, to
	return s.earned, s.earnedErr
}

func (s *economyRepoStub) FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	if s.campaignErr != nil {
		return nil, s.campaignErr
	}
	return s.campaign, nil
}

func (s *economyRepoStub) GetCampaignSubmissionTotals(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignSubmissionTotals, error) {
	if s.totals != nil {
		return s.totals, nil
	}
	return &domain.CampaignSubmissionTotals{}, nil
}

func (s *economyRepoStub) UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *economyRepoStub) SpendCampaignBudgetAtomic(ctx context.Context, params store.SpendCampaignBudgetParams) (*domain.PointTransaction, error) {
	s.spendCalled = true
	s.spendParams = params
	return s.spendResult, s.spendErr
}

func (s *economyRepoStub) CreatePointTransaction(ctx context.Context, tx *domain.PointTransaction) error {
	s.createdTransactions = append(s.createdTransactions, tx)
	return nil
}

func (s *economyRepoStub) CreateAdminNotification(ctx context.Context, notification *domain.AdminNotification) (bool, error) {
	s.notifications = append(s.notifications, notification)
	if len(s.notifInsertedSeq) == 0 {
		return true, nil
	}
	inserted := s.notifInsertedSeq[0]
	s.notifInsertedSeq = s.notifInsertedSeq[1:]
	return inserted, nil
}

type producerStub struct {
	awarded []rabbitmq.PointsAwardedEvent
	paused  []rabbitmq.CampaignPausedEvent
}

func (p *producerStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *producerStub) PublishPointsAwardedEvent(ctx context.Context, event rabbitmq.PointsAwardedEvent) error {
	p.awarded = append(p.awarded, event)
	return nil
}

func (p *producerStub) PublishCampaignPausedEvent(ctx context.Context, event rabbitmq.CampaignPausedEvent) error {
	p.paused = append(p.paused, event)
	return nil
}

func (p *producerStub) Close() {}

type rateLimiterStub struct {
	count int
	err   error
}

func (l *rateLimiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return l.count, 0, l.err
}

func activeCampaign(budgetUSDCents int64) *domain.Campaign {
	return &domain.Campaign{
		ID:             uuid.New(),
		BrandID:        uuid.New(),
		Title:          "Test campaign",
		Points:         100,
		BudgetUSDCents: budgetUSDCents,
		Status:         domain.CampaignStatusActive,
	}
}

func TestGetUserDailyEarningStats_UsesUTCDayWindow(t *testing.T) {
	now := time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC)
	repo := &economyRepoStub{
		profile: &domain.UserProfile{
			ID:             uuid.New(),
			TasksCompleted: 150,
			Level:          3,
			CreatedAt:      now.AddDate(-1, 0, 0),
		},
		earned: 320,
	}
	svc := NewService(repo, nil)

	stats, err := svc.GetUserDailyEarningStats(context.Background(), repo.profile.ID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFrom := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	if !repo.earnedFrom.Equal(wantFrom) {
		t.Errorf("expected day window to start at %v, got %v", wantFrom, repo.earnedFrom)
	}
	if !repo.earnedTo.Equal(wantFrom.Add(24 * time.Hour)) {
		t.Errorf("expected day window to end at %v, got %v", wantFrom.Add(24*time.Hour), repo.earnedTo)
	}
	if stats.Tier != domain.TierVeteran {
		t.Errorf("expected veteran tier for 150 completed tasks, got %q", stats.Tier)
	}
	if stats.DailyLimit != 1000 {
		t.Errorf("expected veteran daily limit 1000, got %d", stats.DailyLimit)
	}
	if stats.RemainingCapacity != 680 {
		t.Errorf("expected remaining capacity 680, got %d", stats.RemainingCapacity)
	}
	if !stats.CanEarnMore {
		t.Error("expected user below the cap to be able to earn more")
	}
}

func TestGetUserDailyEarningStats_MissingProfileFallsBackToNewUserTier(t *testing.T) {
	repo := &economyRepoStub{profileErr: store.ErrUserNotFound, earned: 100}
	svc := NewService(repo, nil)

	stats, err := svc.GetUserDailyEarningStats(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Tier != domain.TierNew {
		t.Errorf("expected new-user tier fallback, got %q", stats.Tier)
	}
	if stats.DailyLimit != 500 {
		t.Errorf("expected new-user daily limit 500, got %d", stats.DailyLimit)
	}
}

func TestGetUserDailyEarningStats_StoreErrorPropagates(t *testing.T) {
	repo := &economyRepoStub{profileErr: errors.New("connection refused")}
	svc := NewService(repo, nil)

	if _, err := svc.GetUserDailyEarningStats(context.Background(), uuid.New(), time.Now()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestGetUserDailyEarningStats_ClampsRemainingCapacityAtZero(t *testing.T) {
	repo := &economyRepoStub{profileErr: store.ErrUserNotFound, earned: 620}
	svc := NewService(repo, nil)

	stats, err := svc.GetUserDailyEarningStats(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.RemainingCapacity != 0 {
		t.Errorf("expected remaining capacity clamped to 0, got %d", stats.RemainingCapacity)
	}
	if stats.CanEarnMore {
		t.Error("expected user over the cap to be unable to earn more")
	}
}

func TestGetCampaignBudgetInfo_ConvertsFundingToPoints(t *testing.T) {
	// $10.00 funded: 1000 cents * 70% * 200 points/dollar / 10000 = 1400 points.
	repo := &economyRepoStub{
		campaign: activeCampaign(1000),
		totals:   &domain.CampaignSubmissionTotals{SpentPoints: 400, ApprovedCount: 3, ParticipantCount: 4},
	}
	svc := NewService(repo, nil)

	info, err := svc.GetCampaignBudgetInfo(context.Background(), repo.campaign.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TotalBudgetPoints != 1400 {
		t.Errorf("expected 1400 budget points, got %d", info.TotalBudgetPoints)
	}
	if info.RemainingPoints != 1000 {
		t.Errorf("expected 1000 remaining points, got %d", info.RemainingPoints)
	}
	if info.IsOverBudget {
		t.Error("did not expect campaign with remaining budget to be over budget")
	}
	if info.ApprovedSubmissions != 3 {
		t.Errorf("expected 3 approved submissions, got %d", info.ApprovedSubmissions)
	}
}

func TestGetCampaignBudgetInfo_CapsBudgetPoints(t *testing.T) {
	// $1000 funded would convert to 140000 points; the per-campaign ceiling
	// caps it at 100000.
	repo := &economyRepoStub{campaign: activeCampaign(100000)}
	svc := NewService(repo, nil)

	info, err := svc.GetCampaignBudgetInfo(context.Background(), repo.campaign.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TotalBudgetPoints != 100000 {
		t.Errorf("expected budget points capped at 100000, got %d", info.TotalBudgetPoints)
	}
}

func TestGetCampaignBudgetInfo_OverBudgetFlag(t *testing.T) {
	repo := &economyRepoStub{
		campaign: activeCampaign(1000),
		totals:   &domain.CampaignSubmissionTotals{SpentPoints: 1400},
	}
	svc := NewService(repo, nil)

	info, err := svc.GetCampaignBudgetInfo(context.Background(), repo.campaign.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsOverBudget {
		t.Error("expected campaign at 100% spend to be over budget")
	}
	if info.RemainingPoints != 0 {
		t.Errorf("expected remaining points clamped to 0, got %d", info.RemainingPoints)
	}
}

func TestGetCampaignBudgetInfo_UnknownCampaign(t *testing.T) {
	repo := &economyRepoStub{campaignErr: store.ErrCampaignNotFound}
	svc := NewService(repo, nil)

	_, err := svc.GetCampaignBudgetInfo(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestCalculateSafePointAward_RejectsInvalidInputs(t *testing.T) {
	svc := NewService(&economyRepoStub{}, nil)

	if _, err := svc.CalculateSafePointAward(context.Background(), uuid.New(), uuid.New(), 0, nil, time.Now()); !errors.Is(err, ErrInvalidBasePoints) {
		t.Errorf("expected ErrInvalidBasePoints for zero base, got %v", err)
	}
	if _, err := svc.CalculateSafePointAward(context.Background(), uuid.New(), uuid.New(), -10, nil, time.Now()); !errors.Is(err, ErrInvalidBasePoints) {
		t.Errorf("expected ErrInvalidBasePoints for negative base, got %v", err)
	}
	bad := 101
	if _, err := svc.CalculateSafePointAward(context.Background(), uuid.New(), uuid.New(), 100, &bad, time.Now()); !errors.Is(err, ErrInvalidQualityScore) {
		t.Errorf("expected ErrInvalidQualityScore for score 101, got %v", err)
	}
}

func TestAwardPoints_HardStopSkipsPersistence(t *testing.T) {
	repo := &economyRepoStub{
		profileErr: store.ErrUserNotFound,
		earned:     500, // new-user cap already reached
		campaign:   activeCampaign(1000),
	}
	svc := NewService(repo, nil)

	award, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:     uuid.New(),
		CampaignID: repo.campaign.ID,
		BasePoints: 100,
	}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !award.HardStopped() {
		t.Fatal("expected award at daily cap to be hard-stopped")
	}
	if record != nil {
		t.Error("did not expect a ledger entry for a hard-stopped award")
	}
	if repo.spendCalled {
		t.Error("did not expect the spend primitive to run for a hard-stopped award")
	}
}

func TestAwardPoints_PersistsAndPublishes(t *testing.T) {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	txID := uuid.New()
	repo := &economyRepoStub{
		profileErr:  store.ErrUserNotFound,
		earned:      0,
		campaign:    activeCampaign(1000),
		spendResult: &domain.PointTransaction{ID: txID, UserID: userID, Points: 100},
	}
	producer := &producerStub{}
	svc := NewService(repo, producer)

	award, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:     userID,
		CampaignID: repo.campaign.ID,
		BasePoints: 100,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if award.AwardedPoints != 100 {
		t.Errorf("expected 100 awarded points, got %d", award.AwardedPoints)
	}
	if record == nil || record.ID != txID {
		t.Fatalf("expected the persisted ledger entry back, got %+v", record)
	}
	if !repo.spendCalled {
		t.Fatal("expected the spend primitive to run")
	}
	if repo.spendParams.TotalBudgetPoints != 1400 {
		t.Errorf("expected spend re-check against 1400 budget points, got %d", repo.spendParams.TotalBudgetPoints)
	}
	if repo.spendParams.DailyLimit != 500 {
		t.Errorf("expected spend re-check against daily limit 500, got %d", repo.spendParams.DailyLimit)
	}
	wantDayStart := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	if !repo.spendParams.DayStart.Equal(wantDayStart) {
		t.Errorf("expected spend day window to start at %v, got %v", wantDayStart, repo.spendParams.DayStart)
	}
	if len(producer.awarded) != 1 {
		t.Fatalf("expected one points awarded event, got %d", len(producer.awarded))
	}
	if producer.awarded[0].TransactionID != txID {
		t.Errorf("expected event to carry the ledger entry id %s, got %s", txID, producer.awarded[0].TransactionID)
	}
}

func TestAwardPoints_ConcurrentBudgetExhaustionReportsHardStop(t *testing.T) {
	repo := &economyRepoStub{
		profileErr: store.ErrUserNotFound,
		campaign:   activeCampaign(1000),
		spendErr:   store.ErrCampaignBudgetExhausted,
	}
	producer := &producerStub{}
	svc := NewService(repo, producer)

	award, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:     uuid.New(),
		CampaignID: repo.campaign.ID,
		BasePoints: 100,
	}, time.Now())
	if err != nil {
		t.Fatalf("expected exhaustion to surface as a hard stop, got error %v", err)
	}
	if record != nil {
		t.Error("did not expect a ledger entry when the atomic check refused the spend")
	}
	if award.AwardedPoints != 0 {
		t.Errorf("expected zero awarded points, got %d", award.AwardedPoints)
	}
	if !award.HardStopped() {
		t.Error("expected the converted award to report a hard stop")
	}
	if len(producer.awarded) != 0 {
		t.Errorf("did not expect an event for a refused spend, got %d", len(producer.awarded))
	}
}

func TestAwardPoints_ConcurrentDailyExhaustionReportsHardStop(t *testing.T) {
	repo := &economyRepoStub{
		profileErr: store.ErrUserNotFound,
		campaign:   activeCampaign(1000),
		spendErr:   store.ErrDailyCapacityExhausted,
	}
	svc := NewService(repo, nil)

	award, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:     uuid.New(),
		CampaignID: repo.campaign.ID,
		BasePoints: 100,
	}, time.Now())
	if err != nil {
		t.Fatalf("expected exhaustion to surface as a hard stop, got error %v", err)
	}
	if record != nil {
		t.Error("did not expect a ledger entry when the atomic check refused the spend")
	}
	found := false
	for _, reason := range award.LimitedBy {
		if reason == domain.LimitDailyLimitExceeded {
			found = true
		}
	}
	if !found {
		t.Errorf("expected daily limit hard stop reason, got %v", award.LimitedBy)
	}
}

func TestAwardPoints_RateLimited(t *testing.T) {
	repo := &economyRepoStub{
		profileErr: store.ErrUserNotFound,
		campaign:   activeCampaign(1000),
	}
	svc := NewService(repo, nil)
	svc.SetAwardRateLimiter(&rateLimiterStub{count: 31}, 30)

	_, _, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:     uuid.New(),
		CampaignID: repo.campaign.ID,
		BasePoints: 100,
	}, time.Now())
	if !errors.Is(err, ErrAwardRateLimited) {
		t.Fatalf("expected ErrAwardRateLimited, got %v", err)
	}
	if repo.spendCalled {
		t.Error("did not expect the spend primitive to run for a rate-limited request")
	}
}

func TestAwardPoints_AllowsRequestWhenRateLimiterUnavailable(t *testing.T) {
	repo := &economyRepoStub{
		profileErr:  store.ErrUserNotFound,
		campaign:    activeCampaign(1000),
		spendResult: &domain.PointTransaction{ID: uuid.New(), Points: 100},
	}
	svc := NewService(repo, nil)
	svc.SetAwardRateLimiter(&rateLimiterStub{err: errors.New("redis down")}, 30)

	_, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:     uuid.New(),
		CampaignID: repo.campaign.ID,
		BasePoints: 100,
	}, time.Now())
	if err != nil {
		t.Fatalf("expected limiter outage to fail open, got %v", err)
	}
	if record == nil {
		t.Fatal("expected the award to persist when the limiter is unavailable")
	}
}

func TestEmergencyBudgetControl_PausesAndDeduplicates(t *testing.T) {
	repo := &economyRepoStub{
		campaign:         activeCampaign(1000),
		totals:           &domain.CampaignSubmissionTotals{SpentPoints: 1400},
		notifInsertedSeq: []bool{true, false},
	}
	producer := &producerStub{}
	svc := NewService(repo, producer)

	for i := 0; i < 2; i++ {
		overBudget, err := svc.EmergencyBudgetControl(context.Background(), repo.campaign.ID)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
		if !overBudget {
			t.Fatalf("call %d: expected over-budget result", i+1)
		}
	}

	if len(repo.statusUpdates) != 2 || repo.statusUpdates[0] != domain.CampaignStatusPaused {
		t.Errorf("expected two paused status writes, got %v", repo.statusUpdates)
	}
	if len(repo.notifications) != 2 {
		t.Fatalf("expected two notification attempts, got %d", len(repo.notifications))
	}
	wantKey := fmt.Sprintf("campaign_over_budget:%s", repo.campaign.ID)
	if repo.notifications[0].DedupeKey == nil || *repo.notifications[0].DedupeKey != wantKey {
		t.Errorf("expected dedupe key %q, got %v", wantKey, repo.notifications[0].DedupeKey)
	}
	// The dedupe key suppressed the second insert, so only one pause event.
	if len(producer.paused) != 1 {
		t.Errorf("expected exactly one campaign paused event, got %d", len(producer.paused))
	}
}

func TestEmergencyBudgetControl_UnderBudgetMakesNoWrites(t *testing.T) {
	repo := &economyRepoStub{
		campaign: activeCampaign(1000),
		totals:   &domain.CampaignSubmissionTotals{SpentPoints: 100},
	}
	svc := NewService(repo, nil)

	overBudget, err := svc.EmergencyBudgetControl(context.Background(), repo.campaign.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overBudget {
		t.Fatal("did not expect under-budget campaign to be flagged")
	}
	if len(repo.statusUpdates) != 0 {
		t.Errorf("did not expect status writes, got %v", repo.statusUpdates)
	}
	if len(repo.notifications) != 0 {
		t.Errorf("did not expect notifications, got %d", len(repo.notifications))
	}
}

func TestSweepOverBudgetCampaigns_CountsPaused(t *testing.T) {
	over := activeCampaign(1000)
	repo := &sweepRepoStub{
		campaigns: map[uuid.UUID]*domain.Campaign{over.ID: over},
		spent:     map[uuid.UUID]int64{over.ID: 1400},
	}
	under := activeCampaign(1000)
	repo.campaigns[under.ID] = under
	repo.spent[under.ID] = 100
	missing := uuid.New() // listed as active but no longer readable
	repo.activeIDs = []uuid.UUID{over.ID, under.ID, missing}

	svc := NewService(repo, nil)
	paused, err := svc.SweepOverBudgetCampaigns(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paused != 1 {
		t.Errorf("expected exactly one paused campaign, got %d", paused)
	}
	if len(repo.statusUpdates) != 1 {
		t.Errorf("expected one status write, got %v", repo.statusUpdates)
	}
}

type sweepRepoStub struct {
	store.Repository

	campaigns map[uuid.UUID]*domain.Campaign
	spent     map[uuid.UUID]int64
	activeIDs []uuid.UUID

	statusUpdates []string
}

func (s *sweepRepoStub) FindActiveCampaignIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.activeIDs, nil
}

func (s *sweepRepoStub) FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	if c, ok := s.campaigns[campaignID]; ok {
		return c, nil
	}
	return nil, store.ErrCampaignNotFound
}

func (s *sweepRepoStub) GetCampaignSubmissionTotals(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignSubmissionTotals, error) {
	return &domain.CampaignSubmissionTotals{SpentPoints: s.spent[campaignID]}, nil
}

func (s *sweepRepoStub) UpdateCampaignStatus(ctx context.Context, campaignID uuid.UUID, status string) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *sweepRepoStub) CreateAdminNotification(ctx context.Context, notification *domain.AdminNotification) (bool, error) {
	return true, nil
}

// conservationRepoStub models the atomic spend primitive in memory so a
// sequence of awards can be driven against one campaign budget.
type conservationRepoStub struct {
	store.Repository

	campaign *domain.Campaign
	spent    int64
	earned   map[uuid.UUID]int64
}

func (s *conservationRepoStub) FindUserProfileByID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	return &domain.UserProfile{ID: userID, Level: 10}, nil // vip, 1500/day cap
}

func (s *conservationRepoStub) SumEarnedPoints(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	return s.earned[userID], nil
}

func (s *conservationRepoStub) FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	return s.campaign, nil
}

func (s *conservationRepoStub) GetCampaignSubmissionTotals(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignSubmissionTotals, error) {
	return &domain.CampaignSubmissionTotals{SpentPoints: s.spent}, nil
}

func (s *conservationRepoStub) SpendCampaignBudgetAtomic(ctx context.Context, params store.SpendCampaignBudgetParams) (*domain.PointTransaction, error) {
	if s.spent+params.Points > params.TotalBudgetPoints {
		return nil, store.ErrCampaignBudgetExhausted
	}
	if s.earned[params.UserID]+params.Points > params.DailyLimit {
		return nil, store.ErrDailyCapacityExhausted
	}
	s.spent += params.Points
	s.earned[params.UserID] += params.Points
	return &domain.PointTransaction{
		ID:              uuid.New(),
		UserID:          params.UserID,
		CampaignID:      &params.CampaignID,
		Points:          params.Points,
		TransactionType: params.TransactionType,
	}, nil
}

func TestAwardPoints_NeverOverspendsCampaignBudget(t *testing.T) {
	// $10 funded = 1400 budget points. Awarding 150 base points per distinct
	// user: nine full awards (1350), a tenth clamped to the remaining 50, then
	// hard stops only.
	repo := &conservationRepoStub{
		campaign: activeCampaign(1000),
		earned:   map[uuid.UUID]int64{},
	}
	svc := NewService(repo, nil)
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	var awardedTotal int64
	hardStops := 0
	for i := 0; i < 15; i++ {
		award, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
			UserID:     uuid.New(),
			CampaignID: repo.campaign.ID,
			BasePoints: 150,
		}, now)
		if err != nil {
			t.Fatalf("award %d: unexpected error: %v", i+1, err)
		}
		if award.HardStopped() {
			if record != nil {
				t.Fatalf("award %d: hard-stopped award must not persist", i+1)
			}
			hardStops++
			continue
		}
		if record == nil {
			t.Fatalf("award %d: expected persisted ledger entry", i+1)
		}
		awardedTotal += award.AwardedPoints
	}

	if awardedTotal != 1400 {
		t.Errorf("expected the full 1400-point budget to be distributed, got %d", awardedTotal)
	}
	if repo.spent > 1400 {
		t.Errorf("campaign overspent: %d of 1400 budget points", repo.spent)
	}
	if hardStops != 5 {
		t.Errorf("expected 5 hard stops after exhaustion, got %d", hardStops)
	}
}

func TestRecordManualAdjustment(t *testing.T) {
	repo := &economyRepoStub{}
	svc := NewService(repo, nil)
	userID := uuid.New()

	record, err := svc.RecordManualAdjustment(context.Background(), userID, -250, "clawback after chargeback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Points != -250 {
		t.Errorf("expected -250 points, got %d", record.Points)
	}
	if record.TransactionType != domain.TransactionOther {
		t.Errorf("expected the adjustment to use the other transaction type, got %q", record.TransactionType)
	}
	if len(repo.createdTransactions) != 1 {
		t.Fatalf("expected one ledger insert, got %d", len(repo.createdTransactions))
	}
	if repo.createdTransactions[0].UserID != userID {
		t.Errorf("expected adjustment for user %s, got %s", userID, repo.createdTransactions[0].UserID)
	}
}

func TestRecordManualAdjustment_RejectsZero(t *testing.T) {
	repo := &economyRepoStub{}
	svc := NewService(repo, nil)

	if _, err := svc.RecordManualAdjustment(context.Background(), uuid.New(), 0, ""); !errors.Is(err, ErrInvalidAdjustmentValue) {
		t.Fatalf("expected ErrInvalidAdjustmentValue, got %v", err)
	}
	if len(repo.createdTransactions) != 0 {
		t.Errorf("did not expect a ledger insert, got %d", len(repo.createdTransactions))
	}
}

func TestAwardPoints_BonusReclampedToBudgetStillPersists(t *testing.T) {
	// 1400 budget points with 1300 already spent. A perfect-score award of 100
	// base points would bonus to 120, but the calculator clamps it back to the
	// 100 remaining points, so the sequential request persists instead of being
	// refused by the atomic re-check.
	repo := &conservationRepoStub{
		campaign: activeCampaign(1000),
		spent:    1300,
		earned:   map[uuid.UUID]int64{},
	}
	svc := NewService(repo, nil)

	award, record, err := svc.AwardPoints(context.Background(), domain.AwardRequest{
		UserID:       uuid.New(),
		CampaignID:   repo.campaign.ID,
		BasePoints:   100,
		QualityScore: intPtr(100),
	}, time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil {
		t.Fatal("expected the re-clamped award to persist")
	}
	if award.AwardedPoints != 100 {
		t.Errorf("expected award clamped to the 100 remaining points, got %d", award.AwardedPoints)
	}
	found := false
	for _, reason := range award.LimitedBy {
		if reason == domain.LimitCampaignBudget {
			found = true
		}
	}
	if !found {
		t.Errorf("expected campaign budget clamp reason, got %v", award.LimitedBy)
	}
	if repo.spent != 1400 {
		t.Errorf("expected campaign spend to land exactly on budget, got %d", repo.spent)
	}
}

func TestGetPlatformEconomicOverview(t *testing.T) {
	repo := &overviewRepoStub{users: 1200, activeCampaigns: 8, today: 4500, month: 98000}
	svc := NewService(repo, nil)
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	overview, err := svc.GetPlatformEconomicOverview(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.TotalUsers != 1200 {
		t.Errorf("expected 1200 users, got %d", overview.TotalUsers)
	}
	if overview.ActiveCampaigns != 8 {
		t.Errorf("expected 8 active campaigns, got %d", overview.ActiveCampaigns)
	}
	if overview.PointsIssuedToday != 4500 {
		t.Errorf("expected 4500 points issued today, got %d", overview.PointsIssuedToday)
	}
	if overview.PointsIssuedMonth != 98000 {
		t.Errorf("expected 98000 points issued this month, got %d", overview.PointsIssuedMonth)
	}
	wantMonthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !repo.monthFrom.Equal(wantMonthStart) {
		t.Errorf("expected month window to start at %v, got %v", wantMonthStart, repo.monthFrom)
	}
}

type overviewRepoStub struct {
	store.Repository

	users           int64
	activeCampaigns int64
	today           int64
	month           int64

	calls     int
	monthFrom time.Time
}

func (s *overviewRepoStub) CountUsers(ctx context.Context) (int64, error) {
	return s.users, nil
}

func (s *overviewRepoStub) CountActiveCampaigns(ctx context.Context) (int64, error) {
	return s.activeCampaigns, nil
}

func (s *overviewRepoStub) SumEarnedPointsPlatform(ctx context.Context, from, to time.Time) (int64, error) {
	s.calls++
	if s.calls == 1 {
		return s.today, nil
	}
	s.monthFrom = from
	return s.month, nil
}
