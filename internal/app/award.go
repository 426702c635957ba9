/**
 * @description
 * This file implements the safe point award pipeline: an ordered sequence of
 * named gates, each taking the running award state and either clamping it,
 * zeroing it with a hard stop, or passing it through. The ordering is part of
 * the contract — a hard stop prevents every later gate from running.
 *
 * Gate order:
 *   1. daily hard stop      — user already at their tier cap
 *   2. daily capacity clamp — award trimmed to remaining capacity
 *   3. budget hard stop     — campaign spend already at its point budget
 *   4. budget clamp         — award trimmed to remaining budget
 *   5. quality adjustment   — x0.5 penalty below the floor score, linear bonus
 *                             at or above the bonus threshold
 *   6. capacity re-check    — a quality bonus can push the award back over the
 *                             remaining capacity or budget, so both clamps run
 *                             again
 *   7. minimum payout       — a non-hard-stopped award is never below 1 point
 *
 * All multiplications floor so the pipeline can only reduce payout error in
 * the platform's favor.
 */

package app

import (
	"fmt"

	"github.com/yield/economy-service/internal/domain"
)

// awardInput is the fixed context a gate evaluates against.
type awardInput struct {
	basePoints   int64
	stats        *domain.UserEarningStats
	budget       *domain.CampaignBudgetInfo
	qualityScore *int
}

// awardState is the running tuple threaded through the gates.
type awardState struct {
	points      int64
	limitedBy   []string
	explanation []string
	hardStopped bool
}

type awardGate struct {
	name  string
	apply func(in awardInput, st *awardState)
}

var awardGates = []awardGate{
	{name: "daily_hard_stop", apply: dailyHardStopGate},
	{name: "daily_capacity", apply: dailyCapacityGate},
	{name: "budget_hard_stop", apply: budgetHardStopGate},
	{name: "budget_capacity", apply: budgetCapacityGate},
	{name: "quality", apply: qualityGate},
	{name: "daily_capacity_recheck", apply: dailyCapacityGate},
	{name: "budget_capacity_recheck", apply: budgetCapacityGate},
	{name: "minimum_payout", apply: minimumPayoutGate},
}

// addLimitReason appends a reason unless it is already recorded, so a clamp
// that fires both before and after the quality gate reports itself once.
func addLimitReason(st *awardState, reason string) {
	for _, r := range st.limitedBy {
		if r == reason {
			return
		}
	}
	st.limitedBy = append(st.limitedBy, reason)
}

func dailyHardStopGate(in awardInput, st *awardState) {
	if in.stats.CanEarnMore {
		return
	}
	st.points = 0
	st.hardStopped = true
	st.limitedBy = append(st.limitedBy, domain.LimitDailyLimitExceeded)
	st.explanation = append(st.explanation, fmt.Sprintf(
		"daily limit reached: %d of %d points earned today (%s tier), no further awards until tomorrow",
		in.stats.DailyEarnings, in.stats.DailyLimit, in.stats.Tier))
}

func dailyCapacityGate(in awardInput, st *awardState) {
	if st.points <= in.stats.RemainingCapacity {
		return
	}
	previous := st.points
	st.points = in.stats.RemainingCapacity
	addLimitReason(st, domain.LimitDailyCapacity)
	st.explanation = append(st.explanation, fmt.Sprintf(
		"award reduced from %d to %d points: only %d points of daily capacity remain",
		previous, st.points, in.stats.RemainingCapacity))
}

func budgetHardStopGate(in awardInput, st *awardState) {
	if !in.budget.IsOverBudget {
		return
	}
	st.points = 0
	st.hardStopped = true
	st.limitedBy = append(st.limitedBy, domain.LimitCampaignBudgetExceeded)
	st.explanation = append(st.explanation, fmt.Sprintf(
		"campaign budget exhausted: %d of %d points spent, no further awards from this campaign",
		in.budget.SpentPoints, in.budget.TotalBudgetPoints))
}

func budgetCapacityGate(in awardInput, st *awardState) {
	if st.points <= in.budget.RemainingPoints {
		return
	}
	previous := st.points
	st.points = in.budget.RemainingPoints
	addLimitReason(st, domain.LimitCampaignBudget)
	st.explanation = append(st.explanation, fmt.Sprintf(
		"award reduced from %d to %d points: only %d points remain in the campaign budget",
		previous, st.points, in.budget.RemainingPoints))
}

func qualityGate(in awardInput, st *awardState) {
	if in.qualityScore == nil {
		return
	}
	score := *in.qualityScore
	switch {
	case score < domain.MinQualityScore:
		previous := st.points
		st.points = st.points / 2
		st.limitedBy = append(st.limitedBy, domain.LimitQualityPenalty)
		st.explanation = append(st.explanation, fmt.Sprintf(
			"quality penalty: score %d is below %d, award halved from %d to %d points",
			score, domain.MinQualityScore, previous, st.points))
	case score >= domain.QualityBonusThreshold:
		// Multiplier 1 + (score-80)/100, i.e. (score+20)/100, floored. Not a
		// limitation, so nothing is appended to limitedBy.
		previous := st.points
		st.points = st.points * int64(score+20) / 100
		st.explanation = append(st.explanation, fmt.Sprintf(
			"quality bonus: score %d grants x%d.%02d, award raised from %d to %d points",
			score, (score+20)/100, (score+20)%100, previous, st.points))
	}
}

func minimumPayoutGate(_ awardInput, st *awardState) {
	if st.points >= 1 {
		return
	}
	st.points = 1
	st.explanation = append(st.explanation, "minimum payout applied: a completed task always earns at least 1 point")
}

// runAwardPipeline evaluates the gates in order and assembles the final award.
// It is a pure function of its inputs; the caller owns persistence.
func runAwardPipeline(in awardInput) *domain.PointAward {
	st := &awardState{points: in.basePoints}
	for _, gate := range awardGates {
		gate.apply(in, st)
		if st.hardStopped {
			break
		}
	}
	return &domain.PointAward{
		AwardedPoints:  st.points,
		OriginalPoints: in.basePoints,
		LimitedBy:      st.limitedBy,
		Explanation:    st.explanation,
	}
}
