package domain

// Process-wide economic constants. These are the guardrail parameters of the
// point economy; changing them changes what every campaign can pay out.
const (
	// PointsPerDollar is the fixed exchange rate: 200 points = $1.
	PointsPerDollar = 200

	// Campaign funding bounds, in whole USD.
	MinCampaignBudgetUSD = 50
	MaxCampaignBudgetUSD = 10000

	// PlatformFeePercent is withheld from a campaign's USD budget before it is
	// converted into spendable points.
	PlatformFeePercent = 30

	// MaxPointsPerCampaign caps the spendable points of a single campaign
	// regardless of how much the brand funds.
	MaxPointsPerCampaign = 100000

	// Quality score thresholds. Below MinQualityScore the award is halved;
	// at or above QualityBonusThreshold a linear bonus applies, reaching
	// x1.20 at a perfect score.
	MinQualityScore       = 60
	QualityBonusThreshold = 80
)

// DailyPointLimits maps a user tier to its daily earning cap.
var DailyPointLimits = map[Tier]int64{
	TierNew:     500,
	TierRegular: 750,
	TierVeteran: 1000,
	TierVIP:     1500,
}

// DailyLimitForTier returns the daily cap for a tier, falling back to the
// new-user cap for anything unrecognized. The fallback keeps the earning gate
// conservative when a profile cannot be classified.
func DailyLimitForTier(tier Tier) int64 {
	if limit, ok := DailyPointLimits[tier]; ok {
		return limit
	}
	return DailyPointLimits[TierNew]
}

// BudgetPoints converts a funded USD amount (in cents) into spendable campaign
// points: the platform fee is withheld first, then the remainder converts at
// the fixed exchange rate, floored and capped at MaxPointsPerCampaign.
func BudgetPoints(budgetUSDCents int64) int64 {
	if budgetUSDCents <= 0 {
		return 0
	}
	points := budgetUSDCents * (100 - PlatformFeePercent) * PointsPerDollar / 10000
	if points > MaxPointsPerCampaign {
		return MaxPointsPerCampaign
	}
	return points
}
