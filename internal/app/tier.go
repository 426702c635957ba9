package app

import (
	"time"

	"github.com/yield/economy-service/internal/domain"
)

// tierRule pairs a predicate with the tier it selects. Rules are evaluated
// top-down and the first match wins, so the VIP check shadows everything below
// it regardless of account age.
type tierRule struct {
	tier    domain.Tier
	matches func(profile *domain.UserProfile, daysSinceSignup int) bool
}

var tierRules = []tierRule{
	{
		tier: domain.TierVIP,
		matches: func(p *domain.UserProfile, _ int) bool {
			return p.Level >= 10 || p.TasksCompleted >= 500
		},
	},
	{
		tier: domain.TierVeteran,
		matches: func(p *domain.UserProfile, _ int) bool {
			return p.TasksCompleted >= 100
		},
	},
	{
		tier: domain.TierRegular,
		matches: func(_ *domain.UserProfile, daysSinceSignup int) bool {
			return daysSinceSignup >= 30
		},
	},
}

// ResolveTier classifies a profile at the given instant. A nil profile (lookup
// failed upstream) resolves to the new-user tier so the earning gate stays
// conservative.
func ResolveTier(profile *domain.UserProfile, now time.Time) domain.Tier {
	if profile == nil {
		return domain.TierNew
	}
	daysSinceSignup := int(now.Sub(profile.CreatedAt).Hours() / 24)
	for _, rule := range tierRules {
		if rule.matches(profile, daysSinceSignup) {
			return rule.tier
		}
	}
	return domain.TierNew
}
