package rewards

// Tier is the loyalty classification derived from lifetime points. It gates
// display benefits only.
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Single canonical threshold table. The stored tier field wins whenever the
// upstream profile carries one; this table is the only fallback.
const (
	tierSilverThreshold   Points = 5000
	tierGoldThreshold     Points = 20000
	tierPlatinumThreshold Points = 50000
)

// String returns the display name.
func (tier Tier) String() string {
	return string(tier)
}

// ClassifyTier maps a lifetime point total to its tier. Pure and monotonic:
// a larger total never yields a lower tier.
func ClassifyTier(totalPoints Points) Tier {
	switch {
	case totalPoints >= tierPlatinumThreshold:
		return TierPlatinum
	case totalPoints >= tierGoldThreshold:
		return TierGold
	case totalPoints >= tierSilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// TierFor returns the tier to display for a profile: the stored tier when
// present, otherwise the classification of the lifetime total.
func TierFor(profile AccountProfile) Tier {
	if profile.Tier != "" {
		return profile.Tier
	}
	return ClassifyTier(profile.TotalPoints)
}
