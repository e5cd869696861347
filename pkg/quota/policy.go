package quota

// PolicyTable maps (tier, feature) to a limit. It is the single source of
// truth for the business rules that were previously scattered as literals.
type PolicyTable map[Tier]map[Feature]Limit

// DefaultPolicy returns the production policy table.
//
// Free messages are a lifetime allowance; every other capped feature resets
// monthly and uploads reset daily (see PeriodFor).
func DefaultPolicy() PolicyTable {
	return PolicyTable{
		TierFree: {
			FeatureMessages: 10,
			FeatureImages:   0,
			FeatureSounds:   0,
			FeatureVINs:     0,
			FeatureUploads:  10,
		},
		TierPlus: {
			FeatureMessages: Unlimited,
			FeatureImages:   20,
			FeatureSounds:   5,
			FeatureVINs:     4,
			FeatureUploads:  Unlimited,
		},
		TierTrackMode: {
			FeatureMessages: 2000,
			FeatureImages:   75,
			FeatureSounds:   20,
			FeatureVINs:     15,
			FeatureUploads:  Unlimited,
		},
		TierClub: {
			FeatureMessages: Unlimited,
			FeatureImages:   300,
			FeatureSounds:   50,
			FeatureVINs:     30,
			FeatureUploads:  Unlimited,
		},
	}
}

// LimitFor returns the limit for a tier/feature pair. Unknown pairs resolve
// to 0 (deny); the function never fails.
func (p PolicyTable) LimitFor(tier Tier, feature Feature) Limit {
	features, ok := p[tier]
	if !ok {
		return 0
	}
	limit, ok := features[feature]
	if !ok {
		return 0
	}
	return limit
}

// Tiers returns every tier in the table, ordered FREE -> CLUB when the
// default tiers are present.
func (p PolicyTable) Tiers() []Tier {
	ordered := []Tier{TierFree, TierPlus, TierTrackMode, TierClub}
	out := make([]Tier, 0, len(p))
	for _, t := range ordered {
		if _, ok := p[t]; ok {
			out = append(out, t)
		}
	}
	for t := range p {
		if !isKnownTier(t) {
			out = append(out, t)
		}
	}
	return out
}

// ParseTier maps a raw tier string to a Tier, defaulting to TierFree for
// anything unrecognized.
func ParseTier(raw string) Tier {
	switch Tier(raw) {
	case TierPlus, TierTrackMode, TierClub:
		return Tier(raw)
	default:
		return TierFree
	}
}

func isKnownTier(t Tier) bool {
	switch t {
	case TierFree, TierPlus, TierTrackMode, TierClub:
		return true
	}
	return false
}
