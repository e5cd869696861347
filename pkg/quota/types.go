package quota

import "time"

// Tier is a subscription level controlling feature limits.
type Tier string

const (
	// TierFree is the default tier for users without an active entitlement
	TierFree Tier = "free"
	// TierPlus is the entry paid tier
	TierPlus Tier = "plus"
	// TierTrackMode is the mid paid tier
	TierTrackMode Tier = "track_mode"
	// TierClub is the top paid tier
	TierClub Tier = "club"
)

// Feature is a metered capability.
type Feature string

const (
	// FeatureMessages meters AI chat messages (lifetime on the free tier, monthly otherwise)
	FeatureMessages Feature = "messages"
	// FeatureImages meters image analyses (monthly)
	FeatureImages Feature = "images"
	// FeatureSounds meters sound diagnoses (monthly)
	FeatureSounds Feature = "sounds"
	// FeatureVINs meters VIN decodes (monthly)
	FeatureVINs Feature = "vins"
	// FeatureUploads meters generic media uploads (daily)
	FeatureUploads Feature = "uploads"
)

// Limit is a per-period cap for a feature. Unlimited disables the cap.
type Limit int

// Unlimited is the sentinel limit for features with no cap.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit disables capping.
func (l Limit) IsUnlimited() bool { return l == Unlimited }

// Usage is a persisted per-user, per-feature counter.
// Count is monotonically non-decreasing within a period; reset happens
// implicitly when PeriodKey no longer matches the current period.
type Usage struct {
	UserID    string
	Feature   Feature
	PeriodKey string
	Count     int
	UpdatedAt time.Time
}

// Entitlement is the last tier resolved from the billing provider,
// persisted so gating keeps working when billing is unreachable.
type Entitlement struct {
	UserID    string
	Tier      Tier
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// Decision is the result of a quota check. It is constructed fresh on
// every check and never persisted.
type Decision struct {
	Allowed bool
	Feature Feature
	Used    int
	Limit   Limit
}

// Remaining returns how many uses are left, or -1 when unlimited.
func (d Decision) Remaining() int {
	if d.Limit.IsUnlimited() {
		return -1
	}
	r := int(d.Limit) - d.Used
	if r < 0 {
		r = 0
	}
	return r
}
