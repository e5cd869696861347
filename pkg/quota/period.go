package quota

import "time"

// PeriodType defines how often a counter resets.
type PeriodType string

const (
	// PeriodTypeMonthly resets on calendar month boundaries
	PeriodTypeMonthly PeriodType = "monthly"
	// PeriodTypeDaily resets on calendar day boundaries
	PeriodTypeDaily PeriodType = "daily"
	// PeriodTypeLifetime never resets
	PeriodTypeLifetime PeriodType = "lifetime"
)

// lifetimeKey is the stable period key for counters that never reset.
const lifetimeKey = "lifetime"

// PeriodFor returns the reset period for a tier/feature pair.
// Free-tier messages are a lifetime allowance; uploads reset daily;
// everything else resets monthly.
func PeriodFor(tier Tier, feature Feature) PeriodType {
	switch {
	case feature == FeatureMessages && tier == TierFree:
		return PeriodTypeLifetime
	case feature == FeatureUploads:
		return PeriodTypeDaily
	default:
		return PeriodTypeMonthly
	}
}

// PeriodKey returns the calendar identifier for a period at the given time.
// Monthly keys look like "2024-05", daily keys like "2024-05-17".
func PeriodKey(pt PeriodType, now time.Time) string {
	switch pt {
	case PeriodTypeMonthly:
		return now.UTC().Format("2006-01")
	case PeriodTypeDaily:
		return now.UTC().Format("2006-01-02")
	case PeriodTypeLifetime:
		return lifetimeKey
	default:
		return now.UTC().Format("2006-01")
	}
}
