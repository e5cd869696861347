package quota_test

import (
	"testing"
	"time"

	"github.com/revlinehq/scotty/pkg/quota"
)

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		tier    quota.Tier
		feature quota.Feature
		want    quota.PeriodType
	}{
		{quota.TierFree, quota.FeatureMessages, quota.PeriodTypeLifetime},
		{quota.TierPlus, quota.FeatureMessages, quota.PeriodTypeMonthly},
		{quota.TierFree, quota.FeatureUploads, quota.PeriodTypeDaily},
		{quota.TierClub, quota.FeatureUploads, quota.PeriodTypeDaily},
		{quota.TierPlus, quota.FeatureImages, quota.PeriodTypeMonthly},
		{quota.TierTrackMode, quota.FeatureSounds, quota.PeriodTypeMonthly},
		{quota.TierClub, quota.FeatureVINs, quota.PeriodTypeMonthly},
	}
	for _, tt := range tests {
		if got := quota.PeriodFor(tt.tier, tt.feature); got != tt.want {
			t.Errorf("PeriodFor(%s, %s) = %s, want %s", tt.tier, tt.feature, got, tt.want)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	at := time.Date(2024, 5, 17, 23, 59, 59, 0, time.UTC)

	if got := quota.PeriodKey(quota.PeriodTypeMonthly, at); got != "2024-05" {
		t.Errorf("monthly key = %q", got)
	}
	if got := quota.PeriodKey(quota.PeriodTypeDaily, at); got != "2024-05-17" {
		t.Errorf("daily key = %q", got)
	}
	if got := quota.PeriodKey(quota.PeriodTypeLifetime, at); got != "lifetime" {
		t.Errorf("lifetime key = %q", got)
	}
}

// Keys are computed in UTC regardless of the wall clock's zone.
func TestPeriodKey_UTC(t *testing.T) {
	zone := time.FixedZone("UTC+13", 13*60*60)
	at := time.Date(2024, 6, 1, 1, 0, 0, 0, zone) // still May 31 in UTC

	if got := quota.PeriodKey(quota.PeriodTypeDaily, at); got != "2024-05-31" {
		t.Errorf("daily key = %q, want 2024-05-31", got)
	}
	if got := quota.PeriodKey(quota.PeriodTypeMonthly, at); got != "2024-05" {
		t.Errorf("monthly key = %q, want 2024-05", got)
	}
}
