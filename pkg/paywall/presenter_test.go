package paywall_test

import (
	"strings"
	"testing"

	"github.com/revlinehq/scotty/pkg/paywall"
)

func TestPresent_KnownReasons(t *testing.T) {
	reasons := []paywall.Reason{
		paywall.ReasonMessages,
		paywall.ReasonImage,
		paywall.ReasonSound,
		paywall.ReasonVIN,
	}
	for _, reason := range reasons {
		c := paywall.Present(reason, 10, 10)
		if c.Title == "" || c.Description == "" || c.Icon == "" {
			t.Errorf("%s: incomplete content: %+v", reason, c)
		}
		if len(c.FeatureBullets) == 0 {
			t.Errorf("%s: no feature bullets", reason)
		}
		if !strings.Contains(c.Description, "10 of 10") {
			t.Errorf("%s: usage numbers missing: %q", reason, c.Description)
		}
	}
}

func TestPresent_UnknownReasonFallsBack(t *testing.T) {
	for _, reason := range []paywall.Reason{paywall.ReasonUpgrade, paywall.Reason("mystery"), ""} {
		c := paywall.Present(reason, 0, 0)
		if c.Title == "" || c.Description == "" || len(c.FeatureBullets) == 0 {
			t.Errorf("%q: fallback content incomplete: %+v", reason, c)
		}
	}
}

func TestBulletsForPackage(t *testing.T) {
	club := paywall.BulletsForPackage("club_monthly")
	if len(club) == 0 || !strings.Contains(club[1], "300") {
		t.Errorf("club bullets = %v", club)
	}

	track := paywall.BulletsForPackage("track_mode_annual")
	if len(track) == 0 || !strings.Contains(track[0], "2,000") {
		t.Errorf("track bullets = %v", track)
	}

	// Unknown packages get the plus defaults
	def := paywall.BulletsForPackage("something_else")
	if len(def) == 0 || !strings.Contains(def[0], "Unlimited") {
		t.Errorf("default bullets = %v", def)
	}
}

func TestReasonFor(t *testing.T) {
	tests := []struct {
		feature string
		want    paywall.Reason
	}{
		{"messages", paywall.ReasonMessages},
		{"images", paywall.ReasonImage},
		{"sounds", paywall.ReasonSound},
		{"vins", paywall.ReasonVIN},
		{"uploads", paywall.ReasonUpgrade},
		{"", paywall.ReasonUpgrade},
	}
	for _, tt := range tests {
		if got := paywall.ReasonFor(tt.feature); got != tt.want {
			t.Errorf("ReasonFor(%q) = %s, want %s", tt.feature, got, tt.want)
		}
	}
}
