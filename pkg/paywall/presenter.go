// Package paywall translates quota denials into renderable upsell content.
// Everything here is a pure function of its inputs; no side effects and no
// error conditions.
package paywall

import "fmt"

// Reason tags why the paywall is being shown.
type Reason string

const (
	ReasonMessages Reason = "messages"
	ReasonImage    Reason = "image"
	ReasonSound    Reason = "sound"
	ReasonVIN      Reason = "vin"
	ReasonUpgrade  Reason = "upgrade"
)

// Content is everything the UI needs to render the paywall.
type Content struct {
	Title          string
	Description    string
	Icon           string
	FeatureBullets []string
}

var copyTable = map[Reason]struct {
	title string
	icon  string
	desc  func(used, limit int) string
}{
	ReasonMessages: {
		title: "Out of messages",
		icon:  "chat",
		desc: func(used, limit int) string {
			return fmt.Sprintf("You've used %d of %d Scotty messages. Upgrade to keep the conversation going.", used, limit)
		},
	},
	ReasonImage: {
		title: "Image analysis limit reached",
		icon:  "camera",
		desc: func(used, limit int) string {
			return fmt.Sprintf("You've analyzed %d of %d images this month. Upgrade for more.", used, limit)
		},
	},
	ReasonSound: {
		title: "Sound diagnosis limit reached",
		icon:  "waveform",
		desc: func(used, limit int) string {
			return fmt.Sprintf("You've run %d of %d sound diagnoses this month. Upgrade for more.", used, limit)
		},
	},
	ReasonVIN: {
		title: "VIN decode limit reached",
		icon:  "barcode",
		desc: func(used, limit int) string {
			return fmt.Sprintf("You've decoded %d of %d VINs this month. Upgrade for more.", used, limit)
		},
	},
}

// Present maps a denial to upsell content. Unrecognized reasons fall back
// to a generic upgrade framing; the result is always renderable.
func Present(reason Reason, used, limit int) Content {
	entry, ok := copyTable[reason]
	if !ok {
		return Content{
			Title:          "Upgrade your garage",
			Description:    "Unlock more of Scotty with a Revline subscription.",
			Icon:           "wrench",
			FeatureBullets: BulletsForPackage(""),
		}
	}
	return Content{
		Title:          entry.title,
		Description:    entry.desc(used, limit),
		Icon:           entry.icon,
		FeatureBullets: BulletsForPackage(""),
	}
}

// BulletsForPackage returns the feature bullet list for a billing package
// identifier. Unknown identifiers get the default Plus bullets.
func BulletsForPackage(packageID string) []string {
	switch packageID {
	case "club_monthly", "club_annual":
		return []string{
			"Unlimited Scotty messages",
			"300 image analyses per month",
			"50 sound diagnoses per month",
			"30 VIN decodes per month",
		}
	case "track_mode_monthly", "track_mode_annual":
		return []string{
			"2,000 Scotty messages per month",
			"75 image analyses per month",
			"20 sound diagnoses per month",
			"15 VIN decodes per month",
		}
	default:
		return []string{
			"Unlimited Scotty messages",
			"20 image analyses per month",
			"5 sound diagnoses per month",
			"4 VIN decodes per month",
		}
	}
}

// ReasonFor maps a denied feature to the paywall reason tag.
func ReasonFor(feature string) Reason {
	switch feature {
	case "messages":
		return ReasonMessages
	case "images":
		return ReasonImage
	case "sounds":
		return ReasonSound
	case "vins":
		return ReasonVIN
	default:
		return ReasonUpgrade
	}
}
