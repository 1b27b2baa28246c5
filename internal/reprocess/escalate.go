package reprocess

import (
	"time"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// tierSettings escalates deterministically per attempt. Enhancement passes
// (adaptive thresholding, deskew, noise reduction) are forced on for every
// reprocessing tier; resolution, timeout and priority ramp up.
var tierSettings = []model.ExtractionSettings{
	{DPI: 300, AdaptiveThreshold: true, Deskew: true, NoiseReduction: true, Timeout: 60 * time.Second, Priority: "normal"},
	{DPI: 400, AdaptiveThreshold: true, Deskew: true, NoiseReduction: true, Timeout: 120 * time.Second, Priority: "high"},
	{DPI: 600, AdaptiveThreshold: true, Deskew: true, NoiseReduction: true, Timeout: 240 * time.Second, Priority: "urgent"},
}

// SettingsForTier returns the extraction settings for a 1-based tier.
// Out-of-range tiers clamp to the nearest defined tier.
func SettingsForTier(tier int) model.ExtractionSettings {
	if tier < 1 {
		tier = 1
	}
	if tier > len(tierSettings) {
		tier = len(tierSettings)
	}
	return tierSettings[tier-1]
}
