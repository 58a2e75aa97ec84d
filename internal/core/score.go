package core

import "time"

// ScorePolicy holds the fixed additive weights and classification thresholds
// for risk scoring. These are interpretable policy constants, not learned
// parameters; config may override them but the engine never adjusts them.
type ScorePolicy struct {
	// Location weights.
	LocationWork    int `yaml:"location_work" json:"location_work"`
	LocationPublic  int `yaml:"location_public" json:"location_public"`
	LocationUnknown int `yaml:"location_unknown" json:"location_unknown"`
	UnknownPlace    int `yaml:"unknown_place" json:"unknown_place"`

	// Network weights.
	NetworkInsecure int `yaml:"network_insecure" json:"network_insecure"`
	WifiInsecure    int `yaml:"wifi_insecure" json:"wifi_insecure"`
	Cellular        int `yaml:"cellular" json:"cellular"`
	OtherNetwork    int `yaml:"other_network" json:"other_network"`

	// Device weights.
	LowBattery       int           `yaml:"low_battery" json:"low_battery"`
	BatteryFloor     int           `yaml:"battery_floor" json:"battery_floor"` // percent
	StaleUnlock      int           `yaml:"stale_unlock" json:"stale_unlock"`
	StaleUnlockAfter time.Duration `yaml:"stale_unlock_after" json:"stale_unlock_after"`

	// Time weights.
	NightOutsideWork int `yaml:"night_outside_work" json:"night_outside_work"`

	// App weights.
	AppSocial int `yaml:"app_social" json:"app_social"`
	AppOther  int `yaml:"app_other" json:"app_other"`

	// Keyboard anomaly tiers, applied only when the detector flags anomalous.
	KeyboardSevere   int     `yaml:"keyboard_severe" json:"keyboard_severe"`     // score > 0.8
	KeyboardHigh     int     `yaml:"keyboard_high" json:"keyboard_high"`         // score > 0.5
	KeyboardModerate int     `yaml:"keyboard_moderate" json:"keyboard_moderate"` // score > 0.3
	KeyboardMild     int     `yaml:"keyboard_mild" json:"keyboard_mild"`
	WPMOutOfRange    int     `yaml:"wpm_out_of_range" json:"wpm_out_of_range"`
	WPMMin           float64 `yaml:"wpm_min" json:"wpm_min"`
	WPMMax           float64 `yaml:"wpm_max" json:"wpm_max"`
	LowAccuracy      int     `yaml:"low_accuracy" json:"low_accuracy"`
	AccuracyFloor    float64 `yaml:"accuracy_floor" json:"accuracy_floor"`

	// Classification thresholds: score <= LowMax is LOW, <= MediumMax is
	// MEDIUM, <= HighMax is HIGH, anything above is CRITICAL.
	LowMax    int `yaml:"low_max" json:"low_max"`
	MediumMax int `yaml:"medium_max" json:"medium_max"`
	HighMax   int `yaml:"high_max" json:"high_max"`
}

// DefaultScorePolicy returns the reference scoring policy.
func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{
		LocationWork:    1,
		LocationPublic:  3,
		LocationUnknown: 2,
		UnknownPlace:    2,

		NetworkInsecure: 3,
		WifiInsecure:    2,
		Cellular:        1,
		OtherNetwork:    2,

		LowBattery:       1,
		BatteryFloor:     20,
		StaleUnlock:      2,
		StaleUnlockAfter: 5 * time.Minute,

		NightOutsideWork: 1,

		AppSocial: 1,
		AppOther:  1,

		KeyboardSevere:   6,
		KeyboardHigh:     4,
		KeyboardModerate: 2,
		KeyboardMild:     1,
		WPMOutOfRange:    1,
		WPMMin:           10,
		WPMMax:           100,
		LowAccuracy:      1,
		AccuracyFloor:    0.8,

		LowMax:    2,
		MediumMax: 5,
		HighMax:   8,
	}
}

// Score computes the additive risk score for a snapshot. Pure: the same
// snapshot always yields the same score, and absent sub-contexts contribute
// nothing.
func (p ScorePolicy) Score(c *ContextData) int {
	score := 0

	if loc := c.Location; loc != nil {
		switch loc.Category {
		case LocationWork:
			score += p.LocationWork
		case LocationPublic:
			score += p.LocationPublic
		case LocationUnknown:
			score += p.LocationUnknown
		}
		if !loc.KnownPlace {
			score += p.UnknownPlace
		}
	}

	if net := c.Network; net != nil {
		if !net.Secure {
			score += p.NetworkInsecure
		}
		switch net.Type {
		case NetworkWifi:
			if !net.Secure {
				score += p.WifiInsecure
			}
		case NetworkCellular:
			score += p.Cellular
		default:
			score += p.OtherNetwork
		}
	}

	if dev := c.Device; dev != nil {
		if dev.BatteryLevel < p.BatteryFloor {
			score += p.LowBattery
		}
		if dev.Unlocked && !dev.LastUnlock.IsZero() &&
			c.Timestamp.Sub(dev.LastUnlock) > p.StaleUnlockAfter {
			score += p.StaleUnlock
		}
	}

	if c.Time.Period == Night && !c.Time.WorkingHours {
		score += p.NightOutsideWork
	}

	if app := c.App; app != nil {
		switch app.Category {
		case AppBanking, AppNeutral:
			// no contribution
		case AppSocial:
			score += p.AppSocial
		default:
			// Unrecognized categories are treated conservatively.
			score += p.AppOther
		}
	}

	if kb := c.Keyboard; kb != nil && kb.Anomalous {
		switch {
		case kb.AnomalyScore > 0.8:
			score += p.KeyboardSevere
		case kb.AnomalyScore > 0.5:
			score += p.KeyboardHigh
		case kb.AnomalyScore > 0.3:
			score += p.KeyboardModerate
		default:
			score += p.KeyboardMild
		}
		if kb.WPM > 0 && (kb.WPM < p.WPMMin || kb.WPM > p.WPMMax) {
			score += p.WPMOutOfRange
		}
		if kb.Accuracy < p.AccuracyFloor {
			score += p.LowAccuracy
		}
	}

	return score
}

// Classify maps a score onto the ordered RiskLevel scale. Total: every score
// lands in exactly one level.
func (p ScorePolicy) Classify(score int) RiskLevel {
	switch {
	case score <= p.LowMax:
		return RiskLow
	case score <= p.MediumMax:
		return RiskMedium
	case score <= p.HighMax:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Evaluate scores a snapshot and stamps its Score and Risk fields.
func (p ScorePolicy) Evaluate(c *ContextData) {
	c.Score = p.Score(c)
	c.Risk = p.Classify(c.Score)
}
