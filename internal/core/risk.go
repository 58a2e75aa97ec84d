package core

import (
	"encoding/json"
	"strings"
)

// RiskLevel is the ordered classification of the current contextual threat.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*r = ParseRiskLevel(str)
	return nil
}

// ParseRiskLevel maps a string to a RiskLevel, defaulting to LOW.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToUpper(s) {
	case "MEDIUM":
		return RiskMedium
	case "HIGH":
		return RiskHigh
	case "CRITICAL":
		return RiskCritical
	default:
		return RiskLow
	}
}
