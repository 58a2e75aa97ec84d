package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LocationCategory classifies where the device currently is.
type LocationCategory int

const (
	LocationHome LocationCategory = iota
	LocationWork
	LocationPublic
	LocationUnknown
)

func (c LocationCategory) String() string {
	switch c {
	case LocationHome:
		return "HOME"
	case LocationWork:
		return "WORK"
	case LocationPublic:
		return "PUBLIC"
	default:
		return "UNKNOWN"
	}
}

func (c LocationCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *LocationCategory) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "HOME":
		*c = LocationHome
	case "WORK":
		*c = LocationWork
	case "PUBLIC":
		*c = LocationPublic
	default:
		*c = LocationUnknown
	}
	return nil
}

// NetworkType classifies the active network interface.
type NetworkType int

const (
	NetworkWifi NetworkType = iota
	NetworkCellular
	NetworkOther
)

func (t NetworkType) String() string {
	switch t {
	case NetworkWifi:
		return "WIFI"
	case NetworkCellular:
		return "CELLULAR"
	default:
		return "OTHER"
	}
}

func (t NetworkType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *NetworkType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "WIFI":
		*t = NetworkWifi
	case "CELLULAR":
		*t = NetworkCellular
	default:
		*t = NetworkOther
	}
	return nil
}

// AppCategory classifies the foreground application.
type AppCategory int

const (
	AppBanking AppCategory = iota
	AppSocial
	AppNeutral
	AppOther
)

func (c AppCategory) String() string {
	switch c {
	case AppBanking:
		return "BANKING"
	case AppSocial:
		return "SOCIAL"
	case AppNeutral:
		return "NEUTRAL"
	default:
		return "OTHER"
	}
}

func (c AppCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *AppCategory) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "BANKING":
		*c = AppBanking
	case "SOCIAL":
		*c = AppSocial
	case "NEUTRAL":
		*c = AppNeutral
	default:
		*c = AppOther
	}
	return nil
}

// TimeOfDay buckets the clock into coarse periods.
type TimeOfDay int

const (
	Morning TimeOfDay = iota
	Afternoon
	Evening
	Night
)

func (t TimeOfDay) String() string {
	switch t {
	case Morning:
		return "MORNING"
	case Afternoon:
		return "AFTERNOON"
	case Evening:
		return "EVENING"
	default:
		return "NIGHT"
	}
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "MORNING":
		*t = Morning
	case "AFTERNOON":
		*t = Afternoon
	case "EVENING":
		*t = Evening
	default:
		*t = Night
	}
	return nil
}

// LocationContext is the location signal at one tick.
type LocationContext struct {
	Category   LocationCategory `json:"category"`
	KnownPlace bool             `json:"known_place"`
	PlaceName  string           `json:"place_name,omitempty"`
	Latitude   float64          `json:"latitude"`
	Longitude  float64          `json:"longitude"`
}

// NetworkContext is the network signal at one tick.
type NetworkContext struct {
	Type   NetworkType `json:"type"`
	Secure bool        `json:"secure"`
	SSID   string      `json:"ssid,omitempty"`
}

// DeviceContext is the device state at one tick.
type DeviceContext struct {
	BatteryLevel int       `json:"battery_level"` // percent, 0-100
	Unlocked     bool      `json:"unlocked"`
	LastUnlock   time.Time `json:"last_unlock"`
}

// TimeContext is always available — classification of the current clock.
type TimeContext struct {
	Period       TimeOfDay `json:"period"`
	WorkingHours bool      `json:"working_hours"`
	Hour         int       `json:"hour"`
}

// AppContext describes the foreground application.
type AppContext struct {
	Category AppCategory `json:"category"`
	Package  string      `json:"package,omitempty"`
}

// KeyboardContext is the keystroke detector's assessment at one tick.
type KeyboardContext struct {
	AnomalyScore float64 `json:"anomaly_score"` // normalized, ~0-1 but not clamped
	Anomalous    bool    `json:"anomalous"`
	AvgDwellMs   float64 `json:"avg_dwell_ms"`
	AvgFlightMs  float64 `json:"avg_flight_ms"`
	WPM          float64 `json:"wpm"`
	Accuracy     float64 `json:"accuracy"`
}

// ContextData is one fused, immutable point-in-time reading of all available
// signals. A new instance is produced per monitoring tick; the previous one
// is superseded, never mutated.
type ContextData struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Location *LocationContext `json:"location,omitempty"`
	Network  *NetworkContext  `json:"network,omitempty"`
	Device   *DeviceContext   `json:"device,omitempty"`
	App      *AppContext      `json:"app,omitempty"`
	Keyboard *KeyboardContext `json:"keyboard,omitempty"`
	Time     TimeContext      `json:"time"`

	Score int       `json:"score"`
	Risk  RiskLevel `json:"risk"`
}

// NewContextData creates an empty snapshot with a generated ID and current
// timestamp. Sub-contexts are filled in by the engine before scoring.
func NewContextData() *ContextData {
	return &ContextData{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}
}

// Marshal serializes the snapshot to JSON.
func (c *ContextData) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalContextData deserializes a ContextData from JSON.
func UnmarshalContextData(data []byte) (*ContextData, error) {
	var c ContextData
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
