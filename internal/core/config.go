package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire ctxguard configuration.
type Config struct {
	Monitor   MonitorConfig   `yaml:"monitor"`
	Policy    ScorePolicy     `yaml:"policy"`
	Hours     WorkingHours    `yaml:"working_hours"`
	Location  LocationConfig  `yaml:"location"`
	Keystroke KeystrokeConfig `yaml:"keystroke"`
	Bus       BusConfig       `yaml:"bus"`
	Respond   RespondConfig   `yaml:"respond"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MonitorConfig controls the periodic evaluation loop.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Backoff is the sleep used after a failed cycle, so a broken collector
	// slows monitoring down instead of spinning it.
	Backoff time.Duration `yaml:"backoff"`
}

// WorkingHours defines when the user is expected to be active.
type WorkingHours struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// Contains reports whether t falls inside working hours on a weekday.
func (w WorkingHours) Contains(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= w.StartHour && h < w.EndHour
}

// Place is an enrolled location the user considers familiar.
type Place struct {
	Name      string  `yaml:"name"`
	Category  string  `yaml:"category"` // "home", "work", "public"
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// LocationConfig holds the enrolled-place store. The match radius and the
// coordinates are configuration, not policy constants.
type LocationConfig struct {
	RadiusMeters float64 `yaml:"radius_meters"`
	Places       []Place `yaml:"places"`
}

// KeystrokeConfig tunes the keystroke anomaly detector.
type KeystrokeConfig struct {
	HistoryCap         int     `yaml:"history_cap"`
	WindowSize         int     `yaml:"window_size"`
	MinBaselineSamples int     `yaml:"min_baseline_samples"`
	Sensitivity        float64 `yaml:"sensitivity"`
	LearningRate       float64 `yaml:"learning_rate"`
	PersistEvery       int     `yaml:"persist_every"`
	StorePath          string  `yaml:"store_path"`
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// RespondConfig controls the external responder.
type RespondConfig struct {
	WebhookURL      string        `yaml:"webhook_url"`
	MinWebhookLevel string        `yaml:"min_webhook_level"`
	Cooldown        time.Duration `yaml:"cooldown"`
	LockAtCritical  bool          `yaml:"lock_at_critical"`
}

// APIConfig holds status server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out of the box.
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval: 30 * time.Second,
			Backoff:  60 * time.Second,
		},
		Policy: DefaultScorePolicy(),
		Hours: WorkingHours{
			StartHour: 9,
			EndHour:   17,
		},
		Location: LocationConfig{
			RadiusMeters: 100,
		},
		Keystroke: KeystrokeConfig{
			HistoryCap:         100,
			WindowSize:         20,
			MinBaselineSamples: 50,
			Sensitivity:        2.5,
			LearningRate:       0.1,
			PersistEvery:       50,
			StorePath:          "./data/baseline.db",
		},
		Bus: BusConfig{
			Enabled:  false,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Respond: RespondConfig{
			MinWebhookLevel: "HIGH",
			Cooldown:        5 * time.Minute,
			LockAtCritical:  false,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    1791,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Respond.WebhookURL == "" {
		if env := os.Getenv("CTXGUARD_WEBHOOK_URL"); env != "" {
			cfg.Respond.WebhookURL = env
		}
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LogLevel returns the parsed log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}
