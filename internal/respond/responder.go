// Package respond maps risk transitions and keyboard anomalies onto external
// responses: logging, webhook alerts, and an optional device-lock hook.
package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ctxguard-project/ctxguard/internal/core"
)

// LockFunc is the device-lock hook. How the lock is performed is the host's
// business; the responder only decides when.
type LockFunc func(ctx context.Context, snapshot *core.ContextData) error

// Responder implements core.Listener (and the optional anomaly capability).
// Webhook deliveries are rate-limited per reason through an expiring
// cooldown cache and protected by a circuit breaker, so a dead endpoint
// can't stall or spam.
type Responder struct {
	logger   zerolog.Logger
	cfg      core.RespondConfig
	minLevel core.RiskLevel
	cooldown *expirable.LRU[string, time.Time]
	breaker  *gobreaker.CircuitBreaker
	client   *http.Client
	lock     LockFunc
}

// NewResponder creates a responder. lock may be nil when device locking is
// unavailable.
func NewResponder(cfg core.RespondConfig, lock LockFunc, logger zerolog.Logger) *Responder {
	return &Responder{
		logger:   logger.With().Str("component", "responder").Logger(),
		cfg:      cfg,
		minLevel: core.ParseRiskLevel(cfg.MinWebhookLevel),
		cooldown: expirable.NewLRU[string, time.Time](256, nil, cfg.Cooldown),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "AlertWebhook",
			MaxRequests: 3,
			Interval:    10 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		client: &http.Client{Timeout: 10 * time.Second},
		lock:   lock,
	}
}

// OnContextChanged logs each tick at debug level.
func (r *Responder) OnContextChanged(snapshot *core.ContextData) {
	r.logger.Debug().
		Str("snapshot_id", snapshot.ID).
		Str("risk", snapshot.Risk.String()).
		Int("score", snapshot.Score).
		Msg("context updated")
}

// OnRiskLevelChanged logs the transition, alerts the webhook at or above the
// configured level, and fires the lock hook at CRITICAL.
func (r *Responder) OnRiskLevelChanged(old, new core.RiskLevel, snapshot *core.ContextData) {
	r.logger.Warn().
		Str("old", old.String()).
		Str("new", new.String()).
		Int("score", snapshot.Score).
		Msg("risk transition")

	if new >= r.minLevel {
		r.deliver("risk:"+new.String(), map[string]interface{}{
			"id":          uuid.New().String(),
			"kind":        "risk_transition",
			"old":         old.String(),
			"new":         new.String(),
			"score":       snapshot.Score,
			"snapshot_id": snapshot.ID,
			"timestamp":   snapshot.Timestamp,
		})
	}

	if new == core.RiskCritical && r.cfg.LockAtCritical && r.lock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.lock(ctx, snapshot); err != nil {
			r.logger.Error().Err(err).Msg("device lock failed")
		} else {
			r.logger.Warn().Str("snapshot_id", snapshot.ID).Msg("device locked")
		}
	}
}

// OnKeyboardAnomalyDetected alerts the webhook about the anomaly.
func (r *Responder) OnKeyboardAnomalyDetected(kb *core.KeyboardContext) {
	r.logger.Warn().
		Float64("anomaly_score", kb.AnomalyScore).
		Float64("wpm", kb.WPM).
		Msg("keyboard anomaly")

	r.deliver("anomaly:keyboard", map[string]interface{}{
		"id":            uuid.New().String(),
		"kind":          "keyboard_anomaly",
		"anomaly_score": kb.AnomalyScore,
		"wpm":           kb.WPM,
		"accuracy":      kb.Accuracy,
		"timestamp":     time.Now().UTC(),
	})
}

// deliver posts a payload unless the same reason fired within the cooldown
// window. Delivery runs through the circuit breaker in its own goroutine so
// a slow endpoint never blocks the monitoring tick.
func (r *Responder) deliver(reason string, payload map[string]interface{}) {
	if r.cfg.WebhookURL == "" {
		return
	}
	if _, recent := r.cooldown.Get(reason); recent {
		r.logger.Debug().Str("reason", reason).Msg("alert suppressed by cooldown")
		return
	}
	r.cooldown.Add(reason, time.Now())

	go func() {
		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.post(payload)
		})
		if err != nil {
			r.logger.Error().Err(err).Str("reason", reason).Msg("webhook delivery failed")
		}
	}()
}

func (r *Responder) post(payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	resp, err := r.client.Post(r.cfg.WebhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
