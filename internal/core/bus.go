package core

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventBus wraps NATS JetStream and carries the two externally observable
// notification categories — risk transitions and keyboard anomalies — plus a
// debug stream of full snapshots.
type EventBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	logger zerolog.Logger
	mu     sync.RWMutex
	subs   []*nats.Subscription
}

// RiskTransition is the wire form of an OnRiskLevelChanged notification.
type RiskTransition struct {
	SnapshotID string    `json:"snapshot_id"`
	Timestamp  time.Time `json:"timestamp"`
	Old        RiskLevel `json:"old"`
	New        RiskLevel `json:"new"`
	Score      int       `json:"score"`
}

// AnomalyNotice is the wire form of a keyboard anomaly notification.
type AnomalyNotice struct {
	SnapshotID string          `json:"snapshot_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Keyboard   KeyboardContext `json:"keyboard"`
}

// NewEventBus connects to NATS, starting an embedded server first when
// configured. Streams are created (or updated after a version change) for
// snapshots, risk transitions, and anomalies.
func NewEventBus(cfg *BusConfig, logger zerolog.Logger) (*EventBus, error) {
	bus := &EventBus{
		logger: logger.With().Str("component", "event_bus").Logger(),
		subs:   make([]*nats.Subscription, 0),
	}

	if cfg.Embedded {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating NATS data dir: %w", err)
		}

		opts := &server.Options{
			Host:      "127.0.0.1",
			Port:      cfg.Port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}

		ns.Start()

		if !ns.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}

		bus.ns = ns
		bus.logger.Info().Int("port", cfg.Port).Msg("embedded NATS server started")
	}

	url := cfg.URL
	if cfg.Embedded {
		url = fmt.Sprintf("nats://127.0.0.1:%d", cfg.Port)
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				bus.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			bus.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	bus.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	bus.js = js

	streams := []*nats.StreamConfig{
		{
			Name:      "CTX_SNAPSHOTS",
			Subjects:  []string{"ctx.snapshots.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			MaxBytes:  256 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
		{
			Name:      "CTX_RISK",
			Subjects:  []string{"ctx.risk.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour * 30,
			MaxBytes:  128 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
		{
			Name:      "CTX_ANOMALIES",
			Subjects:  []string{"ctx.anomalies.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour * 30,
			MaxBytes:  128 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
	}
	for _, sc := range streams {
		if _, err := js.AddStream(sc); err != nil {
			// Stream may exist with a different config from a previous
			// version — try update.
			if _, updateErr := js.UpdateStream(sc); updateErr != nil {
				return nil, fmt.Errorf("creating/updating stream %s: %w (original: %v)", sc.Name, updateErr, err)
			}
		}
	}

	bus.logger.Info().Str("url", url).Msg("connected to NATS JetStream")
	return bus, nil
}

// PublishSnapshot publishes a full context snapshot, keyed by risk level.
func (b *EventBus) PublishSnapshot(snap *ContextData) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	subject := fmt.Sprintf("ctx.snapshots.%s", snap.Risk.String())
	if _, err := b.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing snapshot to %s: %w", subject, err)
	}

	b.logger.Debug().
		Str("snapshot_id", snap.ID).
		Str("subject", subject).
		Msg("snapshot published")
	return nil
}

// PublishTransition publishes a risk level change, keyed by the new level.
func (b *EventBus) PublishTransition(old, new RiskLevel, snap *ContextData) error {
	t := RiskTransition{
		SnapshotID: snap.ID,
		Timestamp:  snap.Timestamp,
		Old:        old,
		New:        new,
		Score:      snap.Score,
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling transition: %w", err)
	}

	subject := fmt.Sprintf("ctx.risk.%s", new.String())
	if _, err := b.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing transition to %s: %w", subject, err)
	}
	return nil
}

// PublishAnomaly publishes a keyboard anomaly notice.
func (b *EventBus) PublishAnomaly(kb *KeyboardContext, snap *ContextData) error {
	n := AnomalyNotice{
		SnapshotID: snap.ID,
		Timestamp:  snap.Timestamp,
		Keyboard:   *kb,
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling anomaly notice: %w", err)
	}

	if _, err := b.js.Publish("ctx.anomalies.keyboard", data); err != nil {
		return fmt.Errorf("publishing anomaly: %w", err)
	}
	return nil
}

// Subscribe creates a durable subscription to a subject pattern.
func (b *EventBus) Subscribe(subject, durableName string, handler func(msg *nats.Msg)) error {
	opts := []nats.SubOpt{nats.DeliverNew(), nats.AckExplicit()}
	if durableName != "" {
		opts = append(opts, nats.Durable(durableName))
	}
	sub, err := b.js.Subscribe(subject, handler, opts...)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug().Str("subject", subject).Str("durable", durableName).Msg("subscribed")
	return nil
}

// SubscribeToTransitions delivers every risk transition to handler.
func (b *EventBus) SubscribeToTransitions(handler func(t *RiskTransition)) error {
	return b.Subscribe("ctx.risk.>", "ctxguard-risk", func(msg *nats.Msg) {
		var t RiskTransition
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			b.logger.Error().Err(err).Msg("failed to unmarshal risk transition")
			_ = msg.Nak()
			return
		}
		handler(&t)
		_ = msg.Ack()
	})
}

// SubscribeToAnomalies delivers every keyboard anomaly notice to handler.
func (b *EventBus) SubscribeToAnomalies(handler func(n *AnomalyNotice)) error {
	return b.Subscribe("ctx.anomalies.>", "ctxguard-anomalies", func(msg *nats.Msg) {
		var n AnomalyNotice
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			b.logger.Error().Err(err).Msg("failed to unmarshal anomaly notice")
			_ = msg.Nak()
			return
		}
		handler(&n)
		_ = msg.Ack()
	})
}

// Close shuts down the event bus.
func (b *EventBus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()

	if b.nc != nil {
		b.nc.Close()
	}

	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
		b.logger.Info().Msg("embedded NATS server stopped")
	}

	return nil
}

// IsConnected returns true if the NATS connection is active.
func (b *EventBus) IsConnected() bool {
	return b.nc != nil && b.nc.IsConnected()
}
