package core

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Source functions produce one optional typed snapshot per call. ok=false
// means the signal is unavailable this tick — never an error.
type (
	LocationFunc = func(ctx context.Context) (*LocationContext, bool)
	NetworkFunc  = func(ctx context.Context) (*NetworkContext, bool)
	DeviceFunc   = func(ctx context.Context) (*DeviceContext, bool)
	AppFunc      = func(ctx context.Context) (*AppContext, bool)
	KeyboardFunc = func(ctx context.Context) (*KeyboardContext, bool)
	TimeFunc     = func(ctx context.Context) TimeContext
)

// Sources bundles the per-signal collectors the engine polls each tick.
// Any nil entry is treated as permanently unavailable, except Time, which
// must be set — time-of-day is the one signal that is always present.
type Sources struct {
	Location LocationFunc
	Network  NetworkFunc
	Device   DeviceFunc
	App      AppFunc
	Keyboard KeyboardFunc
	Time     TimeFunc
}

// Engine fuses collector snapshots into risk-scored ContextData and drives
// the periodic monitoring loop. It exclusively owns the current snapshot
// reference and the listener registry.
type Engine struct {
	cfg     *Config
	sources Sources
	logger  zerolog.Logger
	bus     *EventBus // optional, may be nil

	mu        sync.RWMutex
	listeners []Listener
	current   *ContextData
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEngine creates a fusion engine. Sources.Time must be non-nil.
func NewEngine(cfg *Config, sources Sources, logger zerolog.Logger) *Engine {
	if sources.Time == nil {
		sources.Time = func(ctx context.Context) TimeContext {
			now := time.Now()
			return TimeContext{Period: classifyHour(now.Hour()), WorkingHours: cfg.Hours.Contains(now), Hour: now.Hour()}
		}
	}
	return &Engine{
		cfg:     cfg,
		sources: sources,
		logger:  logger.With().Str("component", "fusion_engine").Logger(),
	}
}

// NewLogger builds the process logger from config, console or JSON.
func NewLogger(cfg *Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch cfg.LogLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

// SetBus attaches an event bus; snapshots, transitions, and anomalies are
// mirrored onto it in addition to in-process listeners.
func (e *Engine) SetBus(bus *EventBus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// AddListener registers a listener. Safe to call from any goroutine.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// RemoveListener unregisters a previously added listener.
func (e *Engine) RemoveListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, reg := range e.listeners {
		if reg == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Current returns the most recent snapshot, or nil before the first tick.
func (e *Engine) Current() *ContextData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Running reports whether the monitoring loop is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// CollectSnapshot polls every source, assembles a snapshot, scores it, and
// updates the current reference. A faulty or unavailable source yields an
// absent sub-context; collection itself never fails.
func (e *Engine) CollectSnapshot(ctx context.Context) *ContextData {
	snap := NewContextData()

	snap.Location = collectSafe(ctx, e.sources.Location, e.logger, "location")
	snap.Network = collectSafe(ctx, e.sources.Network, e.logger, "network")
	snap.Device = collectSafe(ctx, e.sources.Device, e.logger, "device")
	snap.App = collectSafe(ctx, e.sources.App, e.logger, "app")
	snap.Keyboard = collectSafe(ctx, e.sources.Keyboard, e.logger, "keyboard")
	snap.Time = e.collectTime(ctx)

	e.cfg.Policy.Evaluate(snap)

	e.mu.Lock()
	e.current = snap
	e.mu.Unlock()

	e.logger.Debug().
		Str("snapshot_id", snap.ID).
		Int("score", snap.Score).
		Str("risk", snap.Risk.String()).
		Msg("snapshot collected")

	return snap
}

// collectSafe invokes one source behind a recover() so a panicking collector
// is treated as unavailable for the tick instead of killing the loop.
func collectSafe[T any](ctx context.Context, fn func(context.Context) (*T, bool), logger zerolog.Logger, name string) (out *T) {
	if fn == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn().Str("collector", name).Interface("panic", rec).Msg("collector panicked, signal treated as unavailable")
			out = nil
		}
	}()
	v, ok := fn(ctx)
	if !ok {
		return nil
	}
	return v
}

func (e *Engine) collectTime(ctx context.Context) (tc TimeContext) {
	defer func() {
		if rec := recover(); rec != nil {
			now := time.Now()
			tc = TimeContext{Period: classifyHour(now.Hour()), Hour: now.Hour()}
		}
	}()
	return e.sources.Time(ctx)
}

// classifyHour buckets an hour of day into a TimeOfDay period.
func classifyHour(h int) TimeOfDay {
	switch {
	case h >= 6 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 22:
		return Evening
	default:
		return Night
	}
}

// Start launches the monitoring loop. A second Start while running is a
// no-op; after Stop, Start resumes from a clean state.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Debug().Msg("monitoring already running, start ignored")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	e.logger.Info().
		Dur("interval", e.cfg.Monitor.Interval).
		Msg("monitoring started")

	go e.loop(ctx, done)
}

// Stop cancels the loop, including any in-progress interval wait, and blocks
// until the loop goroutine exits.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
	e.logger.Info().Msg("monitoring stopped")
}

// loop is the periodic evaluation driver. A tick that panics is swallowed
// and traded for the longer backoff sleep — monitoring never dies.
func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		sleep := e.cfg.Monitor.Interval
		if err := e.tick(ctx); err != nil {
			e.logger.Error().Err(err).Msg("monitoring tick failed, backing off")
			sleep = e.cfg.Monitor.Backoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// tick runs one evaluation cycle: collect, diff, fan out. Listener
// notification is synchronous within the tick, before the next sleep.
func (e *Engine) tick(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &tickPanicError{value: rec}
		}
	}()

	prev := e.Current()
	snap := e.CollectSnapshot(ctx)

	// A tick with no predecessor diffs against LOW, so a hostile first
	// reading still raises a transition.
	oldLevel := RiskLow
	if prev != nil {
		oldLevel = prev.Risk
	}

	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	bus := e.bus
	e.mu.RUnlock()

	for _, l := range listeners {
		l.OnContextChanged(snap)
	}
	if bus != nil {
		if busErr := bus.PublishSnapshot(snap); busErr != nil {
			e.logger.Warn().Err(busErr).Msg("failed to publish snapshot to bus")
		}
	}

	if snap.Risk != oldLevel {
		e.logger.Info().
			Str("old", oldLevel.String()).
			Str("new", snap.Risk.String()).
			Int("score", snap.Score).
			Msg("risk level changed")
		for _, l := range listeners {
			l.OnRiskLevelChanged(oldLevel, snap.Risk, snap)
		}
		if bus != nil {
			if busErr := bus.PublishTransition(oldLevel, snap.Risk, snap); busErr != nil {
				e.logger.Warn().Err(busErr).Msg("failed to publish risk transition to bus")
			}
		}
	}

	if kb := snap.Keyboard; kb != nil && kb.Anomalous {
		e.logger.Warn().
			Float64("anomaly_score", kb.AnomalyScore).
			Msg("keyboard anomaly detected")
		for _, l := range listeners {
			if al, ok := l.(AnomalyListener); ok {
				al.OnKeyboardAnomalyDetected(kb)
			}
		}
		if bus != nil {
			if busErr := bus.PublishAnomaly(kb, snap); busErr != nil {
				e.logger.Warn().Err(busErr).Msg("failed to publish anomaly to bus")
			}
		}
	}

	return nil
}

type tickPanicError struct {
	value any
}

func (e *tickPanicError) Error() string {
	return "monitoring tick panicked"
}
