package keystroke

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Android KEYCODE_DEL — the backspace key on a mobile soft keyboard.
const keyCodeBackspace = 67

// Config tunes the detector. Zero values fall back to defaults.
type Config struct {
	HistoryCap         int     // bounded event history (default 100)
	WindowSize         int     // assessment window (default 20)
	MinBaselineSamples int     // keystrokes before the baseline counts (default 50)
	Sensitivity        float64 // raw z-score threshold for anomalous (default 2.5)
	LearningRate       float64 // EMA blend rate (default 0.1)
	PersistEvery       int     // completed keystrokes between store writes (default 50)
}

func (c Config) withDefaults() Config {
	if c.HistoryCap <= 0 {
		c.HistoryCap = 100
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 20
	}
	if c.MinBaselineSamples <= 0 {
		c.MinBaselineSamples = 50
	}
	if c.Sensitivity <= 0 {
		c.Sensitivity = 2.5
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.PersistEvery <= 0 {
		c.PersistEvery = 50
	}
	return c
}

// Detector maintains the bounded keystroke history and the personal typing
// baseline. Recording arrives from the capture side and assessment from the
// monitoring goroutine, so all state sits behind one mutex.
//
// Detector calls never return errors: missing or malformed input degrades to
// a neutral result.
type Detector struct {
	mu       sync.Mutex
	cfg      Config
	logger   zerolog.Logger
	store    *BaselineStore // optional
	history  []*Keystroke
	baseline Baseline

	totalKeys    int
	backspaces   int
	completed    int
	sincePersist int
	firstKey     time.Time
}

// NewDetector creates a detector. store may be nil for in-memory operation;
// when set, a previously persisted baseline is loaded immediately.
func NewDetector(cfg Config, store *BaselineStore, logger zerolog.Logger) *Detector {
	d := &Detector{
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "keystroke_detector").Logger(),
		store:  store,
	}
	if store != nil {
		if b, err := store.Load(); err != nil {
			d.logger.Warn().Err(err).Msg("could not load persisted baseline, starting fresh")
		} else {
			d.baseline = b
			if b.Count > 0 {
				d.logger.Info().Int("samples", b.Count).Msg("baseline loaded")
			}
		}
	}
	return d
}

// RecordKeyEvent ingests one raw event. Key-down replaces any stale
// incomplete entry for the same key code; key-up completes the most recent
// incomplete entry for that code and is silently ignored when unmatched.
func (d *Detector) RecordKeyEvent(ev KeyEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Action {
	case KeyDown:
		d.dropIncomplete(ev.KeyCode)
		d.history = append(d.history, &Keystroke{
			KeyCode:  ev.KeyCode,
			Press:    ev.Timestamp,
			Pressure: ev.Pressure,
			X:        ev.X,
			Y:        ev.Y,
		})
		d.totalKeys++
		if ev.KeyCode == keyCodeBackspace {
			d.backspaces++
		}
		if d.firstKey.IsZero() {
			d.firstKey = ev.Timestamp
		}
		d.trim()

	case KeyUp:
		for i := len(d.history) - 1; i >= 0; i-- {
			k := d.history[i]
			if k.KeyCode == ev.KeyCode && k.Release.IsZero() {
				k.Release = ev.Timestamp
				d.completed++
				d.sincePersist++
				return
			}
		}
		// Key-up with no matching press: discarded.
	}
}

// dropIncomplete removes lingering press-only entries for a key code, so a
// lost key-up can't pair with the wrong press later.
func (d *Detector) dropIncomplete(keyCode int) {
	out := d.history[:0]
	for _, k := range d.history {
		if k.KeyCode == keyCode && k.Release.IsZero() {
			continue
		}
		out = append(out, k)
	}
	d.history = out
}

func (d *Detector) trim() {
	if over := len(d.history) - d.cfg.HistoryCap; over > 0 {
		d.history = append(d.history[:0], d.history[over:]...)
	}
}

// Assess scores the most recent typing window against the baseline, then
// folds the window back into the baseline. Evaluation and learning are
// deliberately coupled: every observation both checks and refines the
// reference.
func (d *Detector) Assess() Assessment {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := Assessment{
		WPM:      d.wpmLocked(time.Now()),
		Accuracy: d.accuracyLocked(),
	}

	window := d.windowLocked()
	out.WindowSize = len(window)
	if len(window) < 2 {
		return out
	}

	avgDwell, avgFlight := windowAverages(window)
	out.AvgDwellMs = avgDwell
	out.AvgFlightMs = avgFlight

	if d.baseline.Established(d.cfg.MinBaselineSamples) {
		var zSum float64
		var zN int
		if d.baseline.DwellVar > 0 {
			zSum += math.Abs(avgDwell-d.baseline.MeanDwellMs) / math.Sqrt(d.baseline.DwellVar)
			zN++
		}
		if d.baseline.FlightVar > 0 {
			zSum += math.Abs(avgFlight-d.baseline.MeanFlightMs) / math.Sqrt(d.baseline.FlightVar)
			zN++
		}
		if zN > 0 {
			out.RawScore = zSum / float64(zN)
		}
		out.Anomalous = out.RawScore > d.cfg.Sensitivity
		out.Score = out.RawScore / 3.0
	}

	d.updateBaselineLocked(avgDwell, avgFlight, len(window))

	return out
}

// windowLocked returns the most recent WindowSize complete keystrokes.
func (d *Detector) windowLocked() []*Keystroke {
	var window []*Keystroke
	for i := len(d.history) - 1; i >= 0 && len(window) < d.cfg.WindowSize; i-- {
		if d.history[i].Complete() {
			window = append(window, d.history[i])
		}
	}
	// Restore chronological order for flight-time computation.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

// windowAverages computes mean dwell and mean flight over a window. Flight
// gaps that are zero or negative are discarded — they indicate clock
// anomalies or out-of-order events, not typing.
func windowAverages(window []*Keystroke) (avgDwell, avgFlight float64) {
	var dwellSum float64
	for _, k := range window {
		dwellSum += k.Dwell()
	}
	avgDwell = dwellSum / float64(len(window))

	var flightSum float64
	var flightN int
	for i := 1; i < len(window); i++ {
		gap := float64(window[i].Press.Sub(window[i-1].Press)) / float64(time.Millisecond)
		if gap <= 0 {
			continue
		}
		flightSum += gap
		flightN++
	}
	if flightN > 0 {
		avgFlight = flightSum / float64(flightN)
	}
	return avgDwell, avgFlight
}

// updateBaselineLocked blends the session averages into the baseline. The
// very first update initializes the means directly instead of blending
// against the zero sentinel.
func (d *Detector) updateBaselineLocked(avgDwell, avgFlight float64, samples int) {
	rate := d.cfg.LearningRate

	if d.baseline.MeanDwellMs == 0 {
		d.baseline.MeanDwellMs = avgDwell
		d.baseline.MeanFlightMs = avgFlight
	} else {
		d.baseline.MeanDwellMs = rate*avgDwell + (1-rate)*d.baseline.MeanDwellMs
		d.baseline.MeanFlightMs = rate*avgFlight + (1-rate)*d.baseline.MeanFlightMs
	}

	dwellDev := avgDwell - d.baseline.MeanDwellMs
	flightDev := avgFlight - d.baseline.MeanFlightMs
	d.baseline.DwellVar = rate*dwellDev*dwellDev + (1-rate)*d.baseline.DwellVar
	d.baseline.FlightVar = rate*flightDev*flightDev + (1-rate)*d.baseline.FlightVar

	d.baseline.Count += samples

	// Persist on a keystroke cadence rather than every call to bound I/O.
	if d.store != nil && d.sincePersist >= d.cfg.PersistEvery {
		d.sincePersist = 0
		if err := d.store.Save(d.baseline); err != nil {
			d.logger.Warn().Err(err).Msg("baseline persist failed")
		} else {
			d.logger.Debug().Int("samples", d.baseline.Count).Msg("baseline persisted")
		}
	}
}

// Baseline returns a copy of the current baseline statistics.
func (d *Detector) Baseline() Baseline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline
}

// ResetBaseline clears statistics, history, and persisted storage. Used for
// re-enrollment.
func (d *Detector) ResetBaseline() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.baseline = Baseline{}
	d.history = nil
	d.totalKeys = 0
	d.backspaces = 0
	d.completed = 0
	d.sincePersist = 0
	d.firstKey = time.Time{}

	if d.store != nil {
		if err := d.store.Clear(); err != nil {
			d.logger.Warn().Err(err).Msg("clearing persisted baseline failed")
		}
	}
	d.logger.Info().Msg("baseline reset")
}

// WPM estimates live words per minute, assuming 5 characters per word.
// Returns 0 with fewer than 5 complete keystrokes or non-positive elapsed
// time.
func (d *Detector) WPM() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wpmLocked(time.Now())
}

func (d *Detector) wpmLocked(now time.Time) float64 {
	if d.completed < 5 || d.firstKey.IsZero() {
		return 0
	}
	elapsed := now.Sub(d.firstKey).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(d.completed) / 5.0 / elapsed
}

// Accuracy estimates typing accuracy from the backspace ratio.
func (d *Detector) Accuracy() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accuracyLocked()
}

func (d *Detector) accuracyLocked() float64 {
	if d.totalKeys == 0 {
		return 1.0
	}
	acc := 1.0 - 2.0*float64(d.backspaces)/float64(d.totalKeys)
	if acc < 0 {
		return 0
	}
	return acc
}

// TotalRecorded returns the number of key-down events seen since the last
// reset.
func (d *Detector) TotalRecorded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalKeys
}

// DebugSnapshot reports detector internals for diagnostics. Not part of the
// scoring contract.
func (d *Detector) DebugSnapshot() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf(
		"samples=%d established=%v mean_dwell=%.1fms dwell_var=%.1f mean_flight=%.1fms flight_var=%.1f wpm=%.1f",
		d.baseline.Count,
		d.baseline.Established(d.cfg.MinBaselineSamples),
		d.baseline.MeanDwellMs,
		d.baseline.DwellVar,
		d.baseline.MeanFlightMs,
		d.baseline.FlightVar,
		d.wpmLocked(time.Now()),
	)
}
