// Package keystroke turns a raw key-event stream into an online personal
// typing baseline and per-call anomaly assessments.
package keystroke

import "time"

// KeyAction distinguishes press from release in the ingestion contract.
type KeyAction int

const (
	KeyDown KeyAction = iota
	KeyUp
)

// KeyEvent is a single raw event from the capture side. How the events are
// obtained (text field hook, system capture) is the caller's business.
type KeyEvent struct {
	KeyCode   int
	Action    KeyAction
	Timestamp time.Time
	Pressure  float32
	X, Y      float32
}

// Keystroke is one press/release pair. Release stays zero until the matching
// key-up is observed.
type Keystroke struct {
	KeyCode  int
	Press    time.Time
	Release  time.Time
	Pressure float32
	X, Y     float32
}

// Complete reports whether both timestamps have been observed.
func (k *Keystroke) Complete() bool {
	return !k.Press.IsZero() && !k.Release.IsZero()
}

// Dwell is the hold duration in milliseconds, 0 while incomplete.
func (k *Keystroke) Dwell() float64 {
	if !k.Complete() {
		return 0
	}
	return float64(k.Release.Sub(k.Press)) / float64(time.Millisecond)
}

// Baseline is the user's personal reference typing statistics, learned
// online via exponential moving average. Zero means unset: MeanDwellMs at
// its zero sentinel marks a baseline that has never been initialized.
type Baseline struct {
	MeanDwellMs  float64
	DwellVar     float64
	MeanFlightMs float64
	FlightVar    float64
	Count        int
}

// Established reports whether enough samples have accumulated for the
// baseline to be used in scoring.
func (b Baseline) Established(minSamples int) bool {
	return b.Count >= minSamples && b.MeanDwellMs > 0
}

// Assessment is the result of one detector call: the most recent typing
// window scored against the baseline.
type Assessment struct {
	RawScore    float64 // mean of the available z-scores
	Score       float64 // RawScore / 3.0, approximately 0-1 but not clamped
	Anomalous   bool
	AvgDwellMs  float64
	AvgFlightMs float64
	WindowSize  int // complete keystrokes considered
	WPM         float64
	Accuracy    float64
}
