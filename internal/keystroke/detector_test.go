package keystroke

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// typeSession feeds n complete keystrokes with fixed dwell and press-to-press
// gap, cycling through a small set of key codes. Returns the time after the
// last press.
func typeSession(d *Detector, start time.Time, n int, dwell, gap time.Duration) time.Time {
	t := start
	for i := 0; i < n; i++ {
		code := 29 + i%10
		d.RecordKeyEvent(KeyEvent{KeyCode: code, Action: KeyDown, Timestamp: t})
		d.RecordKeyEvent(KeyEvent{KeyCode: code, Action: KeyUp, Timestamp: t.Add(dwell)})
		t = t.Add(gap)
	}
	return t
}

func TestAssess_EmptyDetectorIsNeutral(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())

	a := d.Assess()
	if a.Anomalous {
		t.Error("empty detector must not flag an anomaly")
	}
	if a.RawScore != 0 || a.Score != 0 || a.WindowSize != 0 {
		t.Errorf("expected zero scores on empty window, got %+v", a)
	}
	if a.Accuracy != 1.0 {
		t.Errorf("accuracy with no keys = %v, want 1.0", a.Accuracy)
	}
}

func TestAssess_SingleKeystrokeIsNeutral(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())
	typeSession(d, time.Now(), 1, 100*time.Millisecond, 200*time.Millisecond)

	a := d.Assess()
	if a.WindowSize != 1 {
		t.Errorf("window size = %d, want 1", a.WindowSize)
	}
	if a.Anomalous || a.AvgDwellMs != 0 {
		t.Error("a single keystroke must not produce averages or anomalies")
	}
	if b := d.Baseline(); b.Count != 0 {
		t.Errorf("baseline must not learn from a sub-minimal window, count = %d", b.Count)
	}
}

func TestAssess_FirstUpdateInitializesBaselineDirectly(t *testing.T) {
	d := NewDetector(Config{WindowSize: 20}, nil, zerolog.Nop())
	typeSession(d, time.Now().Add(-time.Minute), 20, 100*time.Millisecond, 200*time.Millisecond)

	a := d.Assess()
	if !approx(a.AvgDwellMs, 100, 0.001) {
		t.Errorf("avg dwell = %v, want 100", a.AvgDwellMs)
	}
	if !approx(a.AvgFlightMs, 200, 0.001) {
		t.Errorf("avg flight = %v, want 200", a.AvgFlightMs)
	}

	b := d.Baseline()
	if !approx(b.MeanDwellMs, 100, 0.001) || !approx(b.MeanFlightMs, 200, 0.001) {
		t.Errorf("first update must set means directly, got dwell=%v flight=%v", b.MeanDwellMs, b.MeanFlightMs)
	}
	if b.Count != 20 {
		t.Errorf("baseline count = %d, want 20", b.Count)
	}
}

func TestAssess_SecondUpdateBlendsWithLearningRate(t *testing.T) {
	d := NewDetector(Config{WindowSize: 20, LearningRate: 0.1}, nil, zerolog.Nop())

	end := typeSession(d, time.Now().Add(-2*time.Minute), 20, 100*time.Millisecond, 200*time.Millisecond)
	d.Assess()
	typeSession(d, end.Add(time.Second), 20, 120*time.Millisecond, 220*time.Millisecond)
	d.Assess()

	b := d.Baseline()
	// 0.1*120 + 0.9*100
	if !approx(b.MeanDwellMs, 102, 0.01) {
		t.Errorf("blended mean dwell = %v, want 102", b.MeanDwellMs)
	}
	if !approx(b.MeanFlightMs, 202, 0.01) {
		t.Errorf("blended mean flight = %v, want 202", b.MeanFlightMs)
	}
	if b.Count != 40 {
		t.Errorf("baseline count = %d, want 40", b.Count)
	}
}

func TestAssess_NeverAnomalousBeforeMinBaselineSamples(t *testing.T) {
	d := NewDetector(Config{WindowSize: 20, MinBaselineSamples: 50}, nil, zerolog.Nop())

	end := typeSession(d, time.Now().Add(-2*time.Minute), 20, 100*time.Millisecond, 200*time.Millisecond)
	d.Assess()

	// Wildly different session, but the baseline is still immature.
	typeSession(d, end.Add(time.Second), 20, 500*time.Millisecond, 900*time.Millisecond)
	a := d.Assess()
	if a.Anomalous {
		t.Error("detector must stay quiet until the baseline is established")
	}
	if a.RawScore != 0 {
		t.Errorf("raw score before establishment = %v, want 0", a.RawScore)
	}
}

func TestAssess_DetectsDeviantSession(t *testing.T) {
	d := NewDetector(Config{WindowSize: 20, MinBaselineSamples: 30, LearningRate: 0.1, Sensitivity: 2.5}, nil, zerolog.Nop())

	// Two close-but-not-identical sessions establish the baseline and give
	// it a small nonzero variance.
	end := typeSession(d, time.Now().Add(-3*time.Minute), 20, 100*time.Millisecond, 200*time.Millisecond)
	d.Assess()
	end = typeSession(d, end.Add(time.Second), 20, 120*time.Millisecond, 220*time.Millisecond)
	d.Assess()

	// Then someone else types: triple the dwell time.
	typeSession(d, end.Add(time.Second), 20, 300*time.Millisecond, 200*time.Millisecond)
	a := d.Assess()

	if !a.Anomalous {
		t.Fatalf("deviant session not flagged, raw=%v", a.RawScore)
	}
	if a.RawScore <= 2.5 {
		t.Errorf("raw score = %v, want > sensitivity", a.RawScore)
	}
	if !approx(a.Score, a.RawScore/3.0, 1e-9) {
		t.Errorf("normalized score = %v, want raw/3 = %v", a.Score, a.RawScore/3.0)
	}
}

func TestAssess_ConsistentTypistStaysQuiet(t *testing.T) {
	d := NewDetector(Config{WindowSize: 20, MinBaselineSamples: 30, Sensitivity: 2.5}, nil, zerolog.Nop())

	start := time.Now().Add(-10 * time.Minute)
	for i := 0; i < 5; i++ {
		start = typeSession(d, start, 20, 100*time.Millisecond, 200*time.Millisecond)
		start = start.Add(time.Second)
		if a := d.Assess(); a.Anomalous {
			t.Fatalf("session %d of identical typing flagged anomalous, raw=%v", i, a.RawScore)
		}
	}
}

func TestRecordKeyEvent_UnmatchedKeyUpIgnored(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())
	d.RecordKeyEvent(KeyEvent{KeyCode: 30, Action: KeyUp, Timestamp: time.Now()})

	if d.TotalRecorded() != 0 {
		t.Error("key-up without a press must not count as a keystroke")
	}
	if a := d.Assess(); a.WindowSize != 0 {
		t.Errorf("window size = %d, want 0", a.WindowSize)
	}
}

func TestRecordKeyEvent_StalePressReplaced(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())
	now := time.Now()

	d.RecordKeyEvent(KeyEvent{KeyCode: 30, Action: KeyDown, Timestamp: now})
	// Key-up lost; the same key is pressed again.
	d.RecordKeyEvent(KeyEvent{KeyCode: 30, Action: KeyDown, Timestamp: now.Add(time.Second)})
	d.RecordKeyEvent(KeyEvent{KeyCode: 30, Action: KeyUp, Timestamp: now.Add(time.Second + 100*time.Millisecond)})

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) != 1 {
		t.Fatalf("history length = %d, want 1 (stale press dropped)", len(d.history))
	}
	k := d.history[0]
	if !k.Complete() {
		t.Fatal("surviving entry must be complete")
	}
	if !approx(k.Dwell(), 100, 0.001) {
		t.Errorf("dwell = %v, want 100ms against the fresh press", k.Dwell())
	}
}

func TestRecordKeyEvent_HistoryBounded(t *testing.T) {
	d := NewDetector(Config{HistoryCap: 10}, nil, zerolog.Nop())
	typeSession(d, time.Now(), 25, 100*time.Millisecond, 200*time.Millisecond)

	d.mu.Lock()
	n := len(d.history)
	d.mu.Unlock()
	if n > 10 {
		t.Errorf("history length = %d, want <= 10", n)
	}
	if d.TotalRecorded() != 25 {
		t.Errorf("total recorded = %d, want 25 despite trimming", d.TotalRecorded())
	}
}

func TestWPM(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())

	if got := d.WPM(); got != 0 {
		t.Errorf("WPM with no keys = %v, want 0", got)
	}

	start := time.Now().Add(-time.Minute)
	typeSession(d, start, 10, 80*time.Millisecond, 150*time.Millisecond)

	// 10 keystrokes over one minute, 5 chars per word.
	d.mu.Lock()
	got := d.wpmLocked(start.Add(time.Minute))
	d.mu.Unlock()
	if !approx(got, 2.0, 0.01) {
		t.Errorf("WPM = %v, want 2.0", got)
	}
}

func TestWPM_RequiresFiveKeystrokes(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())
	typeSession(d, time.Now().Add(-time.Minute), 4, 80*time.Millisecond, 150*time.Millisecond)

	if got := d.WPM(); got != 0 {
		t.Errorf("WPM with 4 keystrokes = %v, want 0", got)
	}
}

func TestAccuracy(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())
	now := time.Now()

	for i := 0; i < 8; i++ {
		d.RecordKeyEvent(KeyEvent{KeyCode: 29 + i, Action: KeyDown, Timestamp: now})
		now = now.Add(100 * time.Millisecond)
	}
	for i := 0; i < 2; i++ {
		d.RecordKeyEvent(KeyEvent{KeyCode: keyCodeBackspace, Action: KeyDown, Timestamp: now})
		d.RecordKeyEvent(KeyEvent{KeyCode: keyCodeBackspace, Action: KeyUp, Timestamp: now.Add(50 * time.Millisecond)})
		now = now.Add(100 * time.Millisecond)
	}

	// 2 backspaces out of 10 keys: 1 - 2*0.2 = 0.6.
	if got := d.Accuracy(); !approx(got, 0.6, 0.001) {
		t.Errorf("accuracy = %v, want 0.6", got)
	}
}

func TestAccuracy_FloorsAtZero(t *testing.T) {
	d := NewDetector(Config{}, nil, zerolog.Nop())
	now := time.Now()
	for i := 0; i < 10; i++ {
		d.RecordKeyEvent(KeyEvent{KeyCode: keyCodeBackspace, Action: KeyDown, Timestamp: now})
		now = now.Add(100 * time.Millisecond)
	}
	if got := d.Accuracy(); got != 0 {
		t.Errorf("accuracy = %v, want floor of 0", got)
	}
}

func TestResetBaseline(t *testing.T) {
	d := NewDetector(Config{WindowSize: 20}, nil, zerolog.Nop())
	typeSession(d, time.Now().Add(-time.Minute), 20, 100*time.Millisecond, 200*time.Millisecond)
	d.Assess()

	if b := d.Baseline(); b.Count == 0 {
		t.Fatal("setup failed: baseline should have learned")
	}

	d.ResetBaseline()

	if b := d.Baseline(); b != (Baseline{}) {
		t.Errorf("baseline after reset = %+v, want zero", b)
	}
	if d.TotalRecorded() != 0 {
		t.Error("key counters must reset")
	}
	if got := d.Accuracy(); got != 1.0 {
		t.Errorf("accuracy after reset = %v, want 1.0", got)
	}
	if a := d.Assess(); a.WindowSize != 0 {
		t.Error("history must be cleared on reset")
	}
}

func TestBaseline_Established(t *testing.T) {
	tests := []struct {
		name string
		b    Baseline
		want bool
	}{
		{"zero", Baseline{}, false},
		{"count only", Baseline{Count: 100}, false},
		{"mean only", Baseline{MeanDwellMs: 90}, false},
		{"both", Baseline{Count: 50, MeanDwellMs: 90}, true},
		{"just under", Baseline{Count: 49, MeanDwellMs: 90}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Established(50); got != tt.want {
				t.Errorf("Established(50) = %v, want %v", got, tt.want)
			}
		})
	}
}
