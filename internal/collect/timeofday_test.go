package collect

import (
	"context"
	"testing"
	"time"

	"github.com/ctxguard-project/ctxguard/internal/core"
)

func TestClassifyHour(t *testing.T) {
	tests := []struct {
		hour int
		want core.TimeOfDay
	}{
		{0, core.Night},
		{5, core.Night},
		{6, core.Morning},
		{11, core.Morning},
		{12, core.Afternoon},
		{16, core.Afternoon},
		{17, core.Evening},
		{21, core.Evening},
		{22, core.Night},
		{23, core.Night},
	}
	for _, tt := range tests {
		if got := ClassifyHour(tt.hour); got != tt.want {
			t.Errorf("ClassifyHour(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestTimeOfDay_InjectedClock(t *testing.T) {
	hours := core.WorkingHours{StartHour: 9, EndHour: 17}

	tests := []struct {
		name        string
		now         time.Time
		wantPeriod  core.TimeOfDay
		wantWorking bool
	}{
		{"weekday morning", time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC), core.Morning, true},
		{"weekday night", time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC), core.Night, false},
		{"saturday afternoon", time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC), core.Afternoon, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := TimeOfDay(hours, func() time.Time { return tt.now })
			tc := provider(context.Background())
			if tc.Period != tt.wantPeriod {
				t.Errorf("period = %v, want %v", tc.Period, tt.wantPeriod)
			}
			if tc.WorkingHours != tt.wantWorking {
				t.Errorf("working = %v, want %v", tc.WorkingHours, tt.wantWorking)
			}
			if tc.Hour != tt.now.Hour() {
				t.Errorf("hour = %d, want %d", tc.Hour, tt.now.Hour())
			}
		})
	}
}
