package collect

import (
	"context"
	"time"

	"github.com/ctxguard-project/ctxguard/internal/core"
)

// TimeOfDay builds the one collector that is always available: the current
// clock classified into a period plus a working-hours flag. clock may be nil
// to use the system clock; tests inject a fixed one.
func TimeOfDay(hours core.WorkingHours, clock func() time.Time) core.TimeFunc {
	if clock == nil {
		clock = time.Now
	}
	return func(ctx context.Context) core.TimeContext {
		now := clock()
		return core.TimeContext{
			Period:       ClassifyHour(now.Hour()),
			WorkingHours: hours.Contains(now),
			Hour:         now.Hour(),
		}
	}
}

// ClassifyHour buckets an hour of day: 06-12 morning, 12-17 afternoon,
// 17-22 evening, the rest night.
func ClassifyHour(h int) core.TimeOfDay {
	switch {
	case h >= 6 && h < 12:
		return core.Morning
	case h >= 12 && h < 17:
		return core.Afternoon
	case h >= 17 && h < 22:
		return core.Evening
	default:
		return core.Night
	}
}
