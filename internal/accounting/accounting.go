// Package accounting computes remaining and consumed time for client records.
// Every function is pure: the result depends only on the record and now.
package accounting

import (
	"fmt"
	"time"

	"github.com/loykin/loungeclock/internal/record"
)

// LowTimeThreshold is the remaining time at or below which a running account is flagged.
const LowTimeThreshold int64 = 600

// RunningExtra returns the whole seconds accumulated by the current run.
// Sub-second remainders are dropped. A start in the future counts as zero.
func RunningExtra(r record.Record, now time.Time) int64 {
	if r.Paused || r.StartTimestamp == nil {
		return 0
	}
	d := now.Sub(*r.StartTimestamp)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// ConsumedSeconds is the folded elapsed time plus the current run.
func ConsumedSeconds(r record.Record, now time.Time) int64 {
	return r.ElapsedSeconds + RunningExtra(r, now)
}

// RemainingSeconds returns max(0, total - elapsed - runningExtra).
func RemainingSeconds(r record.Record, now time.Time) int64 {
	rem := r.TotalSeconds - ConsumedSeconds(r, now)
	if rem < 0 {
		return 0
	}
	return rem
}

// IsActive reports whether the record still has time left.
func IsActive(r record.Record, now time.Time) bool {
	return RemainingSeconds(r, now) > 0
}

// LowTime reports whether the remaining time is positive but within LowTimeThreshold.
func LowTime(r record.Record, now time.Time) bool {
	rem := RemainingSeconds(r, now)
	return rem > 0 && rem <= LowTimeThreshold
}

// FormatDuration renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
