// Package timer implements the per-record run state machine.
//
// State Machine:
// Stopped -> Running (Start) -> Stopped (Pause or Expire)
//
// Every transition keeps Paused and StartTimestamp in agreement:
// a stopped record has no start timestamp, a running record always has one.
package timer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/loungeclock/internal/accounting"
	"github.com/loykin/loungeclock/internal/record"
)

var (
	ErrAlreadyRunning  = errors.New("record is already running")
	ErrNotRunning      = errors.New("record is not running")
	ErrInvalidDuration = errors.New("added time must be a positive duration")
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StateOf derives the state from the record's timing fields.
func StateOf(r record.Record) State {
	if r.Running() {
		return StateRunning
	}
	return StateStopped
}

// Start begins accumulating time at now.
func Start(r *record.Record, now time.Time) error {
	if StateOf(*r) == StateRunning {
		return fmt.Errorf("start %s: %w", r.ID, ErrAlreadyRunning)
	}
	ts := now
	r.StartTimestamp = &ts
	r.Paused = false
	return nil
}

// Pause folds the whole seconds of the current run into ElapsedSeconds.
func Pause(r *record.Record, now time.Time) error {
	if StateOf(*r) != StateRunning {
		return fmt.Errorf("pause %s: %w", r.ID, ErrNotRunning)
	}
	fold(r, now)
	return nil
}

// Toggle pauses a running record and starts a stopped one, returning the new state.
func Toggle(r *record.Record, now time.Time) (State, error) {
	if StateOf(*r) == StateRunning {
		if err := Pause(r, now); err != nil {
			return StateRunning, err
		}
		return StateStopped, nil
	}
	if err := Start(r, now); err != nil {
		return StateStopped, err
	}
	return StateRunning, nil
}

// Expire stops a running record whose budget is used up and reports whether it did.
// Records with no purchased time are never expired.
func Expire(r *record.Record, now time.Time) bool {
	if StateOf(*r) != StateRunning || r.TotalSeconds <= 0 {
		return false
	}
	if accounting.RemainingSeconds(*r, now) > 0 {
		return false
	}
	fold(r, now)
	return true
}

// AddTime extends the purchased budget. Timing fields are untouched.
func AddTime(r *record.Record, seconds int64) error {
	if seconds <= 0 || r.TotalSeconds > math.MaxInt64-seconds {
		return ErrInvalidDuration
	}
	r.TotalSeconds += seconds
	return nil
}

// ParseAddTime converts hour and minute fields to seconds.
// Blank fields count as zero; the sum must be positive.
func ParseAddTime(hours, minutes string) (int64, error) {
	h, err := parseField("hours", hours)
	if err != nil {
		return 0, err
	}
	m, err := parseField("minutes", minutes)
	if err != nil {
		return 0, err
	}
	if m > math.MaxInt64/60 || h > (math.MaxInt64-m*60)/3600 {
		return 0, fmt.Errorf("hours %q minutes %q: %w", hours, minutes, ErrInvalidDuration)
	}
	total := h*3600 + m*60
	if total <= 0 {
		return 0, ErrInvalidDuration
	}
	return total, nil
}

// HoursToSeconds converts a purchased-hours field, which may be fractional, to seconds.
func HoursToSeconds(hours string) (int64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(hours), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("hours %q: %w", hours, ErrInvalidDuration)
	}
	// float64(MaxInt64) rounds up to 2^63, which does not fit.
	rounded := math.Round(v * 3600)
	if rounded >= math.MaxInt64 {
		return 0, fmt.Errorf("hours %q: %w", hours, ErrInvalidDuration)
	}
	secs := int64(rounded)
	if secs <= 0 {
		return 0, fmt.Errorf("hours %q: %w", hours, ErrInvalidDuration)
	}
	return secs, nil
}

func parseField(name, v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s %q: %w", name, v, ErrInvalidDuration)
	}
	return n, nil
}

func fold(r *record.Record, now time.Time) {
	r.ElapsedSeconds += accounting.RunningExtra(*r, now)
	r.StartTimestamp = nil
	r.Paused = true
}
