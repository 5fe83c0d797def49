package record

import (
	"strings"
	"time"
)

// DateLayout is the calendar layout used for BuyDate.
const DateLayout = "2006-01-02"

// Record is one client's purchased-time account.
// StartTimestamp is non-nil exactly when the record is running (Paused == false).
type Record struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Role           string     `json:"role"`
	BuyDate        string     `json:"buyDate"`
	TotalSeconds   int64      `json:"totalSeconds"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	StartTimestamp *time.Time `json:"startTimestamp"`
	Paused         bool       `json:"paused"`
}

// New returns a stopped record with nothing consumed yet.
func New(id, name, phone, role string, totalSeconds int64, bought time.Time) Record {
	return Record{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		Role:         strings.TrimSpace(role),
		BuyDate:      bought.Format(DateLayout),
		TotalSeconds: totalSeconds,
		Paused:       true,
	}
}

// Running reports whether the record is accumulating time.
func (r Record) Running() bool { return !r.Paused && r.StartTimestamp != nil }

// WellFormed reports whether the record may be sent to the remote store.
func (r Record) WellFormed() bool {
	return r.ID != "" && r.Name != "" && r.TotalSeconds > 0
}

// Consistent reports whether the paused flag agrees with the start timestamp.
func (r Record) Consistent() bool {
	return r.Paused == (r.StartTimestamp == nil)
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (r Record) Clone() Record {
	if r.StartTimestamp != nil {
		ts := *r.StartTimestamp
		r.StartTimestamp = &ts
	}
	return r
}

// PurchaseDate parses BuyDate. ok is false when the field is not a calendar date.
func (r Record) PurchaseDate() (time.Time, bool) {
	t, err := time.Parse(DateLayout, r.BuyDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WellFormedOnly filters list down to records accepted by the remote store.
func WellFormedOnly(list []Record) []Record {
	out := make([]Record, 0, len(list))
	for _, r := range list {
		if r.WellFormed() {
			out = append(out, r)
		}
	}
	return out
}

// UniqueByID drops later records whose id was already seen.
func UniqueByID(list []Record) []Record {
	seen := make(map[string]struct{}, len(list))
	out := make([]Record, 0, len(list))
	for _, r := range list {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// CloneAll deep-copies list.
func CloneAll(list []Record) []Record {
	out := make([]Record, len(list))
	for i, r := range list {
		out[i] = r.Clone()
	}
	return out
}
