// Package registry holds the in-memory client records and their view ordering.
//
// A Registry is not safe for concurrent use. It is owned by a single loop
// goroutine which serializes every read and mutation.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/loykin/loungeclock/internal/accounting"
	"github.com/loykin/loungeclock/internal/record"
)

var (
	ErrDuplicateID   = errors.New("duplicate client id")
	ErrNotFound      = errors.New("client not found")
	ErrInvalidFilter = errors.New("unknown status filter")
	ErrInvalidSort   = errors.New("unknown sort key")
)

type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus accepts all, active or inactive (case-insensitive). Blank means all.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusInactive:
		return st, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidFilter)
	}
}

type SortKey string

const (
	SortRole      SortKey = "role"
	SortName      SortKey = "name"
	SortPhone     SortKey = "phone"
	SortBuyDate   SortKey = "buyDate"
	SortRemaining SortKey = "remaining"
)

// ParseSortKey matches key names case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range []SortKey{SortRole, SortName, SortPhone, SortBuyDate, SortRemaining} {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidSort)
}

// SortState is the last selected key and direction.
type SortState struct {
	Key       SortKey
	Ascending bool
}

type Registry struct {
	items []record.Record
	sort  SortState
}

func New() *Registry { return &Registry{} }

func (r *Registry) Len() int { return len(r.items) }

// Add appends rec. The first record with a given id wins.
func (r *Registry) Add(rec record.Record) error {
	if r.index(rec.ID) >= 0 {
		return fmt.Errorf("%s: %w", rec.ID, ErrDuplicateID)
	}
	r.items = append(r.items, rec.Clone())
	return nil
}

// Get returns a copy of the record with id.
func (r *Registry) Get(id string) (record.Record, bool) {
	i := r.index(id)
	if i < 0 {
		return record.Record{}, false
	}
	return r.items[i].Clone(), true
}

// Update applies fn to a copy of the record and stores it only when fn succeeds.
func (r *Registry) Update(id string, fn func(*record.Record) error) error {
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	cp := r.items[i].Clone()
	if err := fn(&cp); err != nil {
		return err
	}
	cp.ID = r.items[i].ID
	r.items[i] = cp
	return nil
}

// Remove deletes the record with id.
func (r *Registry) Remove(id string) error {
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	r.items = slices.Delete(r.items, i, i+1)
	return nil
}

// All returns a copy of every record in the current order.
func (r *Registry) All() []record.Record { return record.CloneAll(r.items) }

// Replace swaps in a full snapshot. Prior ordering is discarded and later
// duplicates of an id are dropped. The sort selection is kept.
func (r *Registry) Replace(list []record.Record) {
	r.items = record.CloneAll(record.UniqueByID(list))
}

// Filter returns copies of the records matching status, in the current order.
func (r *Registry) Filter(status Status, now time.Time) ([]record.Record, error) {
	var keep func(record.Record) bool
	switch status {
	case StatusAll, "":
		keep = func(record.Record) bool { return true }
	case StatusActive:
		keep = func(rec record.Record) bool { return accounting.IsActive(rec, now) }
	case StatusInactive:
		keep = func(rec record.Record) bool { return !accounting.IsActive(rec, now) }
	default:
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidFilter)
	}
	out := make([]record.Record, 0, len(r.items))
	for _, rec := range r.items {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Sort orders the records by key. Choosing the current key again flips the
// direction; a new key starts ascending.
func (r *Registry) Sort(key SortKey, now time.Time) (SortState, error) {
	if _, err := ParseSortKey(string(key)); err != nil {
		return r.sort, err
	}
	if r.sort.Key == key {
		r.sort.Ascending = !r.sort.Ascending
	} else {
		r.sort = SortState{Key: key, Ascending: true}
	}
	r.apply(now)
	return r.sort, nil
}

// Resort reapplies the current selection without flipping it.
func (r *Registry) Resort(now time.Time) {
	if r.sort.Key != "" {
		r.apply(now)
	}
}

func (r *Registry) SortState() SortState { return r.sort }

func (r *Registry) apply(now time.Time) {
	key, asc := r.sort.Key, r.sort.Ascending
	slices.SortStableFunc(r.items, func(a, b record.Record) int {
		c := compare(key, a, b, now)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if !asc {
			c = -c
		}
		return c
	})
}

func compare(key SortKey, a, b record.Record, now time.Time) int {
	switch key {
	case SortRemaining:
		return cmp.Compare(accounting.RemainingSeconds(a, now), accounting.RemainingSeconds(b, now))
	case SortBuyDate:
		da, oka := a.PurchaseDate()
		db, okb := b.PurchaseDate()
		if oka && okb {
			return da.Compare(db)
		}
		return foldCompare(a.BuyDate, b.BuyDate)
	case SortName:
		return foldCompare(a.Name, b.Name)
	case SortPhone:
		return foldCompare(a.Phone, b.Phone)
	case SortRole:
		return foldCompare(a.Role, b.Role)
	default:
		return 0
	}
}

func foldCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.items, func(rec record.Record) bool { return rec.ID == id })
}
