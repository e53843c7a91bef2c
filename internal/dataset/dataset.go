// Package dataset gives read-only access to the district prayer timetable.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Nixie-Tech-LLC/waqt/internal/model"
)

var (
	ErrDatasetLoad      = errors.New("dataset load failed")
	ErrDistrictNotFound = errors.New("district not in dataset")
)

// Dataset maps district display names to their schedule entries. It is
// immutable once built and safe for concurrent readers.
type Dataset struct {
	entries map[string][]model.ScheduleEntry
	byLower map[string]string
	keys    []string
}

// New builds a Dataset. Keys are stored as given; lookups ignore case.
func New(entries map[string][]model.ScheduleEntry) *Dataset {
	d := &Dataset{
		entries: make(map[string][]model.ScheduleEntry, len(entries)),
		byLower: make(map[string]string, len(entries)),
		keys:    make([]string, 0, len(entries)),
	}
	for k, v := range entries {
		d.entries[k] = v
		d.keys = append(d.keys, k)
	}
	sort.Strings(d.keys)
	for _, k := range d.keys {
		lower := strings.ToLower(k)
		if _, taken := d.byLower[lower]; !taken {
			d.byLower[lower] = k
		}
	}
	return d
}

// Decode reads the JSON document form: {"District": [entry, ...], ...}.
func Decode(r io.Reader) (*Dataset, error) {
	var raw map[string][]model.ScheduleEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return New(raw), nil
}

// Lookup resolves name case-insensitively to the key as stored.
func (d *Dataset) Lookup(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	key, ok := d.byLower[strings.ToLower(name)]
	return key, ok
}

// EntriesFor returns the entries stored under key, or nil.
func (d *Dataset) EntriesFor(key string) []model.ScheduleEntry {
	if d == nil {
		return nil
	}
	return d.entries[key]
}

// Districts lists every key sorted alphabetically, for the dropdown.
func (d *Dataset) Districts() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// RamadanEntries returns the entries of key that carry a Ramadan day, in stored order.
func (d *Dataset) RamadanEntries(key string) []model.ScheduleEntry {
	var out []model.ScheduleEntry
	for _, e := range d.EntriesFor(key) {
		if e.IsRamadan() {
			out = append(out, e)
		}
	}
	return out
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// SelectForDate picks the entry to show on target: the exact date if present,
// otherwise the latest entry dated on or before target, otherwise the earliest
// entry. Entries whose date could not be parsed are only used when no entry
// has a usable date.
func SelectForDate(entries []model.ScheduleEntry, target model.Date) (model.ScheduleEntry, bool) {
	if len(entries) == 0 {
		return model.ScheduleEntry{}, false
	}

	for _, e := range entries {
		if !e.Date.IsZero() && e.Date == target {
			return e, true
		}
	}

	dated := make([]model.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Date.IsZero() {
			dated = append(dated, e)
		}
	}
	if len(dated) == 0 {
		return entries[0], true
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date.Before(dated[j].Date) })

	for i := len(dated) - 1; i >= 0; i-- {
		if !dated[i].Date.After(target) {
			return dated[i], true
		}
	}
	return dated[0], true
}
