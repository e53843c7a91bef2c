package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	Fajr    = "Fajr"
	Dhuhr   = "Dhuhr"
	Asr     = "Asr"
	Maghrib = "Maghrib"
	Isha    = "Isha"
)

// PrayerNames lists the five daily prayers in display order.
var PrayerNames = []string{Fajr, Dhuhr, Asr, Maghrib, Isha}

// PrayerTime holds the optional start and congregation times of one prayer.
// Empty strings mean the time is not known.
type PrayerTime struct {
	StartTime  string `json:"startTime,omitempty"`
	JamaahTime string `json:"jamaahTime,omitempty"`
}

// ScheduleEntry is one day of a district's prayer timetable.
type ScheduleEntry struct {
	// DateKey is the date exactly as stored in the dataset.
	DateKey    string                `json:"date"`
	Date       Date                  `json:"-"`
	RamadanDay *int                  `json:"ramadanDay,omitempty"`
	Sehri      string                `json:"sehri,omitempty"`
	Iftar      string                `json:"iftar,omitempty"`
	Prayers    map[string]PrayerTime `json:"prayers,omitempty"`
}

// UnmarshalJSON decodes the dataset's entry shape. The date is parsed eagerly;
// an unparseable date leaves Date zero so the entry never wins a date match.
// ramadanDay may be a number, a numeric string or null.
func (e *ScheduleEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Date       string                `json:"date"`
		RamadanDay json.RawMessage       `json:"ramadanDay"`
		Sehri      string                `json:"sehri"`
		Iftar      string                `json:"iftar"`
		Prayers    map[string]PrayerTime `json:"prayers"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*e = ScheduleEntry{
		DateKey: raw.Date,
		Sehri:   raw.Sehri,
		Iftar:   raw.Iftar,
		Prayers: raw.Prayers,
	}
	if d, err := ParseDate(raw.Date); err == nil {
		e.Date = d
	}
	e.RamadanDay = parseRamadanDay(raw.RamadanDay)
	return nil
}

func parseRamadanDay(raw json.RawMessage) *int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// IsRamadan reports whether the entry carries a positive Ramadan day number.
func (e ScheduleEntry) IsRamadan() bool {
	return e.RamadanDay != nil && *e.RamadanDay > 0
}

// Prayer returns the times recorded for name, if any.
func (e ScheduleEntry) Prayer(name string) PrayerTime {
	if e.Prayers == nil {
		return PrayerTime{}
	}
	return e.Prayers[name]
}
