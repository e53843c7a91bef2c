package view

import (
	"strconv"
	"time"

	"github.com/Nixie-Tech-LLC/waqt/internal/model"
)

// CalendarViewState is the month the calendar shows and the highlighted day.
type CalendarViewState struct {
	Year            int    `json:"year"`
	MonthIndex      int    `json:"month_index"` // 0-11
	SelectedDateKey string `json:"selected_date,omitempty"`
}

// Shift moves delta months, carrying into the year. Shift(0) normalises an
// out-of-range MonthIndex.
func (c CalendarViewState) Shift(delta int) CalendarViewState {
	t := time.Date(c.Year, time.Month(c.MonthIndex+1+delta), 1, 0, 0, 0, 0, time.UTC)
	c.Year = t.Year()
	c.MonthIndex = int(t.Month()) - 1
	return c
}

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Day      int    `json:"day"`
	DateKey  string `json:"date"`
	Today    bool   `json:"today,omitempty"`
	Selected bool   `json:"selected,omitempty"`
	Ramadan  bool   `json:"ramadan,omitempty"`
	HasEntry bool   `json:"has_entry,omitempty"`
}

// CalendarMonth is a month grid starting on Sunday; Offset blank cells
// precede the first day.
type CalendarMonth struct {
	District string        `json:"district"`
	Label    string        `json:"label"`
	Headers  []string      `json:"headers"`
	Offset   int           `json:"offset"`
	Days     []CalendarDay `json:"days"`
}

var weekdayHeaders = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// BuildMonth lays out the month of state for district's entries.
func BuildMonth(district string, state CalendarViewState, entries []model.ScheduleEntry, today model.Date) CalendarMonth {
	state = state.Shift(0)
	first := time.Date(state.Year, time.Month(state.MonthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	days := daysIn(first)

	byDate := make(map[model.Date]model.ScheduleEntry, len(entries))
	for _, e := range entries {
		if !e.Date.IsZero() {
			byDate[e.Date] = e
		}
	}

	month := CalendarMonth{
		District: district,
		Label:    first.Month().String() + " " + strconv.Itoa(first.Year()),
		Headers:  weekdayHeaders,
		Offset:   int(first.Weekday()), // Sunday == 0
		Days:     make([]CalendarDay, 0, days),
	}
	for day := 1; day <= days; day++ {
		d := model.Date{Year: first.Year(), Month: first.Month(), Day: day}
		cell := CalendarDay{
			Day:      day,
			DateKey:  d.String(),
			Today:    d == today,
			Selected: state.SelectedDateKey != "" && d.String() == state.SelectedDateKey,
		}
		if e, ok := byDate[d]; ok {
			cell.HasEntry = true
			cell.Ramadan = e.IsRamadan()
		}
		month.Days = append(month.Days, cell)
	}
	return month
}

func daysIn(month time.Time) int {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	return first.AddDate(0, 1, -1).Day()
}

func itoa(n int) string { return strconv.Itoa(n) }
