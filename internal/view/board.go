package view

import (
	"strings"
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/waqt/internal/model"
)

// Gate is the blocking screen currently shown.
type Gate struct {
	Kind       GateKind `json:"kind"`
	Title      string   `json:"title,omitempty"`
	Message    string   `json:"message,omitempty"`
	Button     bool     `json:"button"`
	ButtonText string   `json:"button_text,omitempty"`
}

// Snapshot is everything the widget needs to paint itself.
type Snapshot struct {
	Version          uint64              `json:"version"`
	District         string              `json:"district"`
	Schedule         model.AthanPageData `json:"schedule"`
	Gate             Gate                `json:"gate"`
	AppVisible       bool                `json:"app_visible"`
	DropdownVisible  bool                `json:"dropdown_visible"`
	Districts        []string            `json:"districts"`
	SelectedDistrict string              `json:"selected_district"`
	Notice           string              `json:"notice,omitempty"`
	NoticeImportant  bool                `json:"notice_important,omitempty"`
	Alert            string              `json:"alert,omitempty"`
	Calendar         CalendarViewState   `json:"calendar"`
}

// Board is a Presenter that keeps the latest Snapshot in memory and hands
// every change to an optional publish hook.
type Board struct {
	mu      sync.Mutex
	snap    Snapshot
	publish func(Snapshot)
}

// NewBoard starts with placeholders, no gate and the calendar on today's month.
func NewBoard(today time.Time) *Board {
	b := &Board{}
	b.snap.District = NoDistrictLabel
	b.snap.Gate = Gate{Kind: GateHidden}
	b.snap.AppVisible = true
	b.snap.Calendar = CalendarViewState{Year: today.Year(), MonthIndex: int(today.Month()) - 1}
	b.resetSchedule(Placeholder)
	return b
}

// OnChange registers fn to receive a copy of the snapshot after each change.
func (b *Board) OnChange(fn func(Snapshot)) {
	b.mu.Lock()
	b.publish = fn
	b.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked()
}

func (b *Board) copyLocked() Snapshot {
	s := b.snap
	s.Districts = append([]string(nil), b.snap.Districts...)
	s.Schedule.Prayers = append([]model.Prayer(nil), b.snap.Schedule.Prayers...)
	return s
}

// update applies fn under the lock, bumps the version and publishes.
func (b *Board) update(fn func()) {
	b.mu.Lock()
	fn()
	b.snap.Version++
	s := b.copyLocked()
	publish := b.publish
	b.mu.Unlock()

	if publish != nil {
		publish(s)
	}
}

func (b *Board) ShowDistrict(name string) {
	b.update(func() {
		if strings.TrimSpace(name) == "" {
			name = NoDistrictLabel
		}
		b.snap.District = name
	})
}

func (b *Board) SetDistricts(districts []string) {
	b.update(func() {
		b.snap.Districts = append([]string(nil), districts...)
	})
}

func (b *Board) RenderSchedule(district string, entry *model.ScheduleEntry) {
	if entry == nil {
		return
	}
	b.update(func() {
		b.snap.SelectedDistrict = district
		sched := model.AthanPageData{
			District:   district,
			Date:       entry.DateKey,
			RamadanDay: Placeholder,
			Sehri:      orPlaceholder(entry.Sehri),
			Iftar:      orPlaceholder(entry.Iftar),
		}
		if entry.RamadanDay != nil {
			sched.RamadanDay = itoa(*entry.RamadanDay)
		}
		for _, name := range model.PrayerNames {
			p := entry.Prayer(name)
			sched.Prayers = append(sched.Prayers, model.Prayer{
				Name:   name,
				Start:  orPlaceholder(p.StartTime),
				Jamaah: orPlaceholder(p.JamaahTime),
			})
		}
		b.snap.Schedule = sched
	})
}

func (b *Board) ResetSchedule(placeholder string) {
	b.update(func() { b.resetSchedule(placeholder) })
}

func (b *Board) resetSchedule(placeholder string) {
	sched := model.AthanPageData{
		RamadanDay: placeholder,
		Sehri:      placeholder,
		Iftar:      placeholder,
	}
	for _, name := range model.PrayerNames {
		sched.Prayers = append(sched.Prayers, model.Prayer{Name: name, Start: placeholder, Jamaah: placeholder})
	}
	b.snap.Schedule = sched
}

func (b *Board) HighlightActivePrayer(entry model.ScheduleEntry, minutes int) {
	active, ok := ActivePrayer(entry, minutes)
	if !ok {
		return
	}
	b.update(func() {
		for i := range b.snap.Schedule.Prayers {
			b.snap.Schedule.Prayers[i].Active = b.snap.Schedule.Prayers[i].Name == active
		}
	})
}

func (b *Board) ShowGate(kind GateKind, message string, opts GateOptions) {
	b.update(func() {
		switch kind {
		case GateAction, GatePermissionPrompt:
			if message == "" {
				message = "Location is required."
			}
			title := opts.Title
			if title == "" {
				title = "Allow location access"
			}
			b.snap.Gate = Gate{
				Kind:       kind,
				Title:      title,
				Message:    message,
				Button:     kind == GateAction,
				ButtonText: opts.ButtonText,
			}
			b.snap.AppVisible = false
			b.setNotice("")
		case GateDropdown:
			b.snap.Gate = Gate{Kind: GateDropdown}
			b.snap.AppVisible = true
			b.snap.DropdownVisible = true
			b.setNotice(message)
		default:
			b.snap.Gate = Gate{Kind: GateHidden}
			b.snap.AppVisible = true
		}
	})
}

func (b *Board) ShowNotice(message string) {
	b.update(func() { b.setNotice(message) })
}

func (b *Board) setNotice(message string) {
	b.snap.Notice = message
	b.snap.NoticeImportant = strings.HasPrefix(message, "Location permission denied") ||
		strings.HasPrefix(message, "Location is unavailable")
}

func (b *Board) SelectDate(dateKey string) {
	b.update(func() { b.snap.Calendar.SelectedDateKey = dateKey })
}

func (b *Board) Alert(message string) {
	b.update(func() { b.snap.Alert = message })
}

// ShiftCalendar moves the calendar view by delta months and returns the new state.
func (b *Board) ShiftCalendar(delta int) CalendarViewState {
	var out CalendarViewState
	b.update(func() {
		b.snap.Calendar = b.snap.Calendar.Shift(delta)
		out = b.snap.Calendar
	})
	return out
}

// SetCalendarMonth jumps the calendar view to the given month (0-11).
func (b *Board) SetCalendarMonth(year, monthIndex int) CalendarViewState {
	var out CalendarViewState
	b.update(func() {
		b.snap.Calendar = CalendarViewState{
			Year:            year,
			MonthIndex:      monthIndex,
			SelectedDateKey: b.snap.Calendar.SelectedDateKey,
		}.Shift(0)
		out = b.snap.Calendar
	})
	return out
}

// ShowNoticeIfNone sets message only when no notice is currently visible.
func (b *Board) ShowNoticeIfNone(message string) {
	b.update(func() {
		if b.snap.Notice == "" {
			b.setNotice(message)
		}
	})
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
