// Package view holds the widget's presentation state. It makes no decisions:
// the resolver tells it what to show and it records that as a Snapshot.
package view

import "github.com/Nixie-Tech-LLC/waqt/internal/model"

// GateKind selects which blocking screen, if any, covers the main content.
type GateKind string

const (
	GatePermissionPrompt GateKind = "permission-prompt-no-button"
	GateAction           GateKind = "action-button"
	GateDropdown         GateKind = "dropdown-fallback"
	GateHidden           GateKind = "hidden"
)

// GateOptions override the gate's title and button label.
type GateOptions struct {
	Title      string
	ButtonText string
}

const (
	Placeholder = "--"
	Unavailable = "Unavailable"

	NoDistrictLabel = "Select district"
)

// Presenter is what the resolver drives.
type Presenter interface {
	ShowDistrict(name string)
	SetDistricts(districts []string)
	RenderSchedule(district string, entry *model.ScheduleEntry)
	ResetSchedule(placeholder string)
	HighlightActivePrayer(entry model.ScheduleEntry, minutes int)
	ShowGate(kind GateKind, message string, opts GateOptions)
	ShowNotice(message string)
	SelectDate(dateKey string)
	Alert(message string)
}

// ActivePrayer picks the prayer in progress at minutes past midnight: the
// latest one that has started. Before the day's first prayer the previous
// night's last prayer is still current, so the latest prayer is returned.
func ActivePrayer(entry model.ScheduleEntry, minutes int) (string, bool) {
	found := false
	var (
		active             string
		activeAt           int
		latest             string
		latestAt, earliest int
	)
	for _, name := range model.PrayerNames {
		start, ok := model.ParseClock(entry.Prayer(name).StartTime)
		if !ok {
			continue
		}
		if !found || start > latestAt {
			latest, latestAt = name, start
		}
		if !found || start < earliest {
			earliest = start
		}
		if start <= minutes && (active == "" || start >= activeAt) {
			active, activeAt = name, start
		}
		found = true
	}
	if !found {
		return "", false
	}
	if minutes < earliest {
		return latest, true
	}
	return active, true
}
