package resolver

import "fmt"

const (
	titleTurnOn  = "Turn on location"
	buttonTurnOn = "Turn on location"

	msgGivePermission     = "Give location access permission."
	msgNotSupported       = "Location is not supported — please select your district from the dropdown box."
	msgNeedsHTTPS         = "Auto-detect needs HTTPS. Please select your district from the dropdown box."
	msgTrackingNeedsHTTPS = "Auto-detect requires HTTPS on most mobile browsers — please select your district from the dropdown box."
	msgAutoUnavailable    = "Auto-detect is unavailable here. Please select your district from the dropdown box."
	msgPermissionDenied   = "Location permission denied — please select your district from the dropdown box."
	msgDetecting          = "Detecting your location…"
	msgDetected           = "Location detected! Loading prayer times…"
	msgNoDistrict         = "Could not detect your district — please select manually from the dropdown."
	msgProbeOff           = "Location is OFF on your device! Turn ON location, then tap the button again."
	msgProbeFailed        = "Could not detect location. Please turn ON location and try again."
	msgWatchDenied        = "Location permission not allowed. Turn ON location, or use the dropdown to select your district."
	msgWatchOff           = "Location is OFF or unavailable. Please turn ON location, then tap the button again."
	msgRepeatedFailure    = "Location could not be detected (timeout/unavailable). Please select your district from the dropdown box."
	msgWatchFailed        = "Location could not be detected — please select your district from the dropdown box."
	msgPermissionGranted  = "Permission granted. Turn ON location and tap the button to detect your district."
	msgPermissionPrompt   = "Turn ON location and tap the button."
	msgDatasetFailed      = "Prayer times could not be loaded right now. Please try again or select your district from the dropdown."

	// AlertLoadFailed is the single generic alert for startup failures.
	AlertLoadFailed = "Failed to load prayer times"
	// NoticeCalendarNeedsDistrict is shown when the calendar opens with no active district.
	NoticeCalendarNeedsDistrict = "Please select a district to view the calendar."
)

func msgNotInDataset(district string) string {
	return fmt.Sprintf(
		"Your current location is %q. Prayer times for %q are not available. Please select a nearby district from the dropdown.",
		district, district,
	)
}
