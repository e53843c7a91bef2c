package resolver

import (
	"time"

	"github.com/Nixie-Tech-LLC/waqt/internal/geo"
)

// Phase is the conceptual state of the machine.
type Phase string

const (
	PhaseUnresolved         Phase = "unresolved"
	PhaseAwaitingPermission Phase = "awaiting-permission"
	PhaseResolving          Phase = "resolving"
	PhaseResolved           Phase = "resolved"
	PhaseFallback           Phase = "fallback"
)

// Permission is the machine's view of the geolocation permission.
type Permission string

const (
	PermissionUnknown  Permission = "unknown"
	PermissionGranted  Permission = "granted"
	PermissionDenied   Permission = "denied"
	PermissionInsecure Permission = "insecure-context"
)

func permissionFrom(p geo.Permission) Permission {
	switch p {
	case geo.PermissionGranted:
		return PermissionGranted
	case geo.PermissionDenied:
		return PermissionDenied
	}
	return PermissionUnknown
}

// State is the mutable core owned by one Machine. It starts all-unknown and
// is never persisted.
type State struct {
	Phase                  Phase      `json:"phase"`
	ActiveDistrict         string     `json:"active_district,omitempty"`
	Permission             Permission `json:"permission"`
	LastAutoDistrict       string     `json:"last_auto_district,omitempty"`
	LastManualDistrict     string     `json:"last_manual_district,omitempty"`
	ManualLockUntil        time.Time  `json:"manual_lock_until"`
	ConsecutiveGeoFailures int        `json:"consecutive_geo_failures"`
	Watching               bool       `json:"watching"`
}

// Config holds the machine's timing values.
type Config struct {
	// ProbeTimeout bounds the one-shot probe run when the user taps the button.
	ProbeTimeout time.Duration
	// QuickProbeTimeout bounds the fast probe fired when tracking starts.
	QuickProbeTimeout time.Duration
	// WatchTimeout is how long the continuous watch waits for each fix.
	WatchTimeout time.Duration
	// ManualLock is how long a dropdown choice suppresses disagreeing
	// automatic updates.
	ManualLock time.Duration
	// MaxRetryGates is how many consecutive unavailable failures get a retry
	// gate before the dropdown fallback.
	MaxRetryGates int
}

func DefaultConfig() Config {
	return Config{
		ProbeTimeout:      8 * time.Second,
		QuickProbeTimeout: 3500 * time.Millisecond,
		WatchTimeout:      8 * time.Second,
		ManualLock:        30 * time.Second,
		MaxRetryGates:     1,
	}
}
