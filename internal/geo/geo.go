// Package geo wraps a platform position source with timeouts and classifies
// its outcomes the way the district resolver needs them.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnsupported     = errors.New("geolocation not supported")
	ErrInsecureContext = errors.New("geolocation requires a secure context")
)

// Permission is the platform's geolocation permission state.
type Permission string

const (
	PermissionUnknown Permission = ""
	PermissionPrompt  Permission = "prompt"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps the platform's state strings; anything unrecognised is unknown.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionPrompt, PermissionGranted, PermissionDenied:
		return Permission(s)
	}
	return PermissionUnknown
}

// Position error codes as reported by the platform.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// PositionError is a failure reported by the position source.
type PositionError struct {
	Code    int
	Message string
}

func (e *PositionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("geolocation error %d", e.Code)
}

// Reason classifies a failed probe or watch.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonUnavailable      Reason = "unavailable"
	ReasonUnsupported      Reason = "unsupported"
	ReasonOther            Reason = "other"
)

// Classify maps an error from a Source onto a Reason.
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	var perr *PositionError
	switch {
	case errors.As(err, &perr):
		switch perr.Code {
		case CodePermissionDenied:
			return ReasonPermissionDenied
		case CodePositionUnavailable, CodeTimeout:
			return ReasonUnavailable
		}
		return ReasonOther
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrInsecureContext):
		return ReasonUnsupported
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonUnavailable
	}
	return ReasonOther
}

// Position is a single coordinate fix.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	At        time.Time `json:"at"`
}

// Options mirror the platform's position options.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// Fix is one report from a continuous source: a position or an error.
type Fix struct {
	Position Position
	Err      error
}

// Source is the platform position capability.
type Source interface {
	Supported() bool
	SecureContext() bool
	Permission(ctx context.Context) Permission
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
	// WatchPosition streams fixes until ctx is cancelled, then closes the channel.
	WatchPosition(ctx context.Context, opts Options) <-chan Fix
}

// Outcome is the result of a one-shot probe.
type Outcome struct {
	Granted  bool
	Position Position
	Reason   Reason
	Err      error
}
