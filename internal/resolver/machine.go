// Package resolver decides which district drives a widget. Geolocation,
// reverse geocoding and the user's dropdown choice all feed one Machine,
// which reconciles them and tells the presenter what to show.
package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/geo"
	"github.com/Nixie-Tech-LLC/waqt/internal/geocode"
	"github.com/Nixie-Tech-LLC/waqt/internal/model"
	"github.com/Nixie-Tech-LLC/waqt/internal/view"
)

// Datasets is the read side of dataset.Loader.
type Datasets interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

// Deps are the collaborators a Machine drives.
type Deps struct {
	Prober   *geo.Prober
	Geocoder geocode.Geocoder
	Data     Datasets
	View     view.Presenter
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *zerolog.Logger
}

// Machine owns one ResolutionState. Transitions are serialized by mu; calls to
// the geolocation source and the geocoder happen with mu released, and their
// results are checked again against the lock window once it is re-acquired.
type Machine struct {
	mu    sync.Mutex
	cfg   Config
	state State

	prober   *geo.Prober
	geocoder geocode.Geocoder
	data     Datasets
	view     view.Presenter
	now      func() time.Time
	log      zerolog.Logger

	watch    *geo.Watch
	watchGen int
	closed   bool

	base   context.Context
	cancel context.CancelFunc
}

func New(cfg Config, deps Deps) *Machine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := log.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	if cfg.MaxRetryGates <= 0 {
		cfg.MaxRetryGates = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Machine{
		cfg:      cfg,
		state:    State{Phase: PhaseUnresolved, Permission: PermissionUnknown},
		prober:   deps.Prober,
		geocoder: deps.Geocoder,
		data:     deps.Data,
		view:     deps.View,
		now:      deps.Now,
		log:      logger,
		base:     base,
		cancel:   cancel,
	}
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Watching = m.watch != nil
	return s
}

func (m *Machine) ActiveDistrict() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ActiveDistrict
}

// Close stops any watch. Events arriving afterwards are ignored.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopWatch()
	m.cancel()
}

// Startup discards any previous state, loads the district list and decides
// between the action gate and the dropdown.
func (m *Machine) Startup(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.stopWatch()
	m.state = State{Phase: PhaseUnresolved, Permission: PermissionUnknown}

	m.view.ShowDistrict("")
	m.view.ResetSchedule(view.Placeholder)

	if ds, err := m.data.Load(ctx); err != nil {
		m.log.Error().Err(err).Msg("[resolver] startup dataset load failed")
		m.view.Alert(AlertLoadFailed)
	} else {
		m.view.SetDistricts(ds.Districts())
	}

	switch err := m.prober.Available(); {
	case errors.Is(err, geo.ErrUnsupported):
		m.fallback(ctx, msgNotSupported)
		return
	case errors.Is(err, geo.ErrInsecureContext):
		m.state.Permission = PermissionInsecure
		m.fallback(ctx, msgNeedsHTTPS)
		return
	}

	perm := m.prober.Source().Permission(ctx)
	m.state.Permission = permissionFrom(perm)
	if perm == geo.PermissionDenied {
		m.fallback(ctx, msgPermissionDenied)
		return
	}

	m.state.Phase = PhaseAwaitingPermission
	m.showAction(msgGivePermission)
}

// PermissionChanged handles a permission transition observed on the platform.
func (m *Machine) PermissionChanged(ctx context.Context, p geo.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.log.Debug().Str("permission", string(p)).Msg("[resolver] permission changed")

	switch p {
	case geo.PermissionDenied:
		m.state.Permission = PermissionDenied
		m.fallback(ctx, msgPermissionDenied)
	case geo.PermissionGranted:
		m.state.Permission = PermissionGranted
		m.state.LastAutoDistrict = ""
		m.state.Phase = PhaseAwaitingPermission
		m.showAction(msgPermissionGranted)
	default:
		m.stopWatch()
		m.state.Permission = PermissionUnknown
		m.state.Phase = PhaseAwaitingPermission
		m.showAction(msgPermissionPrompt)
	}
}

// RequestLocation runs the one-shot probe the action button triggers. It
// blocks until the probe and the geocode have finished.
func (m *Machine) RequestLocation(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if err := m.prober.Available(); err != nil {
		if errors.Is(err, geo.ErrInsecureContext) {
			m.state.Permission = PermissionInsecure
		}
		m.fallback(ctx, msgAutoUnavailable)
		m.mu.Unlock()
		return
	}
	if m.state.Permission == PermissionDenied {
		m.fallback(ctx, msgPermissionDenied)
		m.mu.Unlock()
		return
	}
	m.state.Phase = PhaseResolving
	m.view.ShowGate(view.GatePermissionPrompt, msgDetecting, view.GateOptions{})
	m.mu.Unlock()

	out := m.prober.ProbeOnce(ctx, geo.Options{HighAccuracy: true, Timeout: m.cfg.ProbeTimeout})

	if !out.Granted {
		m.probeFailed(ctx, out)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state.Permission = PermissionGranted
	m.state.ConsecutiveGeoFailures = 0
	if !m.manualLockActive() {
		m.view.ShowGate(view.GatePermissionPrompt, msgDetected, view.GateOptions{})
	}
	m.mu.Unlock()

	district, ok := m.geocoder.Resolve(ctx, out.Position.Latitude, out.Position.Longitude)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if !ok || district == "" {
		if m.manualLockActive() {
			return
		}
		m.fallback(ctx, msgNoDistrict)
		return
	}

	if m.manualLockActive() && !m.agreesWithApplied(district) {
		m.log.Debug().Str("district", district).Msg("[resolver] probe result suppressed by manual selection")
	} else {
		m.state.LastAutoDistrict = district
		m.apply(ctx, district)
	}
	m.startTracking(ctx)
}

func (m *Machine) probeFailed(ctx context.Context, out geo.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.log.Info().Str("reason", string(out.Reason)).Err(out.Err).Msg("[resolver] location probe failed")

	switch out.Reason {
	case geo.ReasonPermissionDenied:
		m.state.Permission = PermissionDenied
		m.fallback(ctx, msgPermissionDenied)
	case geo.ReasonUnavailable:
		m.state.ConsecutiveGeoFailures++
		if m.state.ConsecutiveGeoFailures > m.cfg.MaxRetryGates {
			m.fallback(ctx, msgRepeatedFailure)
			return
		}
		m.state.Phase = PhaseAwaitingPermission
		m.showAction(msgProbeOff)
	case geo.ReasonUnsupported:
		m.fallback(ctx, msgAutoUnavailable)
	default:
		m.state.Phase = PhaseAwaitingPermission
		m.showAction(msgProbeFailed)
	}
}

// PositionUpdate feeds a continuous-watch position into the machine.
func (m *Machine) PositionUpdate(ctx context.Context, pos geo.Position) {
	m.positionUpdate(ctx, pos, -1)
}

func (m *Machine) positionUpdate(ctx context.Context, pos geo.Position, gen int) {
	district, ok := m.geocoder.Resolve(ctx, pos.Latitude, pos.Longitude)
	if !ok || district == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || (gen >= 0 && gen != m.watchGen) {
		return
	}

	if SameDistrict(district, m.state.LastAutoDistrict) {
		return
	}
	if m.manualLockActive() && !SameDistrict(district, m.state.LastManualDistrict) {
		m.log.Debug().
			Str("district", district).
			Time("until", m.state.ManualLockUntil).
			Msg("[resolver] automatic update suppressed by manual selection")
		return
	}

	m.state.LastAutoDistrict = district
	m.state.ConsecutiveGeoFailures = 0
	m.apply(ctx, district)
}

// PositionError feeds a continuous-watch failure into the machine.
func (m *Machine) PositionError(ctx context.Context, reason geo.Reason) {
	m.positionError(ctx, reason, -1)
}

func (m *Machine) positionError(ctx context.Context, reason geo.Reason, gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || (gen >= 0 && gen != m.watchGen) {
		return
	}

	m.log.Info().Str("reason", string(reason)).Msg("[resolver] watch error")

	switch reason {
	case geo.ReasonPermissionDenied:
		m.stopWatch()
		m.state.Permission = PermissionDenied
		m.state.Phase = PhaseAwaitingPermission
		// the button stays so the user can retry after changing OS settings
		m.showAction(msgWatchDenied)
	case geo.ReasonUnavailable:
		m.stopWatch()
		m.view.ResetSchedule(view.Placeholder)
		m.state.ConsecutiveGeoFailures++
		if m.state.ConsecutiveGeoFailures > m.cfg.MaxRetryGates {
			m.fallback(ctx, msgRepeatedFailure)
			return
		}
		m.state.Phase = PhaseAwaitingPermission
		m.showAction(msgWatchOff)
	default:
		m.view.ResetSchedule(view.Placeholder)
		m.fallback(ctx, msgWatchFailed)
	}
}

// ChooseDistrict applies a dropdown selection immediately and holds off
// disagreeing automatic updates for the lock duration.
func (m *Machine) ChooseDistrict(ctx context.Context, name string) {
	if name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.state.ManualLockUntil = m.now().Add(m.cfg.ManualLock)
	m.state.LastAutoDistrict = name
	m.state.LastManualDistrict = name
	m.apply(ctx, name)
}

// startTracking replaces any running watch with a new one. A quick one-shot
// probe runs first so the first result arrives fast; its errors are ignored
// since the watch keeps trying. Called with mu held.
func (m *Machine) startTracking(ctx context.Context) {
	m.stopWatch()

	switch err := m.prober.Available(); {
	case errors.Is(err, geo.ErrUnsupported):
		m.fallback(ctx, msgNotSupported)
		return
	case errors.Is(err, geo.ErrInsecureContext):
		m.fallback(ctx, msgTrackingNeedsHTTPS)
		return
	}

	w, err := m.prober.Watch(m.base, geo.Options{
		HighAccuracy: true,
		Timeout:      m.cfg.WatchTimeout,
		MaximumAge:   3 * time.Second,
	})
	if err != nil {
		m.fallback(ctx, msgAutoUnavailable)
		return
	}
	m.watch = w
	gen := m.watchGen

	go func() {
		// watch events queue behind the quick result
		m.quickProbe(gen)
		m.pump(w, gen)
	}()
}

func (m *Machine) quickProbe(gen int) {
	out := m.prober.ProbeOnce(m.base, geo.Options{
		Timeout:    m.cfg.QuickProbeTimeout,
		MaximumAge: time.Minute,
	})
	if !out.Granted {
		return
	}
	m.positionUpdate(m.base, out.Position, gen)
}

func (m *Machine) pump(w *geo.Watch, gen int) {
	for ev := range w.Events() {
		if ev.Failed() {
			m.positionError(m.base, ev.Reason, gen)
			continue
		}
		m.positionUpdate(m.base, ev.Position, gen)
	}
}

// stopWatch is idempotent. Called with mu held.
func (m *Machine) stopWatch() {
	m.watchGen++
	if m.watch == nil {
		return
	}
	m.prober.Stop(m.watch)
	m.watch = nil
	m.log.Debug().Msg("[resolver] watch stopped")
}

func (m *Machine) manualLockActive() bool {
	return m.now().Before(m.state.ManualLockUntil)
}

func (m *Machine) agreesWithApplied(district string) bool {
	return SameDistrict(district, m.state.LastManualDistrict) || SameDistrict(district, m.state.LastAutoDistrict)
}

// apply looks the district up and renders today's entry, or shows the
// not-available notice. It never tries another district on its own. A
// failed dataset load forgets the automatic district so the next fix for it
// tries the lookup again.
func (m *Machine) apply(ctx context.Context, name string) bool {
	m.view.ShowDistrict(name)

	ds, err := m.data.Load(ctx)
	if err != nil {
		m.log.Warn().Err(err).Str("district", name).Msg("[resolver] dataset unavailable")
		m.state.ActiveDistrict = ""
		m.state.LastAutoDistrict = ""
		m.state.Phase = PhaseFallback
		m.view.ResetSchedule(view.Unavailable)
		m.view.ShowGate(view.GateDropdown, msgDatasetFailed, view.GateOptions{})
		return false
	}

	key, ok := ds.Lookup(name)
	entries := ds.EntriesFor(key)
	now := m.now()
	today := model.DateOf(now)
	entry, found := dataset.SelectForDate(entries, today)
	if !ok || !found {
		m.log.Info().Str("district", name).Msg("[resolver] district not in dataset")
		m.state.ActiveDistrict = ""
		m.state.Phase = PhaseFallback
		m.view.SetDistricts(ds.Districts())
		m.view.ResetSchedule(view.Unavailable)
		m.view.ShowGate(view.GateDropdown, msgNotInDataset(name), view.GateOptions{})
		return false
	}

	m.state.ActiveDistrict = key
	m.state.Phase = PhaseResolved
	m.view.ShowDistrict(key)
	m.view.ShowGate(view.GateDropdown, "", view.GateOptions{})
	m.view.RenderSchedule(key, &entry)
	m.view.HighlightActivePrayer(entry, model.MinutesSinceMidnight(now))
	m.view.SelectDate(today.String())

	m.log.Info().Str("district", key).Str("date", entry.DateKey).Msg("[resolver] district applied")
	return true
}

// fallback leaves the user with the dropdown. Called with mu held.
func (m *Machine) fallback(ctx context.Context, message string) {
	m.stopWatch()
	m.state.ActiveDistrict = ""
	m.state.Phase = PhaseFallback
	m.view.ShowDistrict("")
	m.view.ResetSchedule(view.Placeholder)
	if ds, err := m.data.Load(ctx); err == nil {
		m.view.SetDistricts(ds.Districts())
	}
	m.view.ShowGate(view.GateDropdown, message, view.GateOptions{})
}

func (m *Machine) showAction(message string) {
	m.view.ShowGate(view.GateAction, message, view.GateOptions{
		Title:      titleTurnOn,
		ButtonText: buttonTurnOn,
	})
}
