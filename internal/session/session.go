// Package session keeps one resolution machine per connected widget.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/geo"
	"github.com/Nixie-Tech-LLC/waqt/internal/geocode"
	"github.com/Nixie-Tech-LLC/waqt/internal/model"
	"github.com/Nixie-Tech-LLC/waqt/internal/resolver"
	"github.com/Nixie-Tech-LLC/waqt/internal/view"
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrNoDistrict = errors.New("no district selected")
)

// Datasets is satisfied by *dataset.Loader.
type Datasets interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

// Capabilities describe what the widget's platform reported when it connected.
type Capabilities struct {
	Supported     bool
	SecureContext bool
	Permission    geo.Permission
}

// Session is one widget's machine, presentation state and position relay.
type Session struct {
	ID      string
	Machine *resolver.Machine
	Board   *view.Board
	// Relay is nil when the manager serves a fixed position source.
	Relay *geo.RelaySource

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// ReportPosition hands a fix from the widget to whatever is waiting for one.
func (s *Session) ReportPosition(pos geo.Position) {
	if s.Relay == nil {
		return
	}
	s.Relay.Report(geo.Fix{Position: pos})
}

// ReportError hands a platform position error from the widget to the machine.
func (s *Session) ReportError(code int, message string) {
	if s.Relay == nil {
		return
	}
	s.Relay.Report(geo.Fix{Err: &geo.PositionError{Code: code, Message: message}})
}

// SetPermission records a permission change and lets the machine react.
func (s *Session) SetPermission(ctx context.Context, p geo.Permission) {
	if s.Relay != nil {
		s.Relay.SetPermission(p)
	}
	s.Machine.PermissionChanged(ctx, p)
}

// Options configure a Manager.
type Options struct {
	Resolver   resolver.Config
	Data       Datasets
	Geocoder   geocode.Geocoder
	IdleExpiry time.Duration
	// Fixed, when set, replaces the per-session relay (signage screens with
	// a known position).
	Fixed geo.Source
	// Publish receives every view change; nil disables publishing.
	Publish func(sessionID string, snap view.Snapshot)
	Now     func() time.Time
}

// Manager owns the live sessions.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Create registers a new session and runs the startup permission check.
func (m *Manager) Create(ctx context.Context, caps Capabilities) *Session {
	now := m.opts.Now()
	s := &Session{
		ID:       uuid.NewString(),
		Board:    view.NewBoard(now),
		lastSeen: now,
	}

	source := m.opts.Fixed
	if source == nil {
		s.Relay = geo.NewRelaySource(caps.Supported, caps.SecureContext, caps.Permission)
		source = s.Relay
	}

	if m.opts.Publish != nil {
		id, publish := s.ID, m.opts.Publish
		s.Board.OnChange(func(snap view.Snapshot) { publish(id, snap) })
	}

	logger := log.With().Str("session", s.ID).Logger()
	s.Machine = resolver.New(m.opts.Resolver, resolver.Deps{
		Prober:   geo.NewProber(source),
		Geocoder: m.opts.Geocoder,
		Data:     m.opts.Data,
		View:     s.Board,
		Now:      m.opts.Now,
		Logger:   &logger,
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logger.Info().Bool("supported", caps.Supported).Bool("secure", caps.SecureContext).
		Str("permission", string(caps.Permission)).Msg("[session] created")

	s.Machine.Startup(ctx)
	return s
}

// Get returns the session and marks it as seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.opts.Now())
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Machine.Close()
	log.Info().Str("session", id).Msg("[session] closed")
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the configured expiry and
// returns how many it closed.
func (m *Manager) Sweep() int {
	if m.opts.IdleExpiry <= 0 {
		return 0
	}
	cutoff := m.opts.Now().Add(-m.opts.IdleExpiry)

	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		_ = m.Close(id)
	}
	if len(stale) > 0 {
		log.Info().Int("count", len(stale)).Msg("[session] expired idle sessions")
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done, then closes everything.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Machine.Close()
	}
}

// Calendar moves the session's calendar by delta months (or to year/month
// when year is set) and lays out the active district's month. With no
// active district it leaves a notice and returns ErrNoDistrict.
func (m *Manager) Calendar(ctx context.Context, s *Session, year, monthIndex, delta int) (view.CalendarMonth, error) {
	district := s.Machine.ActiveDistrict()
	if district == "" {
		s.Board.ShowNoticeIfNone(resolver.NoticeCalendarNeedsDistrict)
		return view.CalendarMonth{}, ErrNoDistrict
	}

	ds, err := m.opts.Data.Load(ctx)
	if err != nil {
		return view.CalendarMonth{}, err
	}

	state := s.Board.Snapshot().Calendar
	if year > 0 {
		state = s.Board.SetCalendarMonth(year, monthIndex)
	}
	if delta != 0 {
		state = s.Board.ShiftCalendar(delta)
	}

	return view.BuildMonth(district, state, ds.EntriesFor(district), model.DateOf(m.opts.Now())), nil
}

// RamadanEntries returns the Ramadan-day entries of the session's active district.
func (m *Manager) RamadanEntries(ctx context.Context, s *Session) (string, []model.ScheduleEntry, error) {
	district := s.Machine.ActiveDistrict()
	if district == "" {
		return "", nil, ErrNoDistrict
	}
	ds, err := m.opts.Data.Load(ctx)
	if err != nil {
		return "", nil, err
	}
	return district, ds.RamadanEntries(district), nil
}
