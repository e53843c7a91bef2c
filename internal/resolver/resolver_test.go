package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/waqt/internal/dataset"
	"github.com/Nixie-Tech-LLC/waqt/internal/geo"
	"github.com/Nixie-Tech-LLC/waqt/internal/model"
	"github.com/Nixie-Tech-LLC/waqt/internal/view"
)

const testData = `{
  "Dhaka": [
    {"date": "14/03/2025", "sehri": "4:51 AM", "iftar": "6:09 PM"},
    {"date": "15/03/2025", "ramadanDay": 15, "sehri": "4:50 AM", "iftar": "6:10 PM",
     "prayers": {
       "Fajr":    {"startTime": "5:00 AM"},
       "Dhuhr":   {"startTime": "12:00 PM"},
       "Asr":     {"startTime": "3:00 PM"},
       "Maghrib": {"startTime": "6:00 PM"},
       "Isha":    {"startTime": "7:00 PM"}
     }}
  ],
  "Sylhet": [
    {"date": "15/03/2025", "ramadanDay": 15, "sehri": "4:40 AM", "iftar": "6:02 PM"}
  ]
}`

var (
	dhakaPos  = geo.Position{Latitude: 23.81, Longitude: 90.41}
	sylhetPos = geo.Position{Latitude: 24.89, Longitude: 91.87}
	seaPos    = geo.Position{Latitude: 21.00, Longitude: 90.00}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	mu        sync.Mutex
	supported bool
	secure    bool
	perm      geo.Permission
	pos       geo.Position
	err       error
	probes    int
	fixes     chan geo.Fix
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		supported: true,
		secure:    true,
		perm:      geo.PermissionPrompt,
		pos:       dhakaPos,
		fixes:     make(chan geo.Fix),
	}
}

func (f *fakeSource) Supported() bool     { return f.supported }
func (f *fakeSource) SecureContext() bool { return f.secure }

func (f *fakeSource) Permission(context.Context) geo.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm
}

func (f *fakeSource) CurrentPosition(context.Context, geo.Options) (geo.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.pos, f.err
}

func (f *fakeSource) WatchPosition(ctx context.Context, _ geo.Options) <-chan geo.Fix {
	out := make(chan geo.Fix)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case fix := <-f.fixes:
				select {
				case out <- fix:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

type fakeGeocoder struct {
	mu     sync.Mutex
	byLat  map[float64]string
	broken bool
}

func (g *fakeGeocoder) Resolve(_ context.Context, lat, _ float64) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.broken {
		return "", false
	}
	d, ok := g.byLat[lat]
	return d, ok
}

type staticData struct {
	ds  *dataset.Dataset
	err error
}

func (s staticData) Load(context.Context) (*dataset.Dataset, error) { return s.ds, s.err }

// countingBoard counts schedule renders on top of a real Board.
type countingBoard struct {
	*view.Board
	renders atomic.Int32
}

func (c *countingBoard) RenderSchedule(district string, entry *model.ScheduleEntry) {
	c.renders.Add(1)
	c.Board.RenderSchedule(district, entry)
}

type harness struct {
	m      *Machine
	board  *countingBoard
	source *fakeSource
	geo    *fakeGeocoder
	clock  *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ds, err := dataset.Decode(strings.NewReader(testData))
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2025, time.March, 15, 13, 0, 0, 0, time.Local)}
	h := &harness{
		board:  &countingBoard{Board: view.NewBoard(clock.Now())},
		source: newFakeSource(),
		geo: &fakeGeocoder{byLat: map[float64]string{
			dhakaPos.Latitude:  "Dhaka",
			sylhetPos.Latitude: "Sylhet",
			seaPos.Latitude:    "Bay of Bengal",
		}},
		clock: clock,
	}

	cfg := DefaultConfig()
	cfg.WatchTimeout = time.Hour
	h.m = New(cfg, Deps{
		Prober:   geo.NewProber(h.source),
		Geocoder: h.geo,
		Data:     staticData{ds: ds},
		View:     h.board,
		Now:      clock.Now,
	})
	t.Cleanup(h.m.Close)
	return h
}

func TestStartupShowsActionGate(t *testing.T) {
	h := newHarness(t)
	h.m.Startup(context.Background())

	st := h.m.Snapshot()
	assert.Equal(t, PhaseAwaitingPermission, st.Phase)
	assert.Equal(t, PermissionUnknown, st.Permission)

	snap := h.board.Snapshot()
	assert.Equal(t, view.GateAction, snap.Gate.Kind)
	assert.True(t, snap.Gate.Button)
	assert.Equal(t, msgGivePermission, snap.Gate.Message)
	assert.Equal(t, []string{"Dhaka", "Sylhet"}, snap.Districts)
	assert.Equal(t, view.NoDistrictLabel, snap.District)
}

func TestStartupFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeSource)
		perm    Permission
		message string
	}{
		{"unsupported", func(f *fakeSource) { f.supported = false }, PermissionUnknown, msgNotSupported},
		{"insecure", func(f *fakeSource) { f.secure = false }, PermissionInsecure, msgNeedsHTTPS},
		{"denied", func(f *fakeSource) { f.perm = geo.PermissionDenied }, PermissionDenied, msgPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h.source)
			h.m.Startup(context.Background())

			st := h.m.Snapshot()
			assert.Equal(t, PhaseFallback, st.Phase)
			assert.Equal(t, tt.perm, st.Permission)

			snap := h.board.Snapshot()
			assert.Equal(t, view.GateDropdown, snap.Gate.Kind)
			assert.False(t, snap.Gate.Button)
			assert.True(t, snap.DropdownVisible)
			assert.Equal(t, tt.message, snap.Notice)
		})
	}
}

func TestStartupDatasetFailureAlerts(t *testing.T) {
	h := newHarness(t)
	h.m.data = staticData{err: errors.New("boom")}

	h.m.Startup(context.Background())

	snap := h.board.Snapshot()
	assert.Equal(t, AlertLoadFailed, snap.Alert)
	assert.Equal(t, view.GateAction, snap.Gate.Kind, "the location gate is still offered")
}

func TestRequestLocationResolves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.RequestLocation(ctx)

	st := h.m.Snapshot()
	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "Dhaka", st.ActiveDistrict)
	assert.Equal(t, "Dhaka", st.LastAutoDistrict)
	assert.Equal(t, PermissionGranted, st.Permission)
	assert.True(t, st.Watching)

	snap := h.board.Snapshot()
	assert.True(t, snap.AppVisible)
	assert.Empty(t, snap.Notice)
	assert.Equal(t, "Dhaka", snap.District)
	assert.Equal(t, "15/03/2025", snap.Schedule.Date)
	assert.Equal(t, "15", snap.Schedule.RamadanDay)
	assert.Equal(t, "15/03/2025", snap.Calendar.SelectedDateKey)

	var active []string
	for _, p := range snap.Schedule.Prayers {
		if p.Active {
			active = append(active, p.Name)
		}
	}
	assert.Equal(t, []string{model.Dhuhr}, active)
}

func TestRequestLocationDistrictNotInDataset(t *testing.T) {
	h := newHarness(t)
	h.source.pos = seaPos
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.RequestLocation(ctx)

	st := h.m.Snapshot()
	assert.Equal(t, PhaseFallback, st.Phase)
	assert.Empty(t, st.ActiveDistrict)

	snap := h.board.Snapshot()
	assert.Contains(t, snap.Notice, `"Bay of Bengal"`)
	assert.True(t, snap.DropdownVisible)
	assert.Equal(t, view.Unavailable, snap.Schedule.Sehri)
	for _, p := range snap.Schedule.Prayers {
		assert.Equal(t, view.Unavailable, p.Start)
	}
}

func TestRequestLocationGeocodeFailure(t *testing.T) {
	h := newHarness(t)
	h.geo.broken = true
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.RequestLocation(ctx)

	assert.Equal(t, PhaseFallback, h.m.Snapshot().Phase)
	assert.Equal(t, msgNoDistrict, h.board.Snapshot().Notice)
}

func TestRequestLocationUnavailableEscalates(t *testing.T) {
	h := newHarness(t)
	h.source.fail(&geo.PositionError{Code: geo.CodePositionUnavailable})
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.RequestLocation(ctx)
	st := h.m.Snapshot()
	assert.Equal(t, PhaseAwaitingPermission, st.Phase)
	assert.Equal(t, 1, st.ConsecutiveGeoFailures)
	snap := h.board.Snapshot()
	assert.Equal(t, view.GateAction, snap.Gate.Kind)
	assert.Equal(t, msgProbeOff, snap.Gate.Message)

	h.m.RequestLocation(ctx)
	assert.Equal(t, PhaseFallback, h.m.Snapshot().Phase)
	assert.Equal(t, msgRepeatedFailure, h.board.Snapshot().Notice)
}

func TestRequestLocationDenied(t *testing.T) {
	h := newHarness(t)
	h.source.fail(&geo.PositionError{Code: geo.CodePermissionDenied})
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.RequestLocation(ctx)

	st := h.m.Snapshot()
	assert.Equal(t, PermissionDenied, st.Permission)
	assert.Equal(t, PhaseFallback, st.Phase)
	assert.Equal(t, msgPermissionDenied, h.board.Snapshot().Notice)
	assert.True(t, h.board.Snapshot().NoticeImportant)

	h.m.RequestLocation(ctx)
	assert.Equal(t, 1, h.source.probeCount(), "a denied permission is not probed again")
}

func TestManualLockWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.ChooseDistrict(ctx, "Sylhet")
	assert.Equal(t, "Sylhet", h.m.ActiveDistrict())

	h.clock.Advance(29999 * time.Millisecond)
	h.m.PositionUpdate(ctx, dhakaPos)
	assert.Equal(t, "Sylhet", h.m.ActiveDistrict(), "update inside the lock window is discarded")

	h.clock.Advance(2 * time.Millisecond)
	h.m.PositionUpdate(ctx, dhakaPos)
	assert.Equal(t, "Dhaka", h.m.ActiveDistrict(), "update after the lock window is applied")
}

func TestManualChoiceAgreeingUpdateIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)
	h.geo.byLat[dhakaPos.Latitude] = "DHAKA "

	h.m.ChooseDistrict(ctx, "Dhaka")
	h.m.PositionUpdate(ctx, dhakaPos)

	assert.EqualValues(t, 1, h.board.renders.Load())
	assert.Equal(t, "Dhaka", h.m.Snapshot().LastAutoDistrict)
}

func TestRepeatedAutomaticUpdateDoesNotRender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.PositionUpdate(ctx, dhakaPos)
	h.m.PositionUpdate(ctx, dhakaPos)
	h.m.PositionUpdate(ctx, dhakaPos)

	assert.EqualValues(t, 1, h.board.renders.Load())
}

func TestPositionUpdateIgnoresGeocodeFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)
	h.m.PositionUpdate(ctx, dhakaPos)

	h.geo.broken = true
	h.m.PositionUpdate(ctx, sylhetPos)

	assert.Equal(t, "Dhaka", h.m.ActiveDistrict())
	assert.EqualValues(t, 1, h.board.renders.Load())
}

func TestWatchUnavailableEscalates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)
	h.m.PositionUpdate(ctx, dhakaPos)

	h.m.PositionError(ctx, geo.ReasonUnavailable)
	st := h.m.Snapshot()
	assert.Equal(t, PhaseAwaitingPermission, st.Phase)
	snap := h.board.Snapshot()
	assert.Equal(t, view.GateAction, snap.Gate.Kind)
	assert.Equal(t, msgWatchOff, snap.Gate.Message)
	assert.Equal(t, view.Placeholder, snap.Schedule.Sehri)

	h.m.PositionError(ctx, geo.ReasonUnavailable)
	st = h.m.Snapshot()
	assert.Equal(t, PhaseFallback, st.Phase)
	assert.Empty(t, st.ActiveDistrict)
	assert.Equal(t, msgRepeatedFailure, h.board.Snapshot().Notice)
}

func TestWatchDeniedKeepsButton(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.PositionError(ctx, geo.ReasonPermissionDenied)

	st := h.m.Snapshot()
	assert.Equal(t, PermissionDenied, st.Permission)
	assert.False(t, st.Watching)

	snap := h.board.Snapshot()
	assert.Equal(t, view.GateAction, snap.Gate.Kind)
	assert.True(t, snap.Gate.Button)
	assert.Equal(t, msgWatchDenied, snap.Gate.Message)
}

func TestWatchOtherErrorFallsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.PositionError(ctx, geo.ReasonOther)

	assert.Equal(t, PhaseFallback, h.m.Snapshot().Phase)
	assert.Equal(t, msgWatchFailed, h.board.Snapshot().Notice)
}

func TestPermissionChanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)
	h.m.PositionUpdate(ctx, dhakaPos)

	h.m.PermissionChanged(ctx, geo.PermissionGranted)
	st := h.m.Snapshot()
	assert.Empty(t, st.LastAutoDistrict)
	assert.Equal(t, PermissionGranted, st.Permission)
	assert.Equal(t, msgPermissionGranted, h.board.Snapshot().Gate.Message)

	h.m.PermissionChanged(ctx, geo.PermissionPrompt)
	assert.Equal(t, msgPermissionPrompt, h.board.Snapshot().Gate.Message)

	h.m.PermissionChanged(ctx, geo.PermissionDenied)
	st = h.m.Snapshot()
	assert.Equal(t, PhaseFallback, st.Phase)
	assert.Equal(t, PermissionDenied, st.Permission)
}

func TestWatchEventsDriveMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)
	h.m.RequestLocation(ctx)
	require.True(t, h.m.Snapshot().Watching)

	h.source.fixes <- geo.Fix{Position: sylhetPos}
	require.Eventually(t, func() bool {
		return h.m.ActiveDistrict() == "Sylhet"
	}, time.Second, 10*time.Millisecond)

	h.source.fixes <- geo.Fix{Err: &geo.PositionError{Code: geo.CodePermissionDenied}}
	require.Eventually(t, func() bool {
		st := h.m.Snapshot()
		return st.Permission == PermissionDenied && !st.Watching
	}, time.Second, 10*time.Millisecond)
}

func TestCloseIgnoresLaterEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)
	h.m.RequestLocation(ctx)

	h.m.Close()
	h.m.Close()
	assert.False(t, h.m.Snapshot().Watching)

	h.m.ChooseDistrict(ctx, "Sylhet")
	assert.Equal(t, "Dhaka", h.m.ActiveDistrict())
}

func TestFixedPositionStaysResolved(t *testing.T) {
	ds, err := dataset.Decode(strings.NewReader(testData))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "position")
	require.NoError(t, os.WriteFile(path, []byte("23.81,90.41\n"), 0o644))

	clock := &fakeClock{t: time.Date(2025, time.March, 15, 13, 0, 0, 0, time.Local)}
	board := view.NewBoard(clock.Now())
	cfg := DefaultConfig()
	cfg.WatchTimeout = 50 * time.Millisecond
	cfg.QuickProbeTimeout = 50 * time.Millisecond
	m := New(cfg, Deps{
		Prober:   geo.NewProber(geo.NewFileSource(path, time.Minute)),
		Geocoder: &fakeGeocoder{byLat: map[float64]string{dhakaPos.Latitude: "Dhaka"}},
		Data:     staticData{ds: ds},
		View:     board,
		Now:      clock.Now,
	})
	t.Cleanup(m.Close)

	ctx := context.Background()
	m.Startup(ctx)
	m.RequestLocation(ctx)
	require.Equal(t, "Dhaka", m.ActiveDistrict())

	// several watch timeouts pass without a new fix
	time.Sleep(300 * time.Millisecond)

	st := m.Snapshot()
	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "Dhaka", st.ActiveDistrict)
	assert.True(t, st.Watching)
	assert.Zero(t, st.ConsecutiveGeoFailures)
	assert.Equal(t, "4:50 AM", board.Snapshot().Schedule.Sehri)
}

// switchableData fails Load while err is set.
type switchableData struct {
	mu  sync.Mutex
	ds  *dataset.Dataset
	err error
}

func (s *switchableData) Load(context.Context) (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.ds, nil
}

func (s *switchableData) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func TestDatasetFailureIsRetriedOnNextFix(t *testing.T) {
	h := newHarness(t)
	ds, err := dataset.Decode(strings.NewReader(testData))
	require.NoError(t, err)
	data := &switchableData{ds: ds}
	h.m.data = data
	ctx := context.Background()
	h.m.Startup(ctx)
	h.m.PositionUpdate(ctx, dhakaPos)
	require.Equal(t, "Dhaka", h.m.ActiveDistrict())

	data.setErr(errors.New("connection refused"))
	h.m.PositionUpdate(ctx, sylhetPos)

	st := h.m.Snapshot()
	assert.Equal(t, PhaseFallback, st.Phase)
	assert.Empty(t, st.ActiveDistrict, "the previous district is no longer shown")
	assert.Empty(t, st.LastAutoDistrict)
	snap := h.board.Snapshot()
	assert.Equal(t, view.Unavailable, snap.Schedule.Sehri)
	assert.Equal(t, msgDatasetFailed, snap.Notice)

	data.setErr(nil)
	h.m.PositionUpdate(ctx, sylhetPos)

	st = h.m.Snapshot()
	assert.Equal(t, PhaseResolved, st.Phase)
	assert.Equal(t, "Sylhet", st.ActiveDistrict)
	assert.Equal(t, "4:40 AM", h.board.Snapshot().Schedule.Sehri)
}

func TestUpdateAgreeingWithManualChoiceInsideLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.m.Startup(ctx)

	h.m.ChooseDistrict(ctx, "Dhaka")
	h.m.PermissionChanged(ctx, geo.PermissionGranted)
	require.Empty(t, h.m.Snapshot().LastAutoDistrict)

	h.clock.Advance(10 * time.Second)
	h.m.PositionUpdate(ctx, sylhetPos)
	assert.Equal(t, "Dhaka", h.m.ActiveDistrict(), "a different district is still held off")
	assert.Empty(t, h.m.Snapshot().LastAutoDistrict)

	h.m.PositionUpdate(ctx, dhakaPos)
	st := h.m.Snapshot()
	assert.Equal(t, "Dhaka", st.ActiveDistrict)
	assert.Equal(t, "Dhaka", st.LastAutoDistrict)
	assert.Equal(t, PhaseResolved, st.Phase)

	renders := h.board.renders.Load()
	h.clock.Advance(time.Minute)
	h.m.PositionUpdate(ctx, dhakaPos)
	assert.Equal(t, renders, h.board.renders.Load(), "the same district after the lock is a no-op")
}

// gatedGeocoder blocks every lookup until release is closed.
type gatedGeocoder struct {
	next    *fakeGeocoder
	entered chan struct{}
	release chan struct{}
}

func (g *gatedGeocoder) Resolve(ctx context.Context, lat, lon float64) (string, bool) {
	g.entered <- struct{}{}
	<-g.release
	return g.next.Resolve(ctx, lat, lon)
}

func TestManualChoiceDuringGeocodeWins(t *testing.T) {
	h := newHarness(t)
	gated := &gatedGeocoder{next: h.geo, entered: make(chan struct{}), release: make(chan struct{})}
	h.m.geocoder = gated
	ctx := context.Background()
	h.m.Startup(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.m.PositionUpdate(ctx, sylhetPos)
	}()

	<-gated.entered
	h.m.ChooseDistrict(ctx, "Dhaka")
	close(gated.release)
	<-done

	st := h.m.Snapshot()
	assert.Equal(t, "Dhaka", st.ActiveDistrict)
	assert.Equal(t, "Dhaka", st.LastManualDistrict)
	assert.EqualValues(t, 1, h.board.renders.Load())
	assert.Equal(t, "Dhaka", h.board.Snapshot().District)
}

func TestNormalize(t *testing.T) {
	inputs := []string{"Dhaka", "DHAKA ", " dhaka-sadar", "Dhākā", "Cox's Bazar", "123", ""}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "idempotent for %q", in)
	}

	assert.Equal(t, Normalize("Dhaka "), Normalize("DHAKA"))
	assert.Equal(t, "dhaka", Normalize("Dhākā"))
	assert.Equal(t, "coxsbazar", Normalize("Cox's Bazar"))
	assert.Equal(t, "", Normalize("123"))

	assert.True(t, SameDistrict("Dhaka", " dhaka"))
	assert.False(t, SameDistrict("", ""))
	assert.False(t, SameDistrict("Dhaka", "Sylhet"))
}
