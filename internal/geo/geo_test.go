package geo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonNone, Classify(nil))
	assert.Equal(t, ReasonPermissionDenied, Classify(&PositionError{Code: CodePermissionDenied}))
	assert.Equal(t, ReasonUnavailable, Classify(&PositionError{Code: CodePositionUnavailable}))
	assert.Equal(t, ReasonUnavailable, Classify(fmt.Errorf("wrapped: %w", &PositionError{Code: CodeTimeout})))
	assert.Equal(t, ReasonOther, Classify(&PositionError{Code: 42}))
	assert.Equal(t, ReasonUnsupported, Classify(ErrInsecureContext))
	assert.Equal(t, ReasonUnavailable, Classify(context.DeadlineExceeded))
	assert.Equal(t, ReasonOther, Classify(errors.New("weird")))
}

func TestProbeOnceUnsupported(t *testing.T) {
	out := NewProber(NewRelaySource(false, true, PermissionUnknown)).ProbeOnce(context.Background(), Options{Timeout: time.Second})
	assert.False(t, out.Granted)
	assert.Equal(t, ReasonUnsupported, out.Reason)
	assert.ErrorIs(t, out.Err, ErrUnsupported)

	out = NewProber(NewRelaySource(true, false, PermissionUnknown)).ProbeOnce(context.Background(), Options{Timeout: time.Second})
	assert.Equal(t, ReasonUnsupported, out.Reason)
	assert.ErrorIs(t, out.Err, ErrInsecureContext)

	var nilProber *Prober
	assert.ErrorIs(t, nilProber.Available(), ErrUnsupported)
}

func TestProbeOnceReceivesRelayedFix(t *testing.T) {
	src := NewRelaySource(true, true, PermissionPrompt)
	p := NewProber(src)

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.Report(Fix{Position: Position{Latitude: 23.81, Longitude: 90.41}})
	}()

	out := p.ProbeOnce(context.Background(), Options{Timeout: time.Second})
	require.True(t, out.Granted)
	assert.InDelta(t, 23.81, out.Position.Latitude, 1e-9)
	assert.False(t, out.Position.At.IsZero())
}

func TestProbeOnceTimesOut(t *testing.T) {
	p := NewProber(NewRelaySource(true, true, PermissionPrompt))
	out := p.ProbeOnce(context.Background(), Options{Timeout: 20 * time.Millisecond})
	assert.False(t, out.Granted)
	assert.Equal(t, ReasonUnavailable, out.Reason)
}

func TestProbeOnceDenied(t *testing.T) {
	src := NewRelaySource(true, true, PermissionPrompt)
	go func() {
		time.Sleep(20 * time.Millisecond)
		src.Report(Fix{Err: &PositionError{Code: CodePermissionDenied}})
	}()
	out := NewProber(src).ProbeOnce(context.Background(), Options{Timeout: time.Second})
	assert.Equal(t, ReasonPermissionDenied, out.Reason)
}

func TestRelayMaximumAge(t *testing.T) {
	src := NewRelaySource(true, true, PermissionGranted)
	src.Report(Fix{Position: Position{Latitude: 1, Longitude: 2}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	pos, err := src.CurrentPosition(ctx, Options{MaximumAge: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos.Latitude)

	_, err = src.CurrentPosition(ctx, Options{})
	assert.Equal(t, ReasonUnavailable, Classify(err), "without MaximumAge a fresh fix is awaited")
}

func TestWatchDeliversPositionsAndErrors(t *testing.T) {
	src := NewRelaySource(true, true, PermissionGranted)
	w, err := NewProber(src).Watch(context.Background(), Options{Timeout: time.Second})
	require.NoError(t, err)
	defer w.Stop()

	// give the watch a moment to subscribe before reporting
	time.Sleep(10 * time.Millisecond)
	src.Report(Fix{Position: Position{Latitude: 22.3, Longitude: 91.8}})
	ev := <-w.Events()
	assert.False(t, ev.Failed())
	assert.Equal(t, 22.3, ev.Position.Latitude)

	src.Report(Fix{Err: &PositionError{Code: CodePositionUnavailable}})
	ev = <-w.Events()
	assert.Equal(t, ReasonUnavailable, ev.Reason)
}

func TestWatchTimeoutEmitsUnavailable(t *testing.T) {
	w, err := NewProber(NewRelaySource(true, true, PermissionGranted)).Watch(context.Background(), Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	select {
	case ev := <-w.Events():
		assert.Equal(t, ReasonUnavailable, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a timeout event")
	}
}

func TestWatchQuietAfterFixIsNotATimeout(t *testing.T) {
	src := NewRelaySource(true, true, PermissionGranted)
	w, err := NewProber(src).Watch(context.Background(), Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	time.Sleep(5 * time.Millisecond)
	src.Report(Fix{Position: Position{Latitude: 23.81, Longitude: 90.41}})
	ev := <-w.Events()
	require.False(t, ev.Failed())

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event while the position is unchanged: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	// an error puts the watch back to waiting for a fix
	src.Report(Fix{Err: &PositionError{Code: CodeTimeout}})
	ev = <-w.Events()
	assert.Equal(t, ReasonUnavailable, ev.Reason)
	select {
	case ev := <-w.Events():
		assert.Equal(t, ReasonUnavailable, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected a timeout event after the error")
	}
}

func TestWatchStopIsIdempotent(t *testing.T) {
	p := NewProber(NewRelaySource(true, true, PermissionGranted))
	w, err := p.Watch(context.Background(), Options{})
	require.NoError(t, err)

	w.Stop()
	w.Stop()
	p.Stop(nil)

	_, open := <-w.Events()
	assert.False(t, open)
}

func TestWatchUnsupported(t *testing.T) {
	_, err := NewProber(NewRelaySource(true, false, PermissionUnknown)).Watch(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrInsecureContext)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position")
	require.NoError(t, os.WriteFile(path, []byte("# screen in the lobby\n23.7104, 90.4074\n"), 0o644))

	src := NewFileSource(path, 10*time.Millisecond)
	pos, err := src.CurrentPosition(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 23.7104, pos.Latitude)
	assert.Equal(t, 90.4074, pos.Longitude)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixes := src.WatchPosition(ctx, Options{})
	first := <-fixes
	assert.Equal(t, 23.7104, first.Position.Latitude)

	require.NoError(t, os.WriteFile(path, []byte("22.3569,91.7832\n"), 0o644))
	second := <-fixes
	assert.Equal(t, 22.3569, second.Position.Latitude)
}

func TestFileSourceMissing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope"), 0)
	_, err := src.CurrentPosition(context.Background(), Options{})
	assert.Equal(t, ReasonUnavailable, Classify(err))
}

func TestParsePermission(t *testing.T) {
	assert.Equal(t, PermissionGranted, ParsePermission("granted"))
	assert.Equal(t, PermissionDenied, ParsePermission("denied"))
	assert.Equal(t, PermissionPrompt, ParsePermission("prompt"))
	assert.Equal(t, PermissionUnknown, ParsePermission("maybe"))
}
