package geo

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RelaySource is a Source fed by a remote client (the widget reports its
// capability, permission and fixes over the API). Fixes are fanned out to
// every pending CurrentPosition call and active watch.
type RelaySource struct {
	mu         sync.Mutex
	supported  bool
	secure     bool
	permission Permission
	last       *Fix
	subs       map[int]chan Fix
	nextID     int
	now        func() time.Time
}

func NewRelaySource(supported, secure bool, permission Permission) *RelaySource {
	return &RelaySource{
		supported:  supported,
		secure:     secure,
		permission: permission,
		subs:       make(map[int]chan Fix),
		now:        time.Now,
	}
}

func (r *RelaySource) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported
}

func (r *RelaySource) SecureContext() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.secure
}

func (r *RelaySource) Permission(context.Context) Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.permission
}

// SetPermission records a permission state observed by the client.
func (r *RelaySource) SetPermission(p Permission) {
	r.mu.Lock()
	r.permission = p
	r.mu.Unlock()
}

// Report delivers a fix to all subscribers. Slow subscribers miss fixes
// rather than blocking the reporter.
func (r *RelaySource) Report(fix Fix) {
	if fix.Err == nil && fix.Position.At.IsZero() {
		fix.Position.At = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if fix.Err == nil {
		r.last = &fix
	}
	for id, ch := range r.subs {
		select {
		case ch <- fix:
		default:
			log.Debug().Int("subscriber", id).Msg("[geo] relay subscriber busy, fix dropped")
		}
	}
}

func (r *RelaySource) subscribe() (int, chan Fix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	ch := make(chan Fix, 4)
	r.subs[id] = ch
	return id, ch
}

func (r *RelaySource) unsubscribe(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(ch)
	}
}

// CurrentPosition returns a cached fix younger than opts.MaximumAge or waits
// for the next report. Context expiry is reported as a timeout.
func (r *RelaySource) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	r.mu.Lock()
	if r.last != nil && opts.MaximumAge > 0 && r.now().Sub(r.last.Position.At) <= opts.MaximumAge {
		pos := r.last.Position
		r.mu.Unlock()
		return pos, nil
	}
	r.mu.Unlock()

	id, ch := r.subscribe()
	defer r.unsubscribe(id)

	select {
	case fix := <-ch:
		if fix.Err != nil {
			return Position{}, fix.Err
		}
		return fix.Position, nil
	case <-ctx.Done():
		return Position{}, &PositionError{Code: CodeTimeout, Message: ctx.Err().Error()}
	}
}

func (r *RelaySource) WatchPosition(ctx context.Context, _ Options) <-chan Fix {
	id, ch := r.subscribe()
	go func() {
		<-ctx.Done()
		r.unsubscribe(id)
	}()
	return ch
}
