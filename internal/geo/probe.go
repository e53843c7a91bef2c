package geo

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Prober runs one-shot and continuous position requests against a Source.
type Prober struct {
	source Source
}

func NewProber(source Source) *Prober {
	return &Prober{source: source}
}

func (p *Prober) Source() Source { return p.source }

// Available reports whether the capability exists and the context is secure.
func (p *Prober) Available() error {
	if p == nil || p.source == nil || !p.source.Supported() {
		return ErrUnsupported
	}
	if !p.source.SecureContext() {
		return ErrInsecureContext
	}
	return nil
}

// ProbeOnce asks for a single position, giving up after opts.Timeout.
func (p *Prober) ProbeOnce(ctx context.Context, opts Options) Outcome {
	if err := p.Available(); err != nil {
		return Outcome{Reason: ReasonUnsupported, Err: err}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	pos, err := p.source.CurrentPosition(ctx, opts)
	if err != nil {
		return Outcome{Reason: Classify(err), Err: err}
	}
	return Outcome{Granted: true, Position: pos}
}

// Event is delivered by a Watch: either a new position or a classified error.
type Event struct {
	Position Position
	Reason   Reason
	Err      error
}

func (e Event) Failed() bool { return e.Reason != ReasonNone }

// Watch is an active continuous position subscription.
type Watch struct {
	events chan Event
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Events yields position updates and errors until the watch stops.
func (w *Watch) Events() <-chan Event { return w.events }

// Stop cancels the subscription. It is safe to call more than once and on a nil Watch.
func (w *Watch) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch starts a continuous subscription. opts.Timeout bounds how long the
// watch may go without a position while it has none: before the first fix
// and after an error. A stationary source that stops sending new fixes once
// it has one is not a failure.
func (p *Prober) Watch(ctx context.Context, opts Options) (*Watch, error) {
	if err := p.Available(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		events: make(chan Event, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	fixes := p.source.WatchPosition(ctx, opts)

	go func() {
		defer close(w.done)
		defer close(w.events)

		waiting := opts.Timeout > 0
		for {
			var timeout <-chan time.Time
			var timer *time.Timer
			if waiting {
				timer = time.NewTimer(opts.Timeout)
				timeout = timer.C
			}

			var ev Event
			select {
			case <-ctx.Done():
				stopTimer(timer)
				return
			case fix, ok := <-fixes:
				stopTimer(timer)
				if !ok {
					return
				}
				if fix.Err != nil {
					ev = Event{Reason: Classify(fix.Err), Err: fix.Err}
					waiting = opts.Timeout > 0
				} else {
					ev = Event{Position: fix.Position}
					waiting = false
				}
			case <-timeout:
				ev = Event{Reason: ReasonUnavailable, Err: &PositionError{Code: CodeTimeout, Message: "watch timed out"}}
			}

			select {
			case w.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Debug().Dur("timeout", opts.Timeout).Msg("[geo] watch started")
	return w, nil
}

// Stop ends w if it is active; a nil watch is ignored.
func (p *Prober) Stop(w *Watch) {
	w.Stop()
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
