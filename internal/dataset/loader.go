package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Source fetches a complete dataset from wherever it lives.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Dataset, error)
}

// Loader caches the dataset for the life of the process. Concurrent Load calls
// share one in-flight fetch; a failed fetch is reported to every waiter and
// is not cached, so the next Load tries again.
type Loader struct {
	source  Source
	timeout time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	cached *Dataset
}

func NewLoader(source Source, timeout time.Duration) *Loader {
	return &Loader{source: source, timeout: timeout}
}

// Load returns the cached dataset, fetching it first if necessary.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	l.mu.RLock()
	ds := l.cached
	l.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	ch := l.group.DoChan("dataset", func() (any, error) {
		return l.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDatasetLoad, ctx.Err())
	}
}

func (l *Loader) fetch(ctx context.Context) (*Dataset, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	ds, err := l.source.Fetch(ctx)
	if err != nil {
		log.Error().Err(err).Str("source", l.source.Name()).Msg("[dataset] load failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrDatasetLoad, l.source.Name(), err)
	}

	l.mu.Lock()
	l.cached = ds
	l.mu.Unlock()

	log.Info().
		Str("source", l.source.Name()).
		Int("districts", ds.Len()).
		Dur("took", time.Since(start)).
		Msg("[dataset] loaded")
	return ds, nil
}

// Reload drops the cached dataset and fetches it again.
func (l *Loader) Reload(ctx context.Context) (*Dataset, error) {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
	l.group.Forget("dataset")
	return l.Load(ctx)
}

func (l *Loader) SourceName() string { return l.source.Name() }
