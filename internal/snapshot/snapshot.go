// Package snapshot caches the loaded attendance dataset. Every dashboard
// request reads the same immutable snapshot until it expires or is
// invalidated; concurrent reloads collapse into one fetch.
package snapshot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"asistencia/internal/cache"
	"asistencia/internal/core"
	applog "asistencia/internal/log"
	"asistencia/internal/sheets"
)

const cacheKey = "dataset"

// loadTimeout bounds one fetch from the source. Fetches ignore the
// cancellation of the request that triggered them.
const loadTimeout = 60 * time.Second

// Stats are the counters exposed on /metrics.
type Stats struct {
	Loads        int64
	LoadFailures int64
	Hits         int64
	Misses       int64
	Records      int64
	LastLoad     time.Time
	Degraded     bool
}

// Store serves the current dataset.
type Store struct {
	reader sheets.TableReader
	source string
	cache  *cache.LRUCache[core.Dataset]
	group  singleflight.Group
	logger *applog.Logger
	sl     *applog.StructuredLogger
	now    func() time.Time

	// gen is bumped by Invalidate; a load started under an older
	// generation is returned to its waiters but never cached.
	gen atomic.Uint64

	loads, failures, hits, misses, records atomic.Int64
	lastLoad                               atomic.Int64 // unix nanos
	degraded                               atomic.Bool
}

// New returns a store reading from reader, caching each dataset for ttl.
func New(reader sheets.TableReader, source string, ttl time.Duration, logger *applog.Logger) *Store {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSnapshot)
	return &Store{
		reader: reader,
		source: source,
		cache:  cache.NewLRUCache[core.Dataset](1, ttl),
		logger: logger,
		sl:     applog.NewStructuredLogger(logger),
		now:    time.Now,
	}
}

// WithClock replaces the time source of the store and its cache.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	s.cache.WithClock(now)
	return s
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (s *Store) Cache() cache.Cleaner {
	return s.cache
}

// Get returns the cached dataset, loading it when absent or expired. It
// never fails: a source error produces an empty dataset carrying a notice,
// and that degraded dataset is cached like a good one until it expires or
// is invalidated.
func (s *Store) Get(ctx context.Context) core.Dataset {
	if ds, ok := s.cache.Get(cacheKey); ok {
		s.hits.Add(1)
		return ds
	}
	s.misses.Add(1)

	v, _, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		// Another caller may have finished loading while we waited.
		if ds, ok := s.cache.Get(cacheKey); ok {
			return ds, nil
		}
		gen := s.gen.Load()
		ds := s.load(context.WithoutCancel(ctx))
		if s.gen.Load() == gen {
			s.cache.Set(cacheKey, ds)
		}
		return ds, nil
	})
	return v.(core.Dataset)
}

// Expiry reports when the current snapshot expires; ok is false when
// nothing is cached.
func (s *Store) Expiry() (time.Time, bool) {
	_, exp, ok := s.cache.GetWithExpiry(cacheKey)
	return exp, ok
}

// Invalidate drops the cached dataset; the next Get reloads it, even when
// a load is still in flight.
func (s *Store) Invalidate() {
	s.gen.Add(1)
	s.group.Forget(cacheKey)
	s.cache.Delete(cacheKey)
	s.logger.Info("Snapshot invalidated")
}

// Ready reports whether a non-degraded dataset can be served.
func (s *Store) Ready(ctx context.Context) bool {
	return !s.Get(ctx).Degraded()
}

// Stats returns a copy of the counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Loads:        s.loads.Load(),
		LoadFailures: s.failures.Load(),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Records:      s.records.Load(),
		Degraded:     s.degraded.Load(),
	}
	if ns := s.lastLoad.Load(); ns != 0 {
		st.LastLoad = time.Unix(0, ns)
	}
	return st
}

func (s *Store) load(ctx context.Context) core.Dataset {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	start := s.now()
	s.loads.Add(1)
	s.lastLoad.Store(start.UnixNano())

	var ds core.Dataset
	if s.reader == nil {
		ds = s.failed(ctx, core.ErrNoSource, start)
	} else if t, err := s.reader.ReadTable(ctx); err != nil {
		ds = s.failed(ctx, err, start)
	} else {
		ds = core.NewDataset(t, s.source, start)
	}

	s.records.Store(int64(len(ds.Records)))
	s.degraded.Store(ds.Degraded())
	s.sl.LogSnapshotLoaded(ctx, s.source, len(ds.Records), len(ds.Names), len(ds.Catalog),
		ds.Degraded(), s.now().Sub(start).Milliseconds())
	return ds
}

func (s *Store) failed(ctx context.Context, err error, at time.Time) core.Dataset {
	s.failures.Add(1)
	s.logger.ErrorContext(ctx, "Failed to load attendance data",
		applog.FieldSource, s.source,
		applog.FieldError, err)
	return core.EmptyDataset(s.source, Notice(err), at)
}

// Notice is the banner text shown when the source cannot be read.
func Notice(err error) string {
	return fmt.Sprintf("Error al cargar datos: %v", err)
}
