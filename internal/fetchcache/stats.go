package fetchcache

import "sync/atomic"

type stats struct {
	hits     atomic.Uint64
	misses   atomic.Uint64
	stale    atomic.Uint64
	fetches  atomic.Uint64
	failures atomic.Uint64
	dropped  atomic.Uint64
}

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	StaleServed uint64
	Fetches     uint64
	Failures    uint64
	// NotStored counts fetch results discarded because an eviction ran
	// while they were in flight.
	NotStored uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		StaleServed: s.stale.Load(),
		Fetches:     s.fetches.Load(),
		Failures:    s.failures.Load(),
		NotStored:   s.dropped.Load(),
	}
}
