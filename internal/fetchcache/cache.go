// Package fetchcache serves normalized CMS content with bounded staleness.
package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"contentsync/internal/content"
	"contentsync/internal/source"
)

var (
	// ErrSourceUnavailable means the source fetch failed and there was no
	// earlier entry to fall back to.
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrNotFound          = errors.New("not found")
)

type Freshness string

const (
	Fresh Freshness = "fresh"
	Stale Freshness = "stale"
)

// Origin tells how a result was produced.
type Origin string

const (
	OriginHit   Origin = "hit"
	OriginMiss  Origin = "miss"
	OriginStale Origin = "stale"
)

type Result struct {
	Entry     Entry
	Freshness Freshness
	// Degraded is set when the source failed and an old entry was served.
	Degraded bool
	Origin   Origin
}

func (r Result) Items() []content.Item { return r.Entry.Items }

type Options struct {
	// Timeout bounds every source fetch. Zero means 10s.
	Timeout time.Duration
	Log     *log.Logger
	Now     func() time.Time
}

type Cache struct {
	src   source.Source
	norm  content.Normalizer
	store Store

	timeout time.Duration
	log     *log.Logger
	now     func() time.Time

	// mu orders store writes against evictions. gen counts EvictAll calls;
	// keyGen counts Evict calls per key since the last EvictAll.
	mu     sync.Mutex
	gen    uint64
	keyGen map[string]uint64

	flights singleflight.Group
	stats   stats
}

func New(src source.Source, norm content.Normalizer, store Store, opts Options) *Cache {
	c := &Cache{
		src:     src,
		norm:    norm,
		store:   store,
		keyGen:  map[string]uint64{},
		timeout: opts.Timeout,
		log:     opts.Log,
		now:     opts.Now,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.log == nil {
		c.log = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get returns the entry for key if it was fetched less than freshness ago,
// otherwise fetches it. Concurrent callers for the same key share one
// fetch. On fetch failure an existing entry is served as degraded.
func (c *Cache) Get(ctx context.Context, key Key, freshness time.Duration) (Result, error) {
	k := key.String()

	c.mu.Lock()
	ent, ok := c.store.Get(k)
	gen := c.generationLocked(k)
	c.mu.Unlock()

	if ok && c.isFresh(ent, freshness) {
		c.stats.hits.Add(1)
		return Result{Entry: ent, Freshness: Fresh, Origin: OriginHit}, nil
	}

	// Callers arriving after an eviction of k never join a flight that
	// started before it.
	flight := k + "#" + strconv.FormatUint(gen.all, 10) + "." + strconv.FormatUint(gen.key, 10)
	ch := c.flights.DoChan(flight, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), key, gen, freshness)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// generation identifies the evictions a key has seen.
type generation struct {
	all uint64
	key uint64
}

func (c *Cache) generationLocked(k string) generation {
	return generation{all: c.gen, key: c.keyGen[k]}
}

func (c *Cache) isFresh(ent Entry, freshness time.Duration) bool {
	return c.now().Sub(ent.FetchedAt) < freshness
}

func (c *Cache) refresh(ctx context.Context, key Key, gen generation, freshness time.Duration) (Result, error) {
	k := key.String()

	// A flight that finished just before this one may already have
	// refreshed the entry.
	c.mu.Lock()
	prior, hasPrior := c.store.Get(k)
	if c.generationLocked(k) != gen {
		hasPrior = false
	}
	c.mu.Unlock()
	if hasPrior && c.isFresh(prior, freshness) {
		c.stats.hits.Add(1)
		return Result{Entry: prior, Freshness: Fresh, Origin: OriginHit}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.stats.misses.Add(1)
	c.stats.fetches.Add(1)
	ent, err := c.fetch(ctx, key)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			if hasPrior {
				c.mu.Lock()
				_ = c.store.Delete(k)
				c.mu.Unlock()
			}
			return Result{}, fmt.Errorf("%s: %w", k, ErrNotFound)
		}

		c.stats.failures.Add(1)
		if hasPrior {
			c.stats.stale.Add(1)
			c.log.Printf("fetch %s failed, serving stale entry fetched %s ago: %v",
				k, c.now().Sub(prior.FetchedAt).Round(time.Second), err)
			return Result{Entry: prior, Freshness: Stale, Degraded: true, Origin: OriginStale}, nil
		}
		c.log.Printf("fetch %s failed, nothing cached: %v", k, err)
		return Result{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, k, err)
	}

	ent.Key = k
	ent.FetchedAt = c.now()

	c.mu.Lock()
	if c.generationLocked(k) == gen {
		if err := c.store.Put(k, ent); err != nil {
			c.log.Printf("store %s: %v", k, err)
		}
	} else {
		c.stats.dropped.Add(1)
	}
	c.mu.Unlock()

	return Result{Entry: ent, Freshness: Fresh, Origin: OriginMiss}, nil
}

func (c *Cache) fetch(ctx context.Context, key Key) (Entry, error) {
	switch key.Shape {
	case ShapeList:
		l, err := c.src.List(ctx, key.Type, key.Page, key.PageSize)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Items: c.norm.Normalize(l.Records), More: l.More}, nil
	case ShapeItem:
		raw, err := c.src.Item(ctx, key.Ref)
		if err != nil {
			return Entry{}, err
		}
		it, ok := c.norm.NormalizeOne(raw)
		if !ok {
			return Entry{}, fmt.Errorf("%s: malformed record: %w", key.Ref, source.ErrNotFound)
		}
		return Entry{Items: []content.Item{it}}, nil
	default:
		return Entry{}, fmt.Errorf("unknown key shape %d", key.Shape)
	}
}

// Evict drops one entry. A fetch of that key in flight at the time is not
// stored; other keys are unaffected.
func (c *Cache) Evict(key Key) error {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyGen[k]++
	return c.store.Delete(k)
}

// EvictAll drops every entry. Fetches in flight at the time are not stored.
func (c *Cache) EvictAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.keyGen = map[string]uint64{}
	return c.store.Clear()
}

// Keys returns the stored keys in sorted order.
func (c *Cache) Keys() []string {
	keys := c.store.Keys()
	sort.Strings(keys)
	return keys
}

func (c *Cache) Len() int {
	return len(c.store.Keys())
}

func (c *Cache) TotalSize() int64 {
	return c.store.TotalSize()
}

func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Cache) Close() error {
	return c.store.Close()
}
