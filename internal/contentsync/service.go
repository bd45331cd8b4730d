// Package contentsync wires the content source, fetch cache, invalidation
// gateway and artifact generator into an HTTP service.
package contentsync

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"contentsync/internal/artifact"
	"contentsync/internal/content"
	"contentsync/internal/fetchcache"
	"contentsync/internal/invalidation"
	"contentsync/internal/source"
)

type Service struct {
	cfg Config

	log       *log.Logger
	cache     *fetchcache.Cache
	gateway   *invalidation.Gateway
	artifacts *artifact.Generator

	stopCh chan struct{}
	wg     sync.WaitGroup

	warmLog *rateLimitedLogger
}

func newLogger(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)
}

// NewService builds the configured source and starts background loops.
// Close stops them.
func NewService(cfg Config) (*Service, error) {
	s, err := NewOneShot(cfg)
	if err != nil {
		return nil, err
	}
	s.startLoops()
	return s, nil
}

// NewOneShot builds a service without the warmup and stats loops, for
// commands that render one artifact and exit.
func NewOneShot(cfg Config) (*Service, error) {
	norm := content.Normalizer{Log: newLogger("[normalize] ")}

	var src source.Source
	switch cfg.Source.Kind {
	case SourceFeed:
		src = source.NewFeed(cfg.Source.FeedURL, cfg.Source.timeoutDur)
	default:
		src = source.NewWordPress(cfg.Source.BaseURL, cfg.Source.timeoutDur, norm)
	}
	return newService(cfg, src, norm)
}

func newService(cfg Config, src source.Source, norm content.Normalizer) (*Service, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Cache.Store, err)
	}

	cache := fetchcache.New(src, norm, store, fetchcache.Options{
		Timeout: cfg.Source.timeoutDur,
		Log:     newLogger("[cache] "),
	})

	s := &Service{
		cfg:     cfg,
		log:     newLogger("[contentsync] "),
		cache:   cache,
		gateway: invalidation.New(cache, newLogger("[gateway] ")),
		artifacts: artifact.NewGenerator(cache, artifact.Options{
			PageSize:    cfg.Source.PageSize,
			Freshness:   cfg.Cache.listDur,
			MaxPages:    cfg.Artifacts.MaxPages,
			StaticPaths: cfg.Artifacts.StaticPaths,
			Sitemaps:    cfg.Artifacts.Sitemaps,
			Log:         newLogger("[artifact] "),
		}),
		stopCh: make(chan struct{}),
	}
	s.warmLog = newRateLimitedLogger(s.log, time.Minute)
	return s, nil
}

func (s *Service) startLoops() {
	cfg := s.cfg
	if cfg.Logging.logStatsEveryDur > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(cfg.Logging.logStatsEveryDur)
		}()
	}

	if cfg.Warmup.everyDur > 0 {
		s.log.Printf("warmup tick interval: %s", cfg.Warmup.everyDur)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.warmupLoop(cfg.Warmup.everyDur)
		}()
	}
}

func openStore(cfg Config) (fetchcache.Store, error) {
	if cfg.Cache.Store == StoreLevelDB {
		return fetchcache.OpenLevelStore(cfg.Cache.Disk.Path, cfg.Cache.diskMax)
	}
	return fetchcache.NewMemoryStore(cfg.Cache.ramMax), nil
}

func (s *Service) Close() {
	close(s.stopCh)
	s.wg.Wait()
	if err := s.cache.Close(); err != nil {
		s.log.Printf("close cache: %v", err)
	}
}

// warmupLoop walks the sitemap listings so list entries are refreshed
// before a crawler asks for them.
func (s *Service) warmupLoop(every time.Duration) {
	s.warmOnce()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			s.warmOnce()
		}
	}
}

func (s *Service) warmOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	urls, err := s.artifacts.Paths(ctx)
	if err != nil {
		s.warmLog.Printf("warmup: %v", err)
		return
	}
	s.log.Printf("warmup: %d paths, %d keys cached", len(urls), len(s.cache.Keys()))
}

// Sitemap renders the sitemap for baseURL.
func (s *Service) Sitemap(ctx context.Context, baseURL string) ([]byte, error) {
	return s.artifacts.BuildSitemap(ctx, baseURL)
}

func (s *Service) Robots(baseURL string) []byte {
	return s.artifacts.BuildRobots(baseURL)
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
