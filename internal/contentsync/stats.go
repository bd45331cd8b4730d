package contentsync

import (
	"fmt"
	"strings"
	"time"
)

func (s *Service) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			s.log.Print(s.statsLine())
		}
	}
}

func (s *Service) statsLine() string {
	st := s.cache.Stats()
	return fmt.Sprintf(
		"Cached: Keys: %d, Store usage: %s, Hits/misses/stale: %d/%d/%d, Fetches: %d, Failures: %d, Last clear: %s",
		len(s.cache.Keys()),
		formatBytes(uint64(s.cache.TotalSize())),
		st.Hits,
		st.Misses,
		st.StaleServed,
		st.Fetches,
		st.Failures,
		formatClearedAt(s.gateway.LastClearedAt()),
	)
}

func formatClearedAt(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	if b < kb {
		return fmt.Sprintf("%db", b)
	}
	if b < mb {
		return trimFloat(fmt.Sprintf("%.1f", float64(b)/kb)) + "kb"
	}
	if b < gb {
		return trimFloat(fmt.Sprintf("%.1f", float64(b)/mb)) + "mb"
	}
	return trimFloat(fmt.Sprintf("%.1f", float64(b)/gb)) + "gb"
}

func trimFloat(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	return s
}
