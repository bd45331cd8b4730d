package contentsync

import (
	"strings"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("source:\n  baseURL: https://cms.example.com/\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Source.Kind != SourceWordPress || cfg.Source.BaseURL != "https://cms.example.com" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Source.PageSize != 100 || cfg.Source.timeoutDur != 10*time.Second {
		t.Errorf("pageSize=%d timeout=%s", cfg.Source.PageSize, cfg.Source.timeoutDur)
	}
	if cfg.Cache.itemDur != time.Minute || cfg.Cache.listDur != time.Hour || cfg.Cache.Store != StoreMemory {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Artifacts.maxAgeDur != time.Hour || cfg.Artifacts.swrDur != 24*time.Hour {
		t.Errorf("artifacts = %+v", cfg.Artifacts)
	}
	if len(cfg.Artifacts.StaticPaths) != 1 || cfg.Artifacts.Sitemaps[0] != "/sitemap.xml" {
		t.Errorf("artifacts paths = %v %v", cfg.Artifacts.StaticPaths, cfg.Artifacts.Sitemaps)
	}
	if cfg.Webhook.Path != "/api/revalidate" {
		t.Errorf("webhook path = %q", cfg.Webhook.Path)
	}
}

func TestParseConfigFull(t *testing.T) {
	in := `
server:
  port: 8081
source:
  kind: feed
  feedURL: https://blog.example.com/feed
  timeout: 3s
cache:
  itemFreshness: 30s
  store: leveldb
  ram:
    max: 16m
  disk:
    max: 1g
warmup:
  every: 5m
logging:
  logStatsEvery: 1m
`
	cfg, err := ParseConfig([]byte(in))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Server.Port != 8081 || cfg.Source.timeoutDur != 3*time.Second {
		t.Errorf("got port=%d timeout=%s", cfg.Server.Port, cfg.Source.timeoutDur)
	}
	if cfg.Cache.itemDur != 30*time.Second || cfg.Cache.ramMax != 16<<20 || cfg.Cache.diskMax != 1<<30 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Warmup.everyDur != 5*time.Minute || cfg.Logging.logStatsEveryDur != time.Minute {
		t.Errorf("loops: warmup=%s stats=%s", cfg.Warmup.everyDur, cfg.Logging.logStatsEveryDur)
	}
}

func TestParseConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"missing base", "source:\n  kind: wordpress\n", "source.baseURL"},
		{"bad scheme", "source:\n  baseURL: ftp://x\n", "source.baseURL"},
		{"missing feed", "source:\n  kind: feed\n", "source.feedURL"},
		{"unknown kind", "source:\n  kind: ghost\n", "source.kind"},
		{"bad duration", "source:\n  baseURL: https://x\n  timeout: soon\n", "source.timeout"},
		{"bad store", "source:\n  baseURL: https://x\ncache:\n  store: redis\n", "cache.store"},
		{"bad size", "source:\n  baseURL: https://x\ncache:\n  ram:\n    max: lots\n", "cache.ram.max"},
		{"bad webhook path", "source:\n  baseURL: https://x\nwebhook:\n  path: hook\n", "webhook.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.in))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestParseBytes(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"512", 512},
		{"1k", 1024},
		{"1kb", 1024},
		{"64m", 64 << 20},
		{"1.5g", 3 << 29},
	}
	for _, tc := range cases {
		got, err := parseBytes(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("parseBytes(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
	for _, bad := range []string{"", "b", "-1m", "xm"} {
		if _, err := parseBytes(bad); err == nil {
			t.Errorf("parseBytes(%q) should fail", bad)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		10:      "10b",
		2048:    "2kb",
		1536:    "1.5kb",
		5 << 20: "5mb",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
