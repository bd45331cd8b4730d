package contentsync

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
		// PublicURL overrides the scheme/host detected from requests.
		PublicURL string `yaml:"publicURL"`
	} `yaml:"server"`

	Source struct {
		Kind     string `yaml:"kind"`
		BaseURL  string `yaml:"baseURL"`
		FeedURL  string `yaml:"feedURL"`
		Timeout  string `yaml:"timeout"`
		PageSize int    `yaml:"pageSize"`

		timeoutDur time.Duration
	} `yaml:"source"`

	Cache struct {
		ItemFreshness string `yaml:"itemFreshness"`
		ListFreshness string `yaml:"listFreshness"`
		Store         string `yaml:"store"`
		RAM           struct {
			Max string `yaml:"max"`
		} `yaml:"ram"`
		Disk struct {
			Path string `yaml:"path"`
			Max  string `yaml:"max"`
		} `yaml:"disk"`

		itemDur time.Duration
		listDur time.Duration
		ramMax  int64
		diskMax int64
	} `yaml:"cache"`

	Artifacts struct {
		MaxAge               string   `yaml:"maxAge"`
		StaleWhileRevalidate string   `yaml:"staleWhileRevalidate"`
		StaticPaths          []string `yaml:"staticPaths"`
		Sitemaps             []string `yaml:"sitemaps"`
		MaxPages             int      `yaml:"maxPages"`

		maxAgeDur time.Duration
		swrDur    time.Duration
	} `yaml:"artifacts"`

	Webhook struct {
		Path   string `yaml:"path"`
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`

	Warmup struct {
		Every string `yaml:"every"`

		everyDur time.Duration
	} `yaml:"warmup"`

	Logging struct {
		LogStatsEvery string `yaml:"logStatsEvery"`

		logStatsEveryDur time.Duration
	} `yaml:"logging"`
}

const (
	SourceWordPress = "wordpress"
	SourceFeed      = "feed"

	StoreMemory  = "memory"
	StoreLevelDB = "leveldb"
)

func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) compile() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	cfg.Server.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/")

	src := &cfg.Source
	if src.Kind == "" {
		src.Kind = SourceWordPress
	}
	switch src.Kind {
	case SourceWordPress:
		if src.BaseURL == "" {
			return fmt.Errorf("source.baseURL is required for kind %q", src.Kind)
		}
		if err := checkURL(src.BaseURL); err != nil {
			return fmt.Errorf("source.baseURL: %w", err)
		}
		src.BaseURL = strings.TrimRight(src.BaseURL, "/")
	case SourceFeed:
		if src.FeedURL == "" {
			return fmt.Errorf("source.feedURL is required for kind %q", src.Kind)
		}
		if err := checkURL(src.FeedURL); err != nil {
			return fmt.Errorf("source.feedURL: %w", err)
		}
	default:
		return fmt.Errorf("source.kind: unknown kind %q", src.Kind)
	}
	if src.PageSize <= 0 {
		src.PageSize = 100
	}
	var err error
	if src.timeoutDur, err = parseDurationDefault(src.Timeout, 10*time.Second); err != nil {
		return fmt.Errorf("source.timeout: %w", err)
	}

	c := &cfg.Cache
	if c.itemDur, err = parseDurationDefault(c.ItemFreshness, 60*time.Second); err != nil {
		return fmt.Errorf("cache.itemFreshness: %w", err)
	}
	if c.listDur, err = parseDurationDefault(c.ListFreshness, time.Hour); err != nil {
		return fmt.Errorf("cache.listFreshness: %w", err)
	}
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.Store != StoreMemory && c.Store != StoreLevelDB {
		return fmt.Errorf("cache.store: unknown store %q", c.Store)
	}
	if c.RAM.Max != "" {
		if c.ramMax, err = parseBytes(c.RAM.Max); err != nil {
			return fmt.Errorf("cache.ram.max: %w", err)
		}
	}
	if c.Disk.Max != "" {
		if c.diskMax, err = parseBytes(c.Disk.Max); err != nil {
			return fmt.Errorf("cache.disk.max: %w", err)
		}
	}

	a := &cfg.Artifacts
	if a.maxAgeDur, err = parseDurationDefault(a.MaxAge, time.Hour); err != nil {
		return fmt.Errorf("artifacts.maxAge: %w", err)
	}
	if a.swrDur, err = parseDurationDefault(a.StaleWhileRevalidate, 24*time.Hour); err != nil {
		return fmt.Errorf("artifacts.staleWhileRevalidate: %w", err)
	}
	if a.StaticPaths == nil {
		a.StaticPaths = []string{"/"}
	}
	if len(a.Sitemaps) == 0 {
		a.Sitemaps = []string{"/sitemap.xml"}
	}
	if a.MaxPages <= 0 {
		a.MaxPages = 1000
	}

	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/api/revalidate"
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path: must start with /, got %q", cfg.Webhook.Path)
	}

	if cfg.Warmup.everyDur, err = parseDurationDefault(cfg.Warmup.Every, 0); err != nil {
		return fmt.Errorf("warmup.every: %w", err)
	}
	if cfg.Logging.logStatsEveryDur, err = parseDurationDefault(cfg.Logging.LogStatsEvery, 0); err != nil {
		return fmt.Errorf("logging.logStatsEvery: %w", err)
	}
	return nil
}

func parseDurationDefault(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func checkURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", s)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", s)
	}
	return nil
}
