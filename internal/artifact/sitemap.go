// Package artifact derives sitemap.xml and robots.txt from cached content.
package artifact

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"contentsync/internal/content"
	"contentsync/internal/fetchcache"
)

// Reader is the read side of the fetch cache.
type Reader interface {
	Get(ctx context.Context, key fetchcache.Key, freshness time.Duration) (fetchcache.Result, error)
}

type Options struct {
	PageSize  int
	Freshness time.Duration
	// MaxPages caps list pagination per content type.
	MaxPages    int
	StaticPaths []string
	// Sitemaps are the locations robots.txt points at, relative to the base
	// URL unless absolute.
	Sitemaps []string
	Log      *log.Logger
}

type Generator struct {
	cache Reader
	opts  Options
}

func NewGenerator(cache Reader, opts Options) *Generator {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1000
	}
	if len(opts.Sitemaps) == 0 {
		opts.Sitemaps = []string{"/sitemap.xml"}
	}
	if opts.Log == nil {
		opts.Log = log.Default()
	}
	return &Generator{cache: cache, opts: opts}
}

// URL is one sitemap entry.
type URL struct {
	Path       string
	ModifiedAt time.Time
}

// Paths walks every list page of every content type and returns each path
// once, static paths first, in discovery order. A path seen more than once
// keeps its latest modification time. Paths must be unique per item in the
// CMS; two different items resolving to one path are logged.
func (g *Generator) Paths(ctx context.Context) ([]URL, error) {
	var out []URL
	seen := map[string]int{}
	owner := map[string]string{}
	add := func(path, by string, mod time.Time) {
		if i, ok := seen[path]; ok {
			if prev := owner[path]; by != "" && prev != "" && prev != by {
				g.opts.Log.Printf("path %s shared by %s and %s", path, prev, by)
			}
			if mod.After(out[i].ModifiedAt) {
				out[i].ModifiedAt = mod
			}
			return
		}
		seen[path] = len(out)
		owner[path] = by
		out = append(out, URL{Path: path, ModifiedAt: mod})
	}

	for _, p := range g.opts.StaticPaths {
		if p = content.PathFor("", p); p != "" {
			add(p, "", time.Time{})
		}
	}

	for _, typ := range content.Types {
		for page := 1; page <= g.opts.MaxPages; page++ {
			res, err := g.cache.Get(ctx, fetchcache.List(typ, page, g.opts.PageSize), g.opts.Freshness)
			if err != nil {
				return nil, fmt.Errorf("list %s page %d: %w", typ, page, err)
			}
			items := res.Items()
			for _, it := range items {
				add(it.Path, string(it.Type)+" "+it.ID, it.ModifiedAt)
			}
			if !res.Entry.More || len(items) == 0 {
				break
			}
		}
	}
	return out, nil
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (g *Generator) BuildSitemap(ctx context.Context, baseURL string) ([]byte, error) {
	urls, err := g.Paths(ctx)
	if err != nil {
		return nil, err
	}
	return renderSitemap(baseURL, urls)
}

func renderSitemap(baseURL string, urls []URL) ([]byte, error) {
	doc := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	base := strings.TrimRight(baseURL, "/")
	for _, u := range urls {
		su := sitemapURL{Loc: base + (&url.URL{Path: u.Path}).EscapedPath()}
		if !u.ModifiedAt.IsZero() {
			su.LastMod = u.ModifiedAt.UTC().Format(time.RFC3339)
		}
		doc.URLs = append(doc.URLs, su)
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(b, '\n')...), nil
}
