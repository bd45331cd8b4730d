package content

import (
	"net/url"
	"strings"
	"time"
)

type Type string

const (
	TypePost Type = "post"
	TypePage Type = "page"
)

// Types lists every content type in sitemap order.
var Types = []Type{TypePost, TypePage}

func (t Type) Valid() bool {
	return t == TypePost || t == TypePage
}

// Item is the canonical form of a post or page, independent of the source
// that produced it.
type Item struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Excerpt     string    `json:"excerpt"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"publishedAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	Type        Type      `json:"type"`
}

// PathFor returns the route of an item. An explicit source path wins over
// the slug-derived one.
func PathFor(slug, explicit string) string {
	if p := normalizePath(explicit); p != "" {
		return p
	}
	return normalizePath(slug)
}

// normalizePath reduces an absolute URL or path to "/a/b" form. Empty input
// yields "".
func normalizePath(loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		u, err := url.Parse(loc)
		if err != nil {
			return ""
		}
		loc = u.Path
	}
	if !strings.HasPrefix(loc, "/") {
		loc = "/" + loc
	}
	if len(loc) > 1 {
		loc = strings.TrimRight(loc, "/")
		if loc == "" {
			loc = "/"
		}
	}
	return loc
}
