package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Normalizer turns raw CMS records into Items. Bad records are dropped and
// logged, never returned as errors.
type Normalizer struct {
	Log *log.Logger
}

// Printf logs through Log, or the standard logger when Log is nil.
func (n Normalizer) Printf(format string, args ...any) {
	if n.Log != nil {
		n.Log.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Decode parses a JSON array of records. Elements that fail to decode are
// dropped; only a body that is not an array is an error.
func (n Normalizer) Decode(body []byte) ([]RawRecord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]RawRecord, 0, len(elems))
	for i, el := range elems {
		var r RawRecord
		if err := json.Unmarshal(el, &r); err != nil {
			n.Printf("malformed record at index %d dropped: %v", i, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Normalize converts records in order, skipping those without id or slug.
func (n Normalizer) Normalize(raws []RawRecord) []Item {
	out := make([]Item, 0, len(raws))
	for _, r := range raws {
		it, ok := n.NormalizeOne(r)
		if !ok {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (n Normalizer) NormalizeOne(r RawRecord) (Item, bool) {
	id := strings.TrimSpace(string(r.ID))
	slug := strings.TrimSpace(r.Slug)
	if id == "" || slug == "" {
		n.Printf("malformed record dropped: id=%q slug=%q", id, slug)
		return Item{}, false
	}

	typ := Type(strings.ToLower(strings.TrimSpace(r.Type)))
	if !typ.Valid() {
		typ = TypePost
	}

	author := r.Author.Name
	if author == "" && len(r.Embedded.Author) > 0 {
		author = r.Embedded.Author[0].Name
	}

	return Item{
		ID:          id,
		Slug:        slug,
		Path:        PathFor(slug, r.URI),
		Title:       strings.TrimSpace(html.UnescapeString(string(r.Title))),
		Body:        string(r.Content),
		Excerpt:     plainText(string(r.Excerpt)),
		Author:      strings.TrimSpace(html.UnescapeString(author)),
		PublishedAt: parseTime(r.DateGMT, r.Date),
		ModifiedAt:  parseTime(r.ModifiedGMT, r.Modified),
		Type:        typ,
	}, true
}

const wpLayout = "2006-01-02T15:04:05"

// parseTime prefers the GMT field. WordPress omits the zone on both, so
// zoneless values are read as UTC.
func parseTime(gmt, local string) time.Time {
	for _, v := range []string{gmt, local} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
		if t, err := time.Parse(wpLayout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// plainText strips markup and decodes entities.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(nd *html.Node) {
		if nd.Type == html.TextNode {
			buf.WriteString(nd.Data)
		}
		for c := nd.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(buf.String()), " ")
}
