package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"contentsync/internal/content"
)

// Feed serves posts from an RSS/Atom/JSON feed. Feeds are not paginated, so
// the whole document is fetched per query and windowed locally. Feeds carry
// no pages.
type Feed struct {
	feedURL    string
	httpClient *http.Client
}

func NewFeed(feedURL string, timeout time.Duration) *Feed {
	return &Feed{feedURL: feedURL, httpClient: &http.Client{Timeout: timeout}}
}

func (f *Feed) List(ctx context.Context, typ content.Type, page, pageSize int) (Listing, error) {
	if typ != content.TypePost {
		return Listing{}, nil
	}
	recs, err := f.fetch(ctx)
	if err != nil {
		return Listing{}, err
	}
	if page < 1 || pageSize < 1 {
		return Listing{}, nil
	}
	start := (page - 1) * pageSize
	if start >= len(recs) {
		return Listing{}, nil
	}
	end := start + pageSize
	if end > len(recs) {
		end = len(recs)
	}
	return Listing{Records: recs[start:end], More: end < len(recs)}, nil
}

func (f *Feed) Item(ctx context.Context, ref string) (content.RawRecord, error) {
	recs, err := f.fetch(ctx)
	if err != nil {
		return content.RawRecord{}, err
	}
	for _, r := range recs {
		if r.Slug == ref || string(r.ID) == ref {
			return r, nil
		}
	}
	return content.RawRecord{}, ErrNotFound
}

func (f *Feed) fetch(ctx context.Context) ([]content.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{URL: f.feedURL, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.feedURL, err)
	}

	out := make([]content.RawRecord, 0, len(feed.Items))
	for _, it := range feed.Items {
		out = append(out, recordFromFeedItem(it))
	}
	return out, nil
}

func recordFromFeedItem(it *gofeed.Item) content.RawRecord {
	var r content.RawRecord
	r.ID = content.FlexID(it.GUID)
	if r.ID == "" {
		r.ID = content.FlexID(it.Link)
	}
	r.Type = string(content.TypePost)
	r.Link = it.Link
	if u, err := url.Parse(it.Link); err == nil && u.Path != "" && u.Path != "/" {
		r.URI = u.Path
		r.Slug = path.Base(strings.TrimRight(u.Path, "/"))
	}
	r.Title = content.RenderedText(it.Title)
	r.Content = content.RenderedText(it.Content)
	if r.Content == "" {
		r.Content = content.RenderedText(it.Description)
	}
	r.Excerpt = content.RenderedText(it.Description)
	if it.PublishedParsed != nil {
		r.DateGMT = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	switch {
	case it.UpdatedParsed != nil:
		r.ModifiedGMT = it.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		r.ModifiedGMT = r.DateGMT
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		r.Author.Name = it.Authors[0].Name
	}
	return r
}
