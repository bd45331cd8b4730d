package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contentsync/internal/content"
)

const userAgent = "contentsync/1"

// WordPress reads the /wp-json/wp/v2 REST API.
type WordPress struct {
	baseURL    string
	httpClient *http.Client
	norm       content.Normalizer
}

func NewWordPress(baseURL string, timeout time.Duration, norm content.Normalizer) *WordPress {
	return &WordPress{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		norm:       norm,
	}
}

func endpointFor(typ content.Type) string {
	if typ == content.TypePage {
		return "pages"
	}
	return "posts"
}

func (w *WordPress) List(ctx context.Context, typ content.Type, page, pageSize int) (Listing, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("_embed", "author")
	u := w.baseURL + "/wp-json/wp/v2/" + endpointFor(typ) + "?" + q.Encode()

	body, hdr, err := w.get(ctx, u)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusBadRequest && strings.Contains(se.Body, "rest_post_invalid_page_number") {
			return Listing{}, nil
		}
		return Listing{}, err
	}
	recs, err := w.norm.Decode(body)
	if err != nil {
		return Listing{}, fmt.Errorf("%s: %w", u, err)
	}
	for i := range recs {
		fillType(&recs[i], typ)
	}

	more := len(recs) == pageSize && len(recs) > 0
	if tp := hdr.Get("X-WP-TotalPages"); tp != "" {
		if total, err := strconv.Atoi(tp); err == nil {
			more = page < total
		}
	}
	return Listing{Records: recs, More: more}, nil
}

func (w *WordPress) Item(ctx context.Context, ref string) (content.RawRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return content.RawRecord{}, ErrNotFound
	}
	_, numErr := strconv.ParseUint(ref, 10, 64)

	for _, typ := range content.Types {
		ep := w.baseURL + "/wp-json/wp/v2/" + endpointFor(typ)
		var (
			recs []content.RawRecord
			err  error
		)
		if numErr == nil {
			recs, err = w.byID(ctx, ep+"/"+ref+"?_embed=author")
		} else {
			recs, err = w.bySlug(ctx, ep+"?slug="+url.QueryEscape(ref)+"&_embed=author")
		}
		if err != nil {
			return content.RawRecord{}, err
		}
		if len(recs) > 0 {
			fillType(&recs[0], typ)
			return recs[0], nil
		}
	}
	return content.RawRecord{}, ErrNotFound
}

func (w *WordPress) byID(ctx context.Context, u string) ([]content.RawRecord, error) {
	body, _, err := w.get(ctx, u)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var rec content.RawRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		w.norm.Printf("malformed record from %s dropped: %v", u, err)
		return nil, nil
	}
	return []content.RawRecord{rec}, nil
}

func (w *WordPress) bySlug(ctx context.Context, u string) ([]content.RawRecord, error) {
	body, _, err := w.get(ctx, u)
	if err != nil {
		return nil, err
	}
	recs, err := w.norm.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	return recs, nil
}

func (w *WordPress) get(ctx context.Context, u string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, nil, &StatusError{URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return body, resp.Header, nil
}

// fillType stamps the queried type and, for hierarchical pages, the link
// path as the explicit route.
func fillType(r *content.RawRecord, typ content.Type) {
	if r.Type == "" {
		r.Type = string(typ)
	}
	if typ == content.TypePage && r.URI == "" && r.Link != "" {
		if u, err := url.Parse(r.Link); err == nil {
			r.URI = u.Path
		}
	}
}
