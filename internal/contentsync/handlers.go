package contentsync

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contentsync/internal/content"
	"contentsync/internal/fetchcache"
)

const (
	maxNotifyBody = 1 << 20
	fallbackBase  = "http://localhost:5000"
	secretHeader  = "X-Webhook-Secret"
	cacheHeader   = "X-Content-Cache"
)

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Webhook.Path, s.handleRevalidate)
	mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)
	mux.HandleFunc("GET /robots.txt", s.handleRobots)
	mux.HandleFunc("GET /api/content", s.handleList)
	mux.HandleFunc("GET /api/content/{ref}", s.handleItem)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

func (s *Service) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	if secret := s.cfg.Webhook.Secret; secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotifyBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}

	out, err := s.gateway.Notify(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleSitemap(w http.ResponseWriter, r *http.Request) {
	b, err := s.artifacts.BuildSitemap(r.Context(), s.baseURL(r))
	if err != nil {
		s.log.Printf("sitemap: %v", err)
		http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	s.setArtifactCacheControl(w.Header())
	_, _ = w.Write(b)
}

func (s *Service) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.setArtifactCacheControl(w.Header())
	_, _ = w.Write(s.artifacts.BuildRobots(s.baseURL(r)))
}

type listResponse struct {
	Items     []content.Item `json:"items"`
	Page      int            `json:"page"`
	More      bool           `json:"more"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Freshness string         `json:"freshness"`
	Degraded  bool           `json:"degraded"`
}

type itemResponse struct {
	Item      content.Item `json:"item"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Freshness string       `json:"freshness"`
	Degraded  bool         `json:"degraded"`
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := content.Type(q.Get("type"))
	if typ == "" {
		typ = content.TypePost
	}
	if !typ.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown type"})
		return
	}
	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page"})
			return
		}
		page = n
	}

	res, err := s.cache.Get(r.Context(), fetchcache.List(typ, page, s.cfg.Source.PageSize), s.cfg.Cache.listDur)
	if err != nil {
		s.writeCacheError(w, err)
		return
	}
	items := res.Items()
	if items == nil {
		items = []content.Item{}
	}
	setCacheHeader(w.Header(), res.Origin)
	writeJSON(w, http.StatusOK, listResponse{
		Items:     items,
		Page:      page,
		More:      res.Entry.More,
		FetchedAt: res.Entry.FetchedAt,
		Freshness: string(res.Freshness),
		Degraded:  res.Degraded,
	})
}

func (s *Service) handleItem(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing ref"})
		return
	}
	res, err := s.cache.Get(r.Context(), fetchcache.Item(ref), s.cfg.Cache.itemDur)
	if err != nil {
		s.writeCacheError(w, err)
		return
	}
	items := res.Items()
	if len(items) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	setCacheHeader(w.Header(), res.Origin)
	writeJSON(w, http.StatusOK, itemResponse{
		Item:      items[0],
		FetchedAt: res.Entry.FetchedAt,
		Freshness: string(res.Freshness),
		Degraded:  res.Degraded,
	})
}

func (s *Service) writeCacheError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Printf("content read: %v", err)
	}
	writeJSON(w, code, map[string]string{"error": http.StatusText(code)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fetchcache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fetchcache.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) setArtifactCacheControl(h http.Header) {
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int64(s.cfg.Artifacts.maxAgeDur/time.Second),
		int64(s.cfg.Artifacts.swrDur/time.Second),
	))
}

// baseURL is the public scheme://host of the site as seen by the client.
func (s *Service) baseURL(r *http.Request) string {
	if s.cfg.Server.PublicURL != "" {
		return s.cfg.Server.PublicURL
	}
	host := firstValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return fallbackBase
	}
	proto := firstValue(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	return proto + "://" + host
}

// firstValue returns the first entry of a comma-separated proxy header.
func firstValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setCacheHeader(h http.Header, origin fetchcache.Origin) {
	if origin != "" {
		h.Set(cacheHeader, string(origin))
	}
	// Custom headers are not readable from browser JS in a CORS context
	// unless exposed.
	ensureExposedHeader(h, cacheHeader)
}

func ensureExposedHeader(h http.Header, name string) {
	if name == "" {
		return
	}

	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}

	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}

	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}
