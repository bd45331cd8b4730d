package artifact

import (
	"strings"
)

func (g *Generator) BuildRobots(baseURL string) []byte {
	return BuildRobots(baseURL, g.opts.Sitemaps)
}

// BuildRobots allows all crawlers and lists each sitemap location.
func BuildRobots(baseURL string, sitemaps []string) []byte {
	base := strings.TrimRight(baseURL, "/")
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	if len(sitemaps) > 0 {
		b.WriteString("\n")
	}
	for _, sm := range sitemaps {
		sm = strings.TrimSpace(sm)
		if sm == "" {
			continue
		}
		if !strings.HasPrefix(sm, "http://") && !strings.HasPrefix(sm, "https://") {
			if !strings.HasPrefix(sm, "/") {
				sm = "/" + sm
			}
			sm = base + sm
		}
		b.WriteString("Sitemap: " + sm + "\n")
	}
	return []byte(b.String())
}
