package content

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func quietNormalizer() (Normalizer, *bytes.Buffer) {
	var buf bytes.Buffer
	return Normalizer{Log: log.New(&buf, "", 0)}, &buf
}

func TestNormalizeDecodesEntitiesAndDerivesPath(t *testing.T) {
	n, _ := quietNormalizer()
	raws, err := n.Decode([]byte(`[{"id":1,"slug":"hello-world","title":"Hello &amp; World"}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	items := n.Normalize(raws)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	it := items[0]
	if it.Title != "Hello & World" {
		t.Errorf("Title = %q, want %q", it.Title, "Hello & World")
	}
	if it.Path != "/hello-world" {
		t.Errorf("Path = %q, want /hello-world", it.Path)
	}
	if it.ID != "1" {
		t.Errorf("ID = %q, want 1", it.ID)
	}
	if it.Type != TypePost {
		t.Errorf("Type = %q, want post", it.Type)
	}
}

func TestNormalizeWordPressShape(t *testing.T) {
	n, _ := quietNormalizer()
	body := `[{
		"id": 42,
		"slug": "team",
		"type": "page",
		"uri": "/about/team/",
		"title": {"rendered": "Our &#8220;Team&#8221;"},
		"content": {"rendered": "<p>Body &amp; more</p>"},
		"excerpt": {"rendered": "<p>Short &hellip;</p>\n"},
		"date": "2024-03-01T10:00:00",
		"date_gmt": "2024-03-01T08:00:00",
		"modified_gmt": "2024-04-02T09:30:00",
		"author": 3,
		"_embedded": {"author": [{"name": "Jo &amp; Sam"}]}
	}]`
	raws, err := n.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	it, ok := n.NormalizeOne(raws[0])
	if !ok {
		t.Fatal("record dropped")
	}

	if it.Path != "/about/team" {
		t.Errorf("Path = %q, want /about/team", it.Path)
	}
	if it.Title != "Our “Team”" {
		t.Errorf("Title = %q", it.Title)
	}
	if it.Body != "<p>Body &amp; more</p>" {
		t.Errorf("Body should stay HTML, got %q", it.Body)
	}
	if it.Excerpt != "Short …" {
		t.Errorf("Excerpt = %q", it.Excerpt)
	}
	if it.Author != "Jo & Sam" {
		t.Errorf("Author = %q", it.Author)
	}
	if it.Type != TypePage {
		t.Errorf("Type = %q, want page", it.Type)
	}
	wantPub := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if !it.PublishedAt.Equal(wantPub) {
		t.Errorf("PublishedAt = %v, want %v", it.PublishedAt, wantPub)
	}
	wantMod := time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)
	if !it.ModifiedAt.Equal(wantMod) {
		t.Errorf("ModifiedAt = %v, want %v", it.ModifiedAt, wantMod)
	}
}

func TestNormalizeGraphQLAuthorNode(t *testing.T) {
	n, _ := quietNormalizer()
	raws, err := n.Decode([]byte(`[{"id":"cG9zdDox","slug":"a","author":{"node":{"name":"Ana"}}}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	items := n.Normalize(raws)
	if len(items) != 1 || items[0].Author != "Ana" || items[0].ID != "cG9zdDox" {
		t.Fatalf("got %+v", items)
	}
}

func TestNormalizeDropsMalformedRecords(t *testing.T) {
	n, logs := quietNormalizer()
	body := `[
		{"id":1,"slug":"ok"},
		{"id":2},
		{"slug":"no-id"},
		{"id":3,"slug":"bad-title","title":[1,2]},
		{"id":4,"slug":"also-ok","date":"not a date"}
	]`
	raws, err := n.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	items := n.Normalize(raws)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].Slug != "ok" || items[1].Slug != "also-ok" {
		t.Errorf("unexpected order: %q, %q", items[0].Slug, items[1].Slug)
	}
	if !items[1].PublishedAt.IsZero() {
		t.Errorf("unparseable date should degrade to zero, got %v", items[1].PublishedAt)
	}
	if got := strings.Count(logs.String(), "malformed record"); got != 3 {
		t.Errorf("logged %d drops, want 3:\n%s", got, logs.String())
	}
}

func TestDecodeRejectsNonArray(t *testing.T) {
	n, _ := quietNormalizer()
	if _, err := n.Decode([]byte(`{"code":"rest_no_route"}`)); err == nil {
		t.Fatal("expected error for non-array body")
	}
}

func TestPathFor(t *testing.T) {
	cases := []struct {
		slug, explicit, want string
	}{
		{"hello", "", "/hello"},
		{"hello", "/blog/hello/", "/blog/hello"},
		{"team", "https://cms.example.com/about/team/", "/about/team"},
		{"home", "https://cms.example.com/", "/"},
		{"x", "   ", "/x"},
	}
	for _, tc := range cases {
		t.Run(tc.slug+"|"+tc.explicit, func(t *testing.T) {
			if got := PathFor(tc.slug, tc.explicit); got != tc.want {
				t.Errorf("PathFor(%q, %q) = %q, want %q", tc.slug, tc.explicit, got, tc.want)
			}
		})
	}
}
