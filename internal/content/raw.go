package content

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RawRecord is a post or page as a CMS returns it. Decoding is lenient so
// both WordPress REST and WPGraphQL-shaped records fit.
type RawRecord struct {
	ID          FlexID       `json:"id"`
	Slug        string       `json:"slug"`
	Type        string       `json:"type"`
	Link        string       `json:"link"`
	URI         string       `json:"uri"`
	Title       RenderedText `json:"title"`
	Content     RenderedText `json:"content"`
	Excerpt     RenderedText `json:"excerpt"`
	Date        string       `json:"date"`
	DateGMT     string       `json:"date_gmt"`
	Modified    string       `json:"modified"`
	ModifiedGMT string       `json:"modified_gmt"`
	Author      RawAuthor    `json:"author"`

	Embedded struct {
		Author []struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"_embedded"`
}

// FlexID accepts a JSON number or string.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// RenderedText accepts a plain string or a {"rendered": "..."} object.
type RenderedText string

func (r *RenderedText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = ""
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			Rendered string `json:"rendered"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*r = RenderedText(obj.Rendered)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = RenderedText(s)
	return nil
}

// RawAuthor accepts a numeric author id, a name string, {"name": ...} or
// {"node": {"name": ...}}. Only the name is kept.
type RawAuthor struct {
	Name string
}

func (a *RawAuthor) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	a.Name = ""
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '"':
		return json.Unmarshal(b, &a.Name)
	case '{':
		var obj struct {
			Name string `json:"name"`
			Node struct {
				Name string `json:"name"`
			} `json:"node"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		a.Name = obj.Name
		if a.Name == "" {
			a.Name = obj.Node.Name
		}
		return nil
	default:
		// numeric id; the name, if any, comes from _embedded
		if _, err := strconv.ParseFloat(string(b), 64); err != nil {
			return err
		}
		return nil
	}
}
