// Package source reads posts and pages from the remote CMS.
package source

import (
	"context"
	"errors"
	"fmt"

	"contentsync/internal/content"
)

var ErrNotFound = errors.New("content not found")

// Listing is one page of a list query. More reports whether the source has
// further pages.
type Listing struct {
	Records []content.RawRecord
	More    bool
}

type Source interface {
	List(ctx context.Context, typ content.Type, page, pageSize int) (Listing, error)
	// Item looks a record up by slug or id. Missing records yield ErrNotFound.
	Item(ctx context.Context, ref string) (content.RawRecord, error)
}

// StatusError is returned for unexpected HTTP statuses from the CMS.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.Status, e.URL, e.Body)
}
