package fetchcache

import (
	"strconv"

	"contentsync/internal/content"
)

type Shape int

const (
	ShapeList Shape = iota
	ShapeItem
)

// Key identifies one query against the source.
type Key struct {
	Shape    Shape
	Type     content.Type
	Page     int
	PageSize int
	Ref      string
}

func List(typ content.Type, page, pageSize int) Key {
	return Key{Shape: ShapeList, Type: typ, Page: page, PageSize: pageSize}
}

// Item keys a single record by slug or id.
func Item(ref string) Key {
	return Key{Shape: ShapeItem, Ref: ref}
}

// String is the store key. The shape prefix keeps list and item keys apart.
func (k Key) String() string {
	if k.Shape == ShapeItem {
		return "item:" + k.Ref
	}
	return "list:" + string(k.Type) + ":" + strconv.Itoa(k.Page) + ":" + strconv.Itoa(k.PageSize)
}
