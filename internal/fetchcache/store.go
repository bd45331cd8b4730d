package fetchcache

import (
	"bytes"
	"encoding/gob"
	"sync"
	"time"

	"contentsync/internal/content"
)

type Entry struct {
	Key       string
	Items     []content.Item
	More      bool
	FetchedAt time.Time
}

// Store holds entries for a Cache. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, ent Entry) error
	Delete(key string) error
	Clear() error
	Keys() []string
	TotalSize() int64
	Close() error
}

// ---- memory store ----

type memItem struct {
	key  string
	ent  Entry
	size int64
	prev *memItem
	next *memItem
}

// MemoryStore is an LRU bounded by the encoded size of its entries. A
// maxBytes of 0 disables the bound.
type MemoryStore struct {
	maxBytes int64

	mu    sync.Mutex
	items map[string]*memItem
	head  *memItem
	tail  *memItem
	total int64
}

func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{maxBytes: maxBytes, items: map[string]*memItem{}}
}

func (c *MemoryStore) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *MemoryStore) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	return out
}

func (c *MemoryStore) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	c.moveToFront(it)
	return it.ent, true
}

func (c *MemoryStore) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
	return nil
}

func (c *MemoryStore) deleteLocked(key string) {
	it, ok := c.items[key]
	if !ok {
		return
	}
	c.remove(it)
	delete(c.items, key)
	c.total -= it.size
}

func (c *MemoryStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[string]*memItem{}
	c.head, c.tail = nil, nil
	c.total = 0
	return nil
}

func (c *MemoryStore) Put(key string, ent Entry) error {
	b, err := encodeGob(ent)
	if err != nil {
		return err
	}
	sz := int64(len(b))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteLocked(key)
	if c.maxBytes > 0 && sz > c.maxBytes {
		// larger than the whole budget; not cached
		return nil
	}
	for c.maxBytes > 0 && c.total+sz > c.maxBytes && c.tail != nil {
		c.deleteLocked(c.tail.key)
	}

	it := &memItem{key: key, ent: ent, size: sz}
	c.items[key] = it
	c.addToFront(it)
	c.total += sz
	return nil
}

func (c *MemoryStore) Close() error { return nil }

func (c *MemoryStore) addToFront(it *memItem) {
	it.prev = nil
	it.next = c.head
	if c.head != nil {
		c.head.prev = it
	}
	c.head = it
	if c.tail == nil {
		c.tail = it
	}
}

func (c *MemoryStore) remove(it *memItem) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		c.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		c.tail = it.prev
	}
	it.prev, it.next = nil, nil
}

func (c *MemoryStore) moveToFront(it *memItem) {
	if c.head == it {
		return
	}
	c.remove(it)
	c.addToFront(it)
}

// ---- encoding ----

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
