package fetchcache

import (
	"bytes"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const entryPrefix = "e:"

type levelMeta struct {
	size       int64
	lastAccess int64
}

// LevelStore keeps entries in goleveldb. With an empty path the database
// lives in memory; with a path it is a spill file that is wiped on open, so
// entries never outlive the process.
type LevelStore struct {
	maxBytes int64
	db       *leveldb.DB

	mu    sync.Mutex
	index map[string]levelMeta
	total int64
	tick  int64
}

func OpenLevelStore(path string, maxBytes int64) (*LevelStore, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	s := &LevelStore{maxBytes: maxBytes, db: db, index: map[string]levelMeta{}}
	if err := s.wipe(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LevelStore) Get(key string) (Entry, bool) {
	b, err := s.db.Get([]byte(entryPrefix+key), nil)
	if err != nil {
		return Entry{}, false
	}
	var ent Entry
	if err := decodeGob(b, &ent); err != nil {
		return Entry{}, false
	}
	s.mu.Lock()
	if m, ok := s.index[key]; ok {
		s.tick++
		m.lastAccess = s.tick
		s.index[key] = m
	}
	s.mu.Unlock()
	return ent, true
}

func (s *LevelStore) Put(key string, ent Entry) error {
	b, err := encodeGob(ent)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(entryPrefix+key), b, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.total -= s.index[key].size
	s.tick++
	s.index[key] = levelMeta{size: int64(len(b)), lastAccess: s.tick}
	s.total += int64(len(b))
	over := s.maxBytes > 0 && s.total > s.maxBytes
	s.mu.Unlock()

	if over {
		return s.evictSome(key)
	}
	return nil
}

func (s *LevelStore) Delete(key string) error {
	if err := s.db.Delete([]byte(entryPrefix+key), nil); err != nil {
		return err
	}
	s.mu.Lock()
	if m, ok := s.index[key]; ok {
		s.total -= m.size
		delete(s.index, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *LevelStore) Clear() error {
	return s.wipe()
}

func (s *LevelStore) wipe() error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(bytes.Clone(it.Key()))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.index = map[string]levelMeta{}
	s.total = 0
	s.mu.Unlock()
	return nil
}

func (s *LevelStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.index))
	for k := range s.index {
		out = append(out, k)
	}
	return out
}

func (s *LevelStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

// evictSome drops the least recently used tenth of the entries, never the
// one just written.
func (s *LevelStore) evictSome(keep string) error {
	type item struct {
		key string
		m   levelMeta
	}
	s.mu.Lock()
	items := make([]item, 0, len(s.index))
	for k, m := range s.index {
		if k != keep {
			items = append(items, item{k, m})
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].m.lastAccess < items[j].m.lastAccess
	})

	n := len(items) / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n && i < len(items); i++ {
		if err := s.Delete(items[i].key); err != nil {
			return err
		}
	}
	return nil
}
