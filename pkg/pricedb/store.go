package pricedb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/economy"
	"github.com/viktorwb/scrapbot/pkg/item"
)

const cacheSize = 2048

// Store is a pebble-backed price list with an LRU read cache. Reads during
// offer construction hit the cache; the pricing subsystem writes through it.
type Store struct {
	db       *pebble.DB
	cache    *lru.Cache[item.SKU, Entry]
	keyValue atomic.Int64
	log      *zap.SugaredLogger
}

// keys: p:<sku>, kv
func kEntry(sku item.SKU) []byte { return append([]byte("p:"), sku...) }
func kKeyValue() []byte          { return []byte("kv") }

func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[item.SKU, Entry](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, cache: cache, log: log}

	val, closer, err := db.Get(kKeyValue())
	if err == nil {
		if len(val) == 8 {
			s.keyValue.Store(int64(binary.BigEndian.Uint64(val)))
		}
		closer.Close()
	} else if err != pebble.ErrNotFound {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put writes or replaces an entry and refreshes the cache.
func (s *Store) Put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal price entry: %w", err)
	}
	if err := s.db.Set(kEntry(e.SKU), data, pebble.Sync); err != nil {
		return fmt.Errorf("save price entry: %w", err)
	}
	s.cache.Add(e.SKU, e)
	return nil
}

// Delete removes an SKU from the list, making it untradeable.
func (s *Store) Delete(sku item.SKU) error {
	if err := s.db.Delete(kEntry(sku), pebble.Sync); err != nil {
		return err
	}
	s.cache.Remove(sku)
	return nil
}

// Price implements List. Storage errors are logged and reported as
// not-priced: an unreadable entry must never value an item.
func (s *Store) Price(sku item.SKU) (Entry, bool) {
	if e, ok := s.cache.Get(sku); ok {
		return e, true
	}
	val, closer, err := s.db.Get(kEntry(sku))
	if err == pebble.ErrNotFound {
		return Entry{}, false
	}
	if err != nil {
		s.log.Errorw("price_read_failed", "sku", sku, "err", err)
		return Entry{}, false
	}
	defer closer.Close()
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		s.log.Errorw("price_decode_failed", "sku", sku, "err", err)
		return Entry{}, false
	}
	s.cache.Add(sku, e)
	return e, true
}

// SetKeyValue persists the current worth of the top denomination.
func (s *Store) SetKeyValue(v economy.Value) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	if err := s.db.Set(kKeyValue(), buf, pebble.Sync); err != nil {
		return err
	}
	s.keyValue.Store(int64(v))
	return nil
}

// KeyValue implements List.
func (s *Store) KeyValue() economy.Value {
	return economy.Value(s.keyValue.Load())
}

var _ List = (*Store)(nil)
