// Package storage persists completed trades. The pipeline itself has no
// on-disk format; this is the agent's own record of terminal offers, served
// back through the status API.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/viktorwb/scrapbot/pkg/economy"
	"github.com/viktorwb/scrapbot/pkg/offer"
)

// TradeRecord is the durable summary of one offer that reached a terminal
// state.
type TradeRecord struct {
	OfferID      offer.ID      `json:"offerId"`
	Counterparty string        `json:"counterparty"`
	State        string        `json:"state"`
	OurValue     economy.Value `json:"ourValue"`
	TheirValue   economy.Value `json:"theirValue"`
	HighValue    bool          `json:"highValue,omitempty"`
	Notes        []string      `json:"notes,omitempty"`
	ClosedAt     time.Time     `json:"closedAt"`
}

type TradeStore struct {
	db *pebble.DB
}

// keys: t:<offer-id>
func kTrade(id offer.ID) []byte { return append([]byte("t:"), id...) }

func Open(path string) (*TradeStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &TradeStore{db: db}, nil
}

func (s *TradeStore) Close() error { return s.db.Close() }

func (s *TradeStore) Save(rec TradeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trade record: %w", err)
	}
	if err := s.db.Set(kTrade(rec.OfferID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save trade record: %w", err)
	}
	return nil
}

func (s *TradeStore) Get(id offer.ID) (TradeRecord, bool, error) {
	val, closer, err := s.db.Get(kTrade(id))
	if err == pebble.ErrNotFound {
		return TradeRecord{}, false, nil
	}
	if err != nil {
		return TradeRecord{}, false, err
	}
	defer closer.Close()
	var rec TradeRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return TradeRecord{}, false, err
	}
	return rec, true, nil
}

// List returns up to limit records, most recently closed first. limit <= 0
// returns everything.
func (s *TradeStore) List(limit int) ([]TradeRecord, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("t:"),
		UpperBound: []byte("t;"), // ';' is ':'+1
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []TradeRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec TradeRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.After(out[j].ClosedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
