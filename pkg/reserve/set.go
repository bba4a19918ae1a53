// Package reserve tracks which item instances are pledged to an in-flight
// offer. It is the only shared mutable state besides the lifecycle
// processing slot, so every mutation goes through one mutex.
package reserve

import (
	"sync"

	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/offer"
)

// Set is an injected, lock-guarded reservation service. An asset belongs to
// at most one holder at a time; Reserve and Release are idempotent for the
// same holder.
type Set struct {
	mu   sync.Mutex
	held map[item.AssetID]offer.ID
}

func NewSet() *Set {
	return &Set{held: make(map[item.AssetID]offer.ID)}
}

// Reserve pledges all assets to holder atomically. If any asset is already
// held by a different offer nothing is taken and the conflicting asset is
// returned. Re-reserving assets already held by the same offer is a no-op.
func (s *Set) Reserve(holder offer.ID, assets []item.AssetID) (item.AssetID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assets {
		if h, ok := s.held[a]; ok && h != holder {
			return a, false
		}
	}
	for _, a := range assets {
		s.held[a] = holder
	}
	return "", true
}

// Release drops the holder's claim on the given assets. Assets held by a
// different offer, or not held at all, are left alone.
func (s *Set) Release(holder offer.ID, assets []item.AssetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assets {
		if s.held[a] == holder {
			delete(s.held, a)
		}
	}
}

// ReleaseAll drops every claim the holder has.
func (s *Set) ReleaseAll(holder offer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for a, h := range s.held {
		if h == holder {
			delete(s.held, a)
		}
	}
}

// Rehold transfers every claim from one holder to another. Constructed
// offers are reserved under a provisional ID and re-keyed once the remote
// service assigns the real one.
func (s *Set) Rehold(old, new offer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for a, h := range s.held {
		if h == old {
			s.held[a] = new
		}
	}
}

// Held reports whether the asset is pledged to any offer.
func (s *Set) Held(a item.AssetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[a]
	return ok
}

// Holder returns the offer an asset is pledged to, if any.
func (s *Set) Holder(a item.AssetID) (offer.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.held[a]
	return h, ok
}

// Filter returns the subset of assets not currently reserved, preserving
// order. Inventory selection consults it to avoid double-pledging.
func (s *Set) Filter(assets []item.AssetID) []item.AssetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]item.AssetID, 0, len(assets))
	for _, a := range assets {
		if _, ok := s.held[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// Snapshot lists every reserved asset with its holder.
func (s *Set) Snapshot() map[item.AssetID]offer.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[item.AssetID]offer.ID, len(s.held))
	for a, h := range s.held {
		out[a] = h
	}
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}
