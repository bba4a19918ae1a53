// Package inventory tracks the agent's own items between refreshes and
// fetches counterparty inventories through the injected source.
package inventory

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/remote"
)

// Manager mirrors the most recent successful fetch of the owner's
// inventory. FindBySKU answers from that mirror; callers treat results as a
// snapshot and re-check at commit time.
type Manager struct {
	source remote.InventorySource
	owner  string
	log    *zap.SugaredLogger

	mu    sync.RWMutex
	items map[item.AssetID]item.Item
	bySKU map[item.SKU][]item.AssetID

	group singleflight.Group
}

func NewManager(source remote.InventorySource, owner string, log *zap.SugaredLogger) *Manager {
	return &Manager{
		source: source,
		owner:  owner,
		log:    log,
		items:  make(map[item.AssetID]item.Item),
		bySKU:  make(map[item.SKU][]item.AssetID),
	}
}

// Refresh re-fetches the owner's inventory. Concurrent callers share one
// in-flight fetch.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		items, err := m.source.Fetch(ctx, m.owner)
		if err != nil {
			return nil, err
		}
		m.replace(items)
		m.log.Debugw("inventory_refreshed", "items", len(items))
		return nil, nil
	})
	return err
}

func (m *Manager) replace(items []item.Item) {
	byID := make(map[item.AssetID]item.Item, len(items))
	bySKU := make(map[item.SKU][]item.AssetID)
	for _, it := range items {
		byID[it.AssetID] = it
		bySKU[it.SKU] = append(bySKU[it.SKU], it.AssetID)
	}
	for sku := range bySKU {
		item.SortAssets(bySKU[sku])
	}
	m.mu.Lock()
	m.items = byID
	m.bySKU = bySKU
	m.mu.Unlock()
}

// FindBySKU lists owned instances of an SKU from the last successful fetch.
func (m *Manager) FindBySKU(sku item.SKU, tradableOnly bool) []item.AssetID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.bySKU[sku]
	out := make([]item.AssetID, 0, len(ids))
	for _, id := range ids {
		if tradableOnly && !m.items[id].Tradable {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (m *Manager) Get(id item.AssetID) (item.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	return it, ok
}

func (m *Manager) CountBySKU(sku item.SKU) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySKU[sku])
}

// RemoveAssets drops items consumed by an accepted trade from local
// tracking without waiting for the next refresh.
func (m *Manager) RemoveAssets(ids []item.AssetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		it, ok := m.items[id]
		if !ok {
			continue
		}
		delete(m.items, id)
		list := m.bySKU[it.SKU]
		for i, other := range list {
			if other == id {
				m.bySKU[it.SKU] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(m.bySKU[it.SKU]) == 0 {
			delete(m.bySKU, it.SKU)
		}
	}
}

// FetchOther fetches a counterparty's live inventory. No local mirror is
// kept; counterparty snapshots are only valid for the construction that
// requested them.
func (m *Manager) FetchOther(ctx context.Context, ownerID string) ([]item.Item, error) {
	return m.source.Fetch(ctx, ownerID)
}

func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
