package item

import "sort"

// SKU groups fungible items: same SKU, same price.
type SKU string

// AssetID identifies one concrete item instance for the current session.
type AssetID string

// Item is one instance held in somebody's inventory. Attribute fields are
// only consulted by policy checks; value always comes from the price list.
type Item struct {
	AssetID  AssetID `json:"assetId"`
	SKU      SKU     `json:"sku"`
	Tradable bool    `json:"tradable"`

	// UsesLeft is -1 when the item has no use counter.
	UsesLeft int  `json:"usesLeft"`
	Painted  bool `json:"painted,omitempty"`
	Tracking bool `json:"tracking,omitempty"`
}

// Usable reports whether the item still has at least minUses charges.
// Items without a counter always pass.
func (it Item) Usable(minUses int) bool {
	return it.UsesLeft < 0 || it.UsesLeft >= minUses
}

// SortAssets orders asset IDs lexicographically. Selection paths sort before
// picking so identical snapshots yield identical offers.
func SortAssets(ids []AssetID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// SortSKUs gives a stable iteration order over map keys.
func SortSKUs(skus []SKU) {
	sort.Slice(skus, func(i, j int) bool { return skus[i] < skus[j] })
}
