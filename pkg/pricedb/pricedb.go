// Package pricedb stores the price list the agent values items against.
// Lookup policy (where prices come from, when they move) belongs to the
// pricing subsystem; this package only persists and serves entries.
package pricedb

import (
	"github.com/viktorwb/scrapbot/pkg/economy"
	"github.com/viktorwb/scrapbot/pkg/item"
)

// Intent restricts which direction an SKU may trade in.
type Intent int

const (
	IntentBank Intent = iota // both directions
	IntentBuy
	IntentSell
)

func (i Intent) CanBuy() bool  { return i == IntentBank || i == IntentBuy }
func (i Intent) CanSell() bool { return i == IntentBank || i == IntentSell }

// Entry is the per-SKU pricing record. MaxStock of -1 means unlimited.
type Entry struct {
	SKU      item.SKU      `json:"sku"`
	Buy      economy.Value `json:"buy"`
	Sell     economy.Value `json:"sell"`
	Intent   Intent        `json:"intent"`
	MinStock int           `json:"minStock"`
	MaxStock int           `json:"maxStock"`
}

// List is the read contract the pipeline consumes. A missing entry means the
// SKU is not tradeable at all.
type List interface {
	Price(sku item.SKU) (Entry, bool)
	// KeyValue is the current worth of the top denomination in base units.
	KeyValue() economy.Value
}
