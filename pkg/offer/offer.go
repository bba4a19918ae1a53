// Package offer models a trade offer as the core tracks it: two item lists,
// a lifecycle state, and typed construction details instead of a loose
// key/value bag.
package offer

import (
	"time"

	"github.com/viktorwb/scrapbot/pkg/economy"
	"github.com/viktorwb/scrapbot/pkg/item"
)

type ID string

type State int

const (
	StateCreated State = iota
	StateActiveUnconfirmed
	StateActive
	StateAccepted
	StateDeclined
	StateCanceled
	StateInEscrow
	StateExpired
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActiveUnconfirmed:
		return "active_unconfirmed"
	case StateActive:
		return "active"
	case StateAccepted:
		return "accepted"
	case StateDeclined:
		return "declined"
	case StateCanceled:
		return "canceled"
	case StateInEscrow:
		return "in_escrow"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the offer can no longer change state.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateDeclined, StateCanceled, StateInEscrow, StateExpired:
		return true
	}
	return false
}

// PricePair is the buy/sell price a line was valued at when the offer was
// built. Kept on the offer so later handling never re-reads a moved price.
type PricePair struct {
	Buy  economy.Value `json:"buy"`
	Sell economy.Value `json:"sell"`
}

// Details is the constructor's bookkeeping, attached before submission and
// read back afterwards.
type Details struct {
	OurValue   economy.Value `json:"ourValue"`
	TheirValue economy.Value `json:"theirValue"`

	// Currency units included on each side, per denomination SKU.
	OurCurrencies   map[item.SKU]int `json:"ourCurrencies,omitempty"`
	TheirCurrencies map[item.SKU]int `json:"theirCurrencies,omitempty"`

	Prices map[item.SKU]PricePair `json:"prices,omitempty"`

	// DupeCandidates are asset IDs that must clear the dupe check before the
	// offer is acted on.
	DupeCandidates []item.AssetID `json:"dupeCandidates,omitempty"`
	HighValue      bool           `json:"highValue,omitempty"`

	// Notes are the user-facing "altered" notices: lines that were capped
	// rather than rejected.
	Notes []string `json:"notes,omitempty"`
}

type Offer struct {
	ID           ID          `json:"id"`
	Counterparty string      `json:"counterparty"`
	ToGive       []item.Item `json:"toGive"`
	ToReceive    []item.Item `json:"toReceive"`
	State        State       `json:"state"`
	CreatedAt    time.Time   `json:"createdAt"`
	Details      Details     `json:"details"`
}

// GiveAssets lists the asset IDs pledged on our side.
func (o *Offer) GiveAssets() []item.AssetID {
	out := make([]item.AssetID, 0, len(o.ToGive))
	for _, it := range o.ToGive {
		out = append(out, it.AssetID)
	}
	return out
}

// SameItems reports whether two offers move exactly the same asset sets in
// both directions. Reconciliation after an ambiguous send timeout uses it to
// recognize an offer that did reach the remote service.
func (o *Offer) SameItems(other *Offer) bool {
	return sameAssets(o.ToGive, other.ToGive) && sameAssets(o.ToReceive, other.ToReceive)
}

func sameAssets(a, b []item.Item) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[item.AssetID]int, len(a))
	for _, it := range a {
		seen[it.AssetID]++
	}
	for _, it := range b {
		seen[it.AssetID]--
		if seen[it.AssetID] < 0 {
			return false
		}
	}
	return true
}
