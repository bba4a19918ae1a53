package construct

import (
	"fmt"

	"github.com/viktorwb/scrapbot/pkg/economy"
	"github.com/viktorwb/scrapbot/pkg/item"
)

type Kind int

const (
	KindEmptyCart Kind = iota
	KindItemUnavailable
	KindLimitExceeded
	KindInsufficientFunds
	KindMissingChange
	KindInventoryFetch
	KindRaceLost
)

type Side int

const (
	SideOurs Side = iota
	SideTheirs
)

func (s Side) String() string {
	if s == SideOurs {
		return "my side"
	}
	return "your side"
}

// Rejection is a hard construction failure. The message distinguishes which
// side caused it so the counterparty sees an actionable reason.
type Rejection struct {
	Kind   Kind
	Side   Side
	SKU    item.SKU
	Amount economy.Value
	Cause  error
}

func (r *Rejection) Error() string {
	switch r.Kind {
	case KindEmptyCart:
		return "construct: cart is empty"
	case KindItemUnavailable:
		return fmt.Sprintf("construct: %s is not available on %s", r.SKU, r.Side)
	case KindLimitExceeded:
		return fmt.Sprintf("construct: trading limit reached for %s on %s", r.SKU, r.Side)
	case KindInsufficientFunds:
		return fmt.Sprintf("construct: %s cannot cover %s in currency", r.Side, r.Amount.Refined())
	case KindMissingChange:
		return fmt.Sprintf("construct: %s cannot make %s in change", r.Side, r.Amount.Refined())
	case KindInventoryFetch:
		return fmt.Sprintf("construct: could not fetch inventory: %v", r.Cause)
	case KindRaceLost:
		return "construct: items were claimed by another offer, gave up retrying"
	default:
		return "construct: rejected"
	}
}

func (r *Rejection) Unwrap() error { return r.Cause }
