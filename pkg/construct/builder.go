// Package construct turns a cart into a balanced, currency-settled,
// submittable offer. Every selected asset is reserved atomically before the
// offer is returned; any rejection path leaves the reservation set untouched.
package construct

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/cart"
	"github.com/viktorwb/scrapbot/pkg/economy"
	"github.com/viktorwb/scrapbot/pkg/inventory"
	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/offer"
	"github.com/viktorwb/scrapbot/pkg/pricedb"
	"github.com/viktorwb/scrapbot/pkg/reserve"
)

var errRaceLost = errors.New("construct: reservation race lost")

type Config struct {
	KeySKU       item.SKU
	RefinedSKU   item.SKU
	ReclaimedSKU item.SKU
	ScrapSKU     item.SKU
	// WeaponSKUs extend the denomination list below scrap when
	// WeaponsAsCurrency is on.
	WeaponsAsCurrency bool
	WeaponSKUs        []item.SKU

	// HighValueMultiple flags an item for dupe checking when its unit price
	// exceeds this many keys.
	HighValueMultiple int
	// MinUses rejects counterparty instances with fewer charges left,
	// substituting another instance of the same SKU when one exists.
	MinUses int
	// MaxRaceRetries bounds restarts after losing a reservation race.
	MaxRaceRetries int
}

type Builder struct {
	cfg    Config
	prices pricedb.List
	inv    *inventory.Manager
	res    *reserve.Set
	log    *zap.SugaredLogger
}

func NewBuilder(cfg Config, prices pricedb.List, inv *inventory.Manager, res *reserve.Set, log *zap.SugaredLogger) *Builder {
	if cfg.MaxRaceRetries <= 0 {
		cfg.MaxRaceRetries = 3
	}
	if cfg.HighValueMultiple <= 0 {
		cfg.HighValueMultiple = 15
	}
	return &Builder{cfg: cfg, prices: prices, inv: inv, res: res, log: log}
}

// Build constructs an offer from the cart. The returned offer carries a
// provisional ID ("local:<uuid>") under which its assets are reserved; the
// lifecycle manager re-keys the reservation once the remote service assigns
// the real ID. Rejections are *Rejection values.
func (b *Builder) Build(ctx context.Context, c *cart.Cart) (*offer.Offer, error) {
	var lastErr error
	for attempt := 0; attempt < b.cfg.MaxRaceRetries; attempt++ {
		o, err := b.build(ctx, c)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, errRaceLost) {
			return nil, err
		}
		lastErr = err
		b.log.Debugw("construct_race_lost", "counterparty", c.Counterparty(), "attempt", attempt+1)
	}
	return nil, &Rejection{Kind: KindRaceLost, Cause: lastErr}
}

func (b *Builder) build(ctx context.Context, c *cart.Cart) (*offer.Offer, error) {
	if c.IsEmpty() {
		return nil, &Rejection{Kind: KindEmptyCart}
	}

	details := offer.Details{
		Prices:          make(map[item.SKU]offer.PricePair),
		OurCurrencies:   make(map[item.SKU]int),
		TheirCurrencies: make(map[item.SKU]int),
	}
	denoms := b.denominations(c)
	keyValue := b.prices.KeyValue()

	// steps 1-2: our side against owned, unreserved instances and sell limits
	var toGive []item.Item
	var ourItemValue economy.Value
	for _, sku := range c.OurSKUs() {
		want := c.OurCount(sku)
		avail := b.res.Filter(b.inv.FindBySKU(sku, true))

		entry, ok := b.prices.Price(sku)
		if !ok || !entry.Intent.CanSell() {
			return nil, &Rejection{Kind: KindItemUnavailable, Side: SideOurs, SKU: sku}
		}
		limit := b.sellLimit(entry, sku)

		take := want
		if take > len(avail) {
			take = len(avail)
			details.Notes = append(details.Notes, fmt.Sprintf("I only have %d of %s", take, sku))
		}
		if take > limit {
			take = limit
			details.Notes = append(details.Notes, fmt.Sprintf("I can only sell %d more of %s", take, sku))
		}
		if take <= 0 {
			if limit <= 0 && len(avail) > 0 {
				return nil, &Rejection{Kind: KindLimitExceeded, Side: SideOurs, SKU: sku}
			}
			if len(c.OurSKUs())+len(c.TheirSKUs()) == 1 {
				return nil, &Rejection{Kind: KindEmptyCart}
			}
			// nothing left of this line; drop it and keep the rest
			details.Notes = append(details.Notes, fmt.Sprintf("I don't have any %s right now", sku))
			continue
		}

		details.Prices[sku] = offer.PricePair{Buy: entry.Buy, Sell: entry.Sell}
		for _, id := range avail[:take] {
			it, _ := b.inv.Get(id)
			toGive = append(toGive, it)
		}
		ourItemValue += economy.Value(take) * entry.Sell
	}

	// step 3: their side against a live inventory fetch, buy limits and
	// item-condition checks
	var theirInv []item.Item
	if len(c.TheirSKUs()) > 0 || len(toGive) > 0 {
		var err error
		theirInv, err = b.inv.FetchOther(ctx, c.Counterparty())
		if err != nil {
			return nil, &Rejection{Kind: KindInventoryFetch, Side: SideTheirs, Cause: err}
		}
	}
	theirBySKU := groupBySKU(theirInv)

	var toReceive []item.Item
	var theirItemValue economy.Value
	for _, sku := range c.TheirSKUs() {
		want := c.TheirCount(sku)

		entry, ok := b.prices.Price(sku)
		if !ok || !entry.Intent.CanBuy() {
			return nil, &Rejection{Kind: KindItemUnavailable, Side: SideTheirs, SKU: sku}
		}
		limit := b.buyLimit(entry, sku)

		// prefer instances that pass the condition checks; a worn-out
		// instance is substituted, not a reason to reject the SKU
		usable := make([]item.Item, 0, want)
		for _, it := range theirBySKU[sku] {
			if it.Tradable && it.Usable(b.cfg.MinUses) {
				usable = append(usable, it)
			}
		}

		take := want
		if take > len(usable) {
			take = len(usable)
			details.Notes = append(details.Notes, fmt.Sprintf("you only have %d usable %s", take, sku))
		}
		if take > limit {
			take = limit
			details.Notes = append(details.Notes, fmt.Sprintf("I can only buy %d more of %s", take, sku))
		}
		if take <= 0 {
			if limit <= 0 && len(usable) > 0 {
				return nil, &Rejection{Kind: KindLimitExceeded, Side: SideTheirs, SKU: sku}
			}
			if len(c.OurSKUs())+len(c.TheirSKUs()) == 1 {
				return nil, &Rejection{Kind: KindEmptyCart}
			}
			details.Notes = append(details.Notes, fmt.Sprintf("you don't have any usable %s right now", sku))
			continue
		}

		details.Prices[sku] = offer.PricePair{Buy: entry.Buy, Sell: entry.Sell}
		toReceive = append(toReceive, usable[:take]...)
		theirItemValue += economy.Value(take) * entry.Buy
	}

	// step 4: the lower-value side is the buyer and owes the difference in
	// currency
	details.OurValue = ourItemValue
	details.TheirValue = theirItemValue

	// step 5: allocate the difference from the buyer's currency holdings,
	// then exact change from the seller if the allocation overshot
	if diff := ourItemValue - theirItemValue; diff != 0 {
		weAreBuyer := diff < 0
		target := diff
		if target < 0 {
			target = -target
		}

		buyerSupply, buyerAssets := b.currencySupply(weAreBuyer, denoms, theirBySKU, toGive, toReceive)
		alloc := economy.Allocate(buyerSupply, target, denoms)
		if !alloc.Feasible() {
			side := SideTheirs
			if weAreBuyer {
				side = SideOurs
			}
			return nil, &Rejection{Kind: KindInsufficientFunds, Side: side, Amount: alloc.Short}
		}

		picked := pickAssets(alloc.Picked, denoms, buyerAssets)
		if weAreBuyer {
			addCurrency(&toGive, picked, details.OurCurrencies)
			details.OurValue += denoms.Total(alloc.Picked)
		} else {
			addCurrency(&toReceive, picked, details.TheirCurrencies)
			details.TheirValue += denoms.Total(alloc.Picked)
		}

		if alloc.Change > 0 {
			// same descending list as the payment: the trim pass already
			// returns the smallest coins that still make the amount
			sellerSupply, sellerAssets := b.currencySupply(!weAreBuyer, denoms, theirBySKU, toGive, toReceive)
			change := economy.Allocate(sellerSupply, alloc.Change, denoms)
			if !change.Exact() {
				side := SideOurs
				if weAreBuyer {
					side = SideTheirs
				}
				return nil, &Rejection{Kind: KindMissingChange, Side: side, Amount: alloc.Change}
			}
			changePicked := pickAssets(change.Picked, denoms, sellerAssets)
			if weAreBuyer {
				addCurrency(&toReceive, changePicked, details.TheirCurrencies)
				details.TheirValue += alloc.Change
			} else {
				addCurrency(&toGive, changePicked, details.OurCurrencies)
				details.OurValue += alloc.Change
			}
		}
	}

	// step 6: flag expensive incoming items for the deferred dupe check; the
	// verdict is consulted before submission, never here
	threshold := keyValue * economy.Value(b.cfg.HighValueMultiple)
	if threshold > 0 {
		for _, it := range toReceive {
			if denoms.Contains(it.SKU) {
				continue
			}
			if p, ok := details.Prices[it.SKU]; ok && p.Buy > threshold {
				details.DupeCandidates = append(details.DupeCandidates, it.AssetID)
				details.HighValue = true
			}
		}
		for _, it := range toGive {
			if denoms.Contains(it.SKU) {
				continue
			}
			if p, ok := details.Prices[it.SKU]; ok && p.Sell > threshold {
				details.HighValue = true
			}
		}
	}

	// step 7: atomically reserve everything we selected; losing the race
	// restarts construction against the updated reservation set
	o := &offer.Offer{
		ID:           offer.ID("local:" + uuid.NewString()),
		Counterparty: c.Counterparty(),
		ToGive:       toGive,
		ToReceive:    toReceive,
		State:        offer.StateCreated,
		CreatedAt:    time.Now(),
		Details:      details,
	}
	if len(o.ToGive) == 0 && len(o.ToReceive) == 0 {
		return nil, &Rejection{Kind: KindEmptyCart}
	}
	selected := o.GiveAssets()
	for _, it := range o.ToReceive {
		selected = append(selected, it.AssetID)
	}
	if blocked, ok := b.res.Reserve(o.ID, selected); !ok {
		b.log.Debugw("construct_reserve_conflict", "asset", blocked)
		return nil, errRaceLost
	}

	b.log.Infow("offer_constructed",
		"counterparty", o.Counterparty,
		"give", len(o.ToGive),
		"receive", len(o.ToReceive),
		"our_value", details.OurValue.Refined(),
		"their_value", details.TheirValue.Refined(),
		"high_value", details.HighValue)
	return o, nil
}

// denominations builds the working list, dropping the key when either cart
// side already trades keys outright.
func (b *Builder) denominations(c *cart.Cart) economy.List {
	var weapons []item.SKU
	if b.cfg.WeaponsAsCurrency {
		weapons = b.cfg.WeaponSKUs
	}
	denoms := economy.StandardList(b.cfg.KeySKU, b.prices.KeyValue(),
		b.cfg.RefinedSKU, b.cfg.ReclaimedSKU, b.cfg.ScrapSKU, weapons)
	if c.OurCount(b.cfg.KeySKU) > 0 || c.TheirCount(b.cfg.KeySKU) > 0 {
		denoms = denoms.Without(b.cfg.KeySKU)
	}
	return denoms
}

func (b *Builder) sellLimit(entry pricedb.Entry, sku item.SKU) int {
	holdings := b.inv.CountBySKU(sku)
	if entry.MinStock <= 0 {
		return holdings
	}
	return holdings - entry.MinStock
}

func (b *Builder) buyLimit(entry pricedb.Entry, sku item.SKU) int {
	if entry.MaxStock < 0 {
		return int(^uint(0) >> 1)
	}
	return entry.MaxStock - b.inv.CountBySKU(sku)
}

// currencySupply snapshots one side's spendable currency, excluding assets
// already selected for the offer. Returns counts per denomination and the
// concrete instances backing them, in deterministic order.
func (b *Builder) currencySupply(ours bool, denoms economy.List, theirBySKU map[item.SKU][]item.Item, toGive, toReceive []item.Item) (map[item.SKU]int, map[item.SKU][]item.Item) {
	used := make(map[item.AssetID]struct{}, len(toGive)+len(toReceive))
	for _, it := range toGive {
		used[it.AssetID] = struct{}{}
	}
	for _, it := range toReceive {
		used[it.AssetID] = struct{}{}
	}

	supply := make(map[item.SKU]int, len(denoms))
	assets := make(map[item.SKU][]item.Item, len(denoms))
	for _, d := range denoms {
		if ours {
			for _, id := range b.res.Filter(b.inv.FindBySKU(d.SKU, true)) {
				if _, taken := used[id]; taken {
					continue
				}
				it, _ := b.inv.Get(id)
				assets[d.SKU] = append(assets[d.SKU], it)
			}
		} else {
			for _, it := range theirBySKU[d.SKU] {
				if _, taken := used[it.AssetID]; taken {
					continue
				}
				if it.Tradable {
					assets[d.SKU] = append(assets[d.SKU], it)
				}
			}
		}
		supply[d.SKU] = len(assets[d.SKU])
	}
	return supply, assets
}

func pickAssets(picked map[item.SKU]int, denoms economy.List, assets map[item.SKU][]item.Item) []item.Item {
	var out []item.Item
	for _, d := range denoms {
		n := picked[d.SKU]
		if n > len(assets[d.SKU]) {
			n = len(assets[d.SKU])
		}
		out = append(out, assets[d.SKU][:n]...)
	}
	return out
}

func addCurrency(side *[]item.Item, picked []item.Item, counts map[item.SKU]int) {
	for _, it := range picked {
		*side = append(*side, it)
		counts[it.SKU]++
	}
}

func groupBySKU(items []item.Item) map[item.SKU][]item.Item {
	out := make(map[item.SKU][]item.Item)
	for _, it := range items {
		out[it.SKU] = append(out[it.SKU], it)
	}
	for sku := range out {
		list := out[sku]
		// deterministic instance order
		for i := 1; i < len(list); i++ {
			for j := i; j > 0 && list[j].AssetID < list[j-1].AssetID; j-- {
				list[j], list[j-1] = list[j-1], list[j]
			}
		}
	}
	return out
}
