package economy

import (
	"fmt"

	"github.com/viktorwb/scrapbot/pkg/item"
)

// Value is an amount in base units. One base unit is half a scrap, the
// smallest increment the economy can express (a single weapon).
type Value int64

const (
	// Base-unit worth of the fixed metal denominations.
	WeaponWorth    Value = 1
	ScrapWorth     Value = 2
	ReclaimedWorth Value = 6
	RefinedWorth   Value = 18
)

// Denomination is an SKU designated as currency, with its fixed worth in
// base units.
type Denomination struct {
	SKU   item.SKU
	Worth Value
}

// List is an ordered set of denominations, highest worth first. Order is
// load-bearing: the allocator walks it top-down and ties between equal-worth
// denominations resolve by position in the list.
type List []Denomination

// Total is the combined worth of a picked count per denomination.
func (l List) Total(picked map[item.SKU]int) Value {
	var sum Value
	for _, d := range l {
		sum += Value(picked[d.SKU]) * d.Worth
	}
	return sum
}

// Without returns a copy of the list with the given SKU removed.
func (l List) Without(sku item.SKU) List {
	out := make(List, 0, len(l))
	for _, d := range l {
		if d.SKU != sku {
			out = append(out, d)
		}
	}
	return out
}

// Contains reports whether sku is one of the list's denominations.
func (l List) Contains(sku item.SKU) bool {
	for _, d := range l {
		if d.SKU == sku {
			return true
		}
	}
	return false
}

// StandardList builds the working denomination list: the key at its current
// price-list worth, the three metals, and optionally the configured weapon
// SKUs at one base unit each. One list, one allocator; the weapons mode is
// nothing more than extra entries at the bottom.
func StandardList(keySKU item.SKU, keyWorth Value, refined, reclaimed, scrap item.SKU, weapons []item.SKU) List {
	l := List{
		{SKU: keySKU, Worth: keyWorth},
		{SKU: refined, Worth: RefinedWorth},
		{SKU: reclaimed, Worth: ReclaimedWorth},
		{SKU: scrap, Worth: ScrapWorth},
	}
	for _, w := range weapons {
		l = append(l, Denomination{SKU: w, Worth: WeaponWorth})
	}
	return l
}

// Refined renders v as refined metal, e.g. "2.33 ref".
func (v Value) Refined() string {
	whole := int64(v) / int64(RefinedWorth)
	rem := int64(v) % int64(RefinedWorth)
	neg := ""
	if rem < 0 {
		rem = -rem
		if whole == 0 {
			neg = "-"
		}
	}
	// scrap hundredths, the conventional rendering (9 scrap = 0.99)
	cents := (rem / 2) * 11
	if rem%2 == 1 {
		cents += 5
	}
	return fmt.Sprintf("%s%d.%02d ref", neg, whole, cents)
}

// Format renders v in keys and refined, e.g. "2 keys, 10 ref". keyWorth of
// zero renders plain refined.
func (v Value) Format(keyWorth Value) string {
	if keyWorth <= 0 || v < keyWorth {
		return v.Refined()
	}
	keys := int64(v / keyWorth)
	rest := v % keyWorth
	unit := "keys"
	if keys == 1 {
		unit = "key"
	}
	if rest == 0 {
		return fmt.Sprintf("%d %s", keys, unit)
	}
	return fmt.Sprintf("%d %s, %s", keys, unit, rest.Refined())
}
