// Package cart accumulates the desired lines of a trade with one
// counterparty. It never touches the network or the price list; quantities
// are re-synchronized against live inventory at construction time.
package cart

import (
	"github.com/viktorwb/scrapbot/pkg/item"
)

// RemoveAll removes every unit of an SKU regardless of current quantity.
const RemoveAll = -1

type Cart struct {
	counterparty string
	our          map[item.SKU]int
	their        map[item.SKU]int
}

func New(counterparty string) *Cart {
	return &Cart{
		counterparty: counterparty,
		our:          make(map[item.SKU]int),
		their:        make(map[item.SKU]int),
	}
}

func (c *Cart) Counterparty() string { return c.counterparty }

func (c *Cart) AddOur(sku item.SKU, amount int)   { add(c.our, sku, amount) }
func (c *Cart) AddTheir(sku item.SKU, amount int) { add(c.their, sku, amount) }

// RemoveOur lowers a line by amount; RemoveAll (or any amount at or above the
// line) deletes it. SKUs never sit in the cart at quantity zero.
func (c *Cart) RemoveOur(sku item.SKU, amount int)   { remove(c.our, sku, amount) }
func (c *Cart) RemoveTheir(sku item.SKU, amount int) { remove(c.their, sku, amount) }

func (c *Cart) OurCount(sku item.SKU) int   { return c.our[sku] }
func (c *Cart) TheirCount(sku item.SKU) int { return c.their[sku] }

// SetOur overwrites a line, used when construction caps a quantity.
func (c *Cart) SetOur(sku item.SKU, amount int) {
	delete(c.our, sku)
	add(c.our, sku, amount)
}

func (c *Cart) SetTheir(sku item.SKU, amount int) {
	delete(c.their, sku)
	add(c.their, sku, amount)
}

func (c *Cart) IsEmpty() bool { return len(c.our) == 0 && len(c.their) == 0 }

// OurSKUs returns our-side SKUs in sorted order for deterministic iteration.
func (c *Cart) OurSKUs() []item.SKU   { return keys(c.our) }
func (c *Cart) TheirSKUs() []item.SKU { return keys(c.their) }

func add(m map[item.SKU]int, sku item.SKU, amount int) {
	if amount <= 0 {
		return
	}
	m[sku] += amount
}

func remove(m map[item.SKU]int, sku item.SKU, amount int) {
	if amount == 0 {
		return
	}
	if amount == RemoveAll || amount >= m[sku] {
		delete(m, sku)
		return
	}
	m[sku] -= amount
}

func keys(m map[item.SKU]int) []item.SKU {
	out := make([]item.SKU, 0, len(m))
	for sku := range m {
		out = append(out, sku)
	}
	item.SortSKUs(out)
	return out
}
