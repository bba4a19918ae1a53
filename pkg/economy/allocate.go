package economy

import "github.com/viktorwb/scrapbot/pkg/item"

// Allocation is the outcome of picking currency units against a target value.
type Allocation struct {
	// Picked counts per denomination SKU. Never exceeds the supply snapshot
	// handed to Allocate.
	Picked map[item.SKU]int
	// Change is value owed back in the opposite direction: the picked total
	// overshot the target by this much. Zero when the target was met exactly.
	Change Value
	// Short is the unmet remainder when supply could not cover the target.
	// Positive Short means the allocation is infeasible.
	Short Value
}

// Feasible reports whether the supply covered the target (possibly with
// change owed back).
func (a Allocation) Feasible() bool { return a.Short == 0 }

// Exact reports a perfect match: no change, nothing short.
func (a Allocation) Exact() bool { return a.Short == 0 && a.Change == 0 }

// Allocate picks currency units from available supply to realize target.
//
// Three passes over denoms (which must be ordered highest worth first):
//
//  1. Descending floor pass: take floor(remaining/worth) of each
//     denomination, capped by supply.
//  2. Ascending ceil pass: if the bottom is reached with value still owed,
//     walk back up taking ceil(remaining/worth), since a pure descending
//     greedy under-shoots when large denominations run out. Reaching the top
//     still short means the target is infeasible.
//  3. Trim pass: when the ceil pass overshot, drop previously picked units
//     smallest worth first while doing so does not push the total back under
//     target. Whatever overshoot survives trimming is returned as Change.
//
// Ties between denominations of equal worth resolve by list position: the
// floor pass fills earlier entries first and the trim pass drains later
// entries first. With a fixed list the result is fully deterministic.
//
// The supply map is a snapshot, not a promise; callers re-validate against
// live inventory when turning counts into concrete assets.
func Allocate(available map[item.SKU]int, target Value, denoms List) Allocation {
	picked := make(map[item.SKU]int, len(denoms))
	remaining := target

	// pass 1: descending floor
	for _, d := range denoms {
		if remaining <= 0 || d.Worth <= 0 {
			continue
		}
		take := int(remaining / d.Worth)
		if sup := available[d.SKU]; take > sup {
			take = sup
		}
		if take > 0 {
			picked[d.SKU] += take
			remaining -= Value(take) * d.Worth
		}
	}

	// pass 2: ascending ceil
	if remaining > 0 {
		for i := len(denoms) - 1; i >= 0 && remaining > 0; i-- {
			d := denoms[i]
			if d.Worth <= 0 {
				continue
			}
			left := available[d.SKU] - picked[d.SKU]
			if left <= 0 {
				continue
			}
			take := int((remaining + d.Worth - 1) / d.Worth)
			if take > left {
				take = left
			}
			picked[d.SKU] += take
			remaining -= Value(take) * d.Worth
		}
	}

	if remaining > 0 {
		return Allocation{Picked: picked, Short: remaining}
	}

	// pass 3: trim overshoot, smallest worth first
	if remaining < 0 {
		for i := len(denoms) - 1; i >= 0 && remaining < 0; i-- {
			d := denoms[i]
			for picked[d.SKU] > 0 && remaining+d.Worth <= 0 {
				picked[d.SKU]--
				remaining += d.Worth
			}
			if picked[d.SKU] == 0 {
				delete(picked, d.SKU)
			}
		}
	}

	return Allocation{Picked: picked, Change: -remaining}
}
