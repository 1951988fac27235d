package inventory

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"idlerealm/internal/catalog"
)

var ErrInsufficient = errors.New("insufficient items")

// Inventory is the shared item store. Counts are never negative; zero
// entries are dropped.
type Inventory map[catalog.ItemID]int

// Delta is a signed change to an Inventory.
type Delta map[catalog.ItemID]int

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for k, v := range inv {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func (inv Inventory) Count(id catalog.ItemID) int {
	return inv[id]
}

// Has checks if inventory contains at least the specified amount
func (inv Inventory) Has(id catalog.ItemID, amount int) bool {
	return inv[id] >= amount
}

// Add mutates inv in place. Non-positive amounts are ignored.
func (inv Inventory) Add(id catalog.ItemID, amount int) {
	if amount <= 0 {
		return
	}
	inv[id] += amount
}

// Spend removes items in place and reports whether the full amount was there.
func (inv Inventory) Spend(id catalog.ItemID, amount int) bool {
	if amount <= 0 {
		return true
	}
	if inv[id] < amount {
		return false
	}
	inv[id] -= amount
	if inv[id] == 0 {
		delete(inv, id)
	}
	return true
}

// Affordable returns how many times costs can be paid in full.
// An empty cost list is affordable without bound (math.MaxInt).
func (inv Inventory) Affordable(costs []catalog.ItemAmount) int {
	n := math.MaxInt
	for _, c := range costs {
		if c.Amount <= 0 {
			continue
		}
		if k := inv[c.Item] / c.Amount; k < n {
			n = k
		}
	}
	return n
}

// Apply returns a new inventory with delta applied, or ErrInsufficient if any
// count would drop below zero. inv is never modified.
func (inv Inventory) Apply(d Delta) (Inventory, error) {
	for id, n := range d {
		if inv[id]+n < 0 {
			return inv, fmt.Errorf("%w: %s has %d, delta %d", ErrInsufficient, id, inv[id], n)
		}
	}
	return inv.ApplyClamped(d), nil
}

// ApplyClamped returns a new inventory with delta applied, clamping at zero.
func (inv Inventory) ApplyClamped(d Delta) Inventory {
	out := inv.Clone()
	for id, n := range d {
		v := out[id] + n
		if v <= 0 {
			delete(out, id)
			continue
		}
		out[id] = v
	}
	return out
}

// IDs returns item ids in stable order.
func (inv Inventory) IDs() []catalog.ItemID {
	ids := make([]catalog.ItemID, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d Delta) Add(id catalog.ItemID, n int) {
	if n == 0 {
		return
	}
	d[id] += n
	if d[id] == 0 {
		delete(d, id)
	}
}

// Merge adds o into d in place.
func (d Delta) Merge(o Delta) {
	for id, n := range o {
		d.Add(id, n)
	}
}

func (d Delta) Clone() Delta {
	out := make(Delta, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Gains returns only the positive entries.
func (d Delta) Gains() Delta {
	out := Delta{}
	for id, n := range d {
		if n > 0 {
			out[id] = n
		}
	}
	return out
}

// Diff returns after - before.
func Diff(before, after Inventory) Delta {
	d := Delta{}
	for id, n := range after {
		d.Add(id, n-before[id])
	}
	for id, n := range before {
		if _, ok := after[id]; !ok {
			d.Add(id, -n)
		}
	}
	return d
}
