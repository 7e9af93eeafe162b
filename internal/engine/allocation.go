package engine

import (
	"maps"
	"slices"

	"flash-trader/internal/identity"
)

// Allocations maps a participant to its liquidity priority.
type Allocations map[identity.Pubkey]uint64

// Allocation is one row of Allocations.
type Allocation struct {
	Owner identity.Pubkey `json:"owner"`
	Value uint64          `json:"value"`
}

// AllocationForTier is the priority value granted to a tier.
func AllocationForTier(t Tier) uint64 {
	return uint64(t)
}

// Allocate returns a copy with owner's entry set from tier. Last write wins.
func (a Allocations) Allocate(owner identity.Pubkey, tier Tier) Allocations {
	next := make(Allocations, len(a)+1)
	maps.Copy(next, a)
	next[owner] = AllocationForTier(tier)
	return next
}

// Sorted lists entries by descending value, then by key.
func (a Allocations) Sorted() []Allocation {
	out := make([]Allocation, 0, len(a))
	for owner, value := range a {
		out = append(out, Allocation{Owner: owner, Value: value})
	}
	slices.SortFunc(out, func(x, y Allocation) int {
		if x.Value != y.Value {
			if x.Value > y.Value {
				return -1
			}
			return 1
		}
		return x.Owner.Compare(y.Owner)
	})
	return out
}
