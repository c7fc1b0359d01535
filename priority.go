package tgrl

import "math/rand/v2"

// generatePriorityIterationOrder implements spec.md §4.5, the legacy
// single-bucket priority order: PriorityUser always drains first; whether
// PriorityHigh drains before or after PriorityMid/PriorityLow is a coin
// flip weighted by fairness, and independently so is the order of
// PriorityMid vs PriorityLow. It is retained, per spec.md §9, to support
// SingleQueueRateLimiter; the multi-tenant refill path (refill.go) always
// uses strict priority order and never calls this.
//
// fairness must be in [1, 100] (Options.EnsureDefaults clamps it there).
// Higher fairness means HIGH and MID are less likely to be reordered
// below lower priorities: the reordering probability is 1/fairness.
// Index 0 of the returned array is drained first (the most prioritized),
// index PriorityTotal-1 last — the same convention the original's
// ascending-index iteration loop uses.
func generatePriorityIterationOrder(fairness int, rng *rand.Rand) [PriorityTotal]Priority {
	var order [PriorityTotal]Priority
	order[0] = PriorityUser

	highAfterMidLow := oneIn(rng, fairness)
	midAfterLow := oneIn(rng, fairness)

	if highAfterMidLow {
		// HIGH drains last, i.e. below both MID and LOW.
		order[3] = PriorityHigh
		if midAfterLow {
			order[2] = PriorityMid
			order[1] = PriorityLow
		} else {
			order[2] = PriorityLow
			order[1] = PriorityMid
		}
	} else {
		// HIGH drains right after USER, above both MID and LOW.
		order[1] = PriorityHigh
		if midAfterLow {
			order[3] = PriorityMid
			order[2] = PriorityLow
		} else {
			order[3] = PriorityLow
			order[2] = PriorityMid
		}
	}
	return order
}

// oneIn reports true with probability 1/n (n >= 1).
func oneIn(rng *rand.Rand, n int) bool {
	if n <= 1 {
		return true
	}
	return rng.IntN(n) == 0
}
