package session

import "product-insights-go/internal/types"

// tally is the per-product action counter. Not safe for concurrent use; the
// session lock guards it.
type tally struct {
	counts map[int]types.ActionCounts
}

func newTally() *tally {
	return &tally{counts: make(map[int]types.ActionCounts)}
}

func (t *tally) record(productID int, a types.Action) types.ActionCounts {
	c := t.counts[productID].Apply(a)
	t.counts[productID] = c
	return c
}

func (t *tally) get(productID int) types.ActionCounts {
	return t.counts[productID]
}

func (t *tally) snapshot() map[int]types.ActionCounts {
	out := make(map[int]types.ActionCounts, len(t.counts))
	for id, c := range t.counts {
		out[id] = c
	}
	return out
}

func (t *tally) reset() {
	t.counts = make(map[int]types.ActionCounts)
}
