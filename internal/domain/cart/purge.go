package cart

import (
	"context"
	"slices"
)

// PurgeReason tags why lines were removed from a cart.
type PurgeReason string

const (
	PurgeClosed   PurgeReason = "closed"
	PurgeStock    PurgeReason = "stock"
	PurgeInactive PurgeReason = "inactive"
)

// PurgeResult reports what PurgeUnavailable removed.
type PurgeResult struct {
	Removed int
	// Reasons is sorted and holds each reason once.
	Reasons []PurgeReason
}

// Has reports whether r is among the reasons.
func (p PurgeResult) Has(r PurgeReason) bool {
	return slices.Contains(p.Reasons, r)
}

func (p *PurgeResult) add(r PurgeReason) {
	p.Removed++
	if !p.Has(r) {
		p.Reasons = append(p.Reasons, r)
		slices.Sort(p.Reasons)
	}
}

// PurgeUnavailable drops lines that can no longer be bought. When the
// ordering window is closed the whole cart is cleared.
func (c *Cart) PurgeUnavailable(ctx context.Context, open bool) (PurgeResult, error) {
	var res PurgeResult
	if !open {
		if n := len(c.state.Lines); n > 0 {
			c.Clear()
			res.Removed = n
			res.Reasons = []PurgeReason{PurgeClosed}
		}
		return res, nil
	}

	items, err := c.items(ctx)
	if err != nil {
		return res, err
	}
	kept := c.state.Lines[:0]
	for _, l := range c.state.Lines {
		item, ok := items[l.ItemID]
		if !ok || !item.Active {
			res.add(PurgeInactive)
			continue
		}
		v, ok := item.Variant(l.Variant)
		if !ok || !v.Active {
			res.add(PurgeInactive)
			continue
		}
		if v.Stock < l.Quantity || (item.Stock != nil && *item.Stock < l.Quantity) {
			res.add(PurgeStock)
			continue
		}
		kept = append(kept, l)
	}
	c.state.Lines = kept
	return res, nil
}
