package batch

import (
	"sort"
	"time"

	"medcore/internal/core/id"
	"medcore/internal/core/types"
)

// SortFEFO orders batches soonest-expiring first. Batches without an expiry
// go last; ties break on receipt time, then batch number.
func SortFEFO(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate != nil:
			if !a.ExpiryDate.Equal(*b.ExpiryDate) {
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		case a.ExpiryDate != nil:
			return true
		case b.ExpiryDate != nil:
			return false
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.BatchNumber < b.BatchNumber
	})
}

// Select plans an allocation of qty over batches.
// With pinned set only that batch is considered; otherwise FEFO order is used
// and batches expired before asOf are skipped.
// It returns the plan and the total quantity that was eligible.
// The plan is incomplete when available < qty; batches are not mutated.
func Select(batches []*Batch, qty types.Quantity, asOf time.Time, pinned *id.ID) (plan []Allocation, available types.Quantity) {
	eligible := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if !b.QuantityOnHand.IsPositive() {
			continue
		}
		if pinned != nil {
			if b.ID == *pinned {
				eligible = append(eligible, b)
			}
			continue
		}
		if b.ExpiredAt(asOf) {
			continue
		}
		eligible = append(eligible, b)
	}
	SortFEFO(eligible)

	available = types.Zero()
	remaining := qty
	for _, b := range eligible {
		available = available.Add(b.QuantityOnHand)
		if !remaining.IsPositive() {
			continue
		}
		take := remaining
		if b.QuantityOnHand.LessThan(take) {
			take = b.QuantityOnHand
		}
		plan = append(plan, Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			UnitCost:    b.UnitCost,
		})
		remaining = remaining.Sub(take)
	}
	return plan, available
}
