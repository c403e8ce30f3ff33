package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
	"medcore/internal/core/types"
)

func testBatch(tc tenant.Context, number string, qty string, expiry *time.Time, received time.Time) *Batch {
	b := NewBatch(tc, id.New(), number)
	b.QuantityOnHand = types.MustQuantity(qty)
	b.ExpiryDate = expiry
	b.ReceivedAt = received
	b.UnitCost = types.MustMoney("1.50")
	return b
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSelect_FEFOConsumesSoonestExpiryOnly(t *testing.T) {
	tc := tenant.New(id.New(), "u")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	late := testBatch(tc, "B-LATE", "100", date(2027, 6, 1), now)
	soon := testBatch(tc, "B-SOON", "50", date(2026, 6, 1), now)

	plan, available := Select([]*Batch{late, soon}, types.MustQuantity("20"), now, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, soon.ID, plan[0].BatchID)
	assert.True(t, plan[0].Quantity.Equal(types.MustQuantity("20")))
	assert.True(t, available.Equal(types.MustQuantity("150")))
}

func TestSelect_SpillsIntoNextBatch(t *testing.T) {
	tc := tenant.New(id.New(), "u")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := testBatch(tc, "A", "10", date(2026, 3, 1), now)
	second := testBatch(tc, "B", "10", date(2026, 4, 1), now)
	noExpiry := testBatch(tc, "C", "10", nil, now.Add(-time.Hour))

	plan, _ := Select([]*Batch{noExpiry, second, first}, types.MustQuantity("25"), now, nil)

	require.Len(t, plan, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{plan[0].BatchNumber, plan[1].BatchNumber, plan[2].BatchNumber})
	assert.True(t, plan[2].Quantity.Equal(types.MustQuantity("5")))
}

func TestSelect_SkipsExpiredAndEmpty(t *testing.T) {
	tc := tenant.New(id.New(), "u")
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

	expired := testBatch(tc, "OLD", "10", date(2026, 5, 9), now)
	today := testBatch(tc, "TODAY", "10", date(2026, 5, 10), now)
	empty := testBatch(tc, "EMPTY", "0", date(2026, 5, 1), now)

	plan, available := Select([]*Batch{expired, today, empty}, types.MustQuantity("5"), now, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, "TODAY", plan[0].BatchNumber)
	assert.True(t, available.Equal(types.MustQuantity("10")))
}

func TestSelect_PinnedBatch(t *testing.T) {
	tc := tenant.New(id.New(), "u")
	now := time.Now()

	soon := testBatch(tc, "SOON", "10", date(2030, 1, 1), now)
	pinned := testBatch(tc, "PINNED", "4", date(2031, 1, 1), now)

	plan, available := Select([]*Batch{soon, pinned}, types.MustQuantity("6"), now, &pinned.ID)

	assert.True(t, available.Equal(types.MustQuantity("4")))
	require.Len(t, plan, 1)
	assert.Equal(t, pinned.ID, plan[0].BatchID)
}

func TestSortFEFO_TieBreaks(t *testing.T) {
	tc := tenant.New(id.New(), "u")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := date(2027, 1, 1)

	b2 := testBatch(tc, "B2", "1", exp, t0)
	b1 := testBatch(tc, "B1", "1", exp, t0)
	earlier := testBatch(tc, "Z9", "1", exp, t0.Add(-time.Hour))

	list := []*Batch{b2, b1, earlier}
	SortFEFO(list)

	assert.Equal(t, []string{"Z9", "B1", "B2"}, []string{list[0].BatchNumber, list[1].BatchNumber, list[2].BatchNumber})
}

func TestBatch_TakeNeverGoesNegative(t *testing.T) {
	b := testBatch(tenant.New(id.New(), "u"), "X", "3", nil, time.Now())

	err := b.Take(types.MustQuantity("4"))
	require.Error(t, err)
	assert.True(t, b.QuantityOnHand.Equal(types.MustQuantity("3")))

	require.NoError(t, b.Take(types.MustQuantity("3")))
	assert.True(t, b.QuantityOnHand.IsZero())
}
