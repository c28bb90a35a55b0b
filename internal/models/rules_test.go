package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	mid   = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func ptrInt(v int) *int { return &v }

func newCoupon() *Coupon {
	return &Coupon{
		Code:              "BANGLE10",
		DiscountType:      DiscountPercentage,
		DiscountValue:     dec("10"),
		UsageLimitPerUser: 1,
		StartDate:         start,
		EndDate:           end,
		IsActive:          true,
	}
}

func TestIsCurrentlyValid_DateWindowInclusive(t *testing.T) {
	c := newCoupon()

	assert.True(t, c.IsCurrentlyValid(start))
	assert.True(t, c.IsCurrentlyValid(end))
	assert.False(t, c.IsCurrentlyValid(end.Add(time.Millisecond)))
	assert.False(t, c.IsCurrentlyValid(start.Add(-time.Millisecond)))
}

func TestIsCurrentlyValid_Inactive(t *testing.T) {
	c := newCoupon()
	c.IsActive = false

	assert.False(t, c.IsCurrentlyValid(mid))
}

func TestIsCurrentlyValid_GlobalExhaustion(t *testing.T) {
	c := newCoupon()
	c.UsageLimit = ptrInt(10)
	c.CurrentUsage = 10

	assert.False(t, c.IsCurrentlyValid(mid))

	c.CurrentUsage = 9
	assert.True(t, c.IsCurrentlyValid(mid))
}

func TestCanBeUsedBy_MinimumBoundary(t *testing.T) {
	c := newCoupon()
	c.MinimumOrderAmount = dec("100")

	ok, err := c.CanBeUsedBy("user-a", dec("100"), mid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CanBeUsedBy("user-a", dec("99.99"), mid)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanBeUsedBy_MaximumBoundary(t *testing.T) {
	c := newCoupon()
	c.MaximumOrderAmount = ptrDec("500")

	ok, err := c.CanBeUsedBy("user-a", dec("500"), mid)
	require.NoError(t, err)
	assert.True(t, ok)

	reason, err := c.Ineligibility("user-a", dec("500.01"), mid)
	require.NoError(t, err)
	assert.Equal(t, ReasonAboveMaximum, reason)
}

func TestCanBeUsedBy_ZeroSubtotalWithZeroMinimum(t *testing.T) {
	c := newCoupon()

	ok, err := c.CanBeUsedBy("user-a", decimal.Zero, mid)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanBeUsedBy_NegativeSubtotalIsValidationError(t *testing.T) {
	c := newCoupon()

	ok, err := c.CanBeUsedBy("user-a", dec("-1"), mid)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCanBeUsedBy_PerUserExhaustion(t *testing.T) {
	c := newCoupon()
	c.UsedBy = []Redemption{{User: "user-a", Order: "order-1", UsedAt: mid, DiscountAmount: dec("5")}}
	c.CurrentUsage = 1

	ok, err := c.CanBeUsedBy("user-a", dec("50"), mid)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.CanBeUsedBy("user-b", dec("50"), mid)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanBeUsedBy_AllowList(t *testing.T) {
	c := newCoupon()
	c.ApplicableUsers = []string{"vip-1"}

	reason, err := c.Ineligibility("someone", dec("10"), mid)
	require.NoError(t, err)
	assert.Equal(t, ReasonUserNotAllowed, reason)

	reason, err = c.Ineligibility("vip-1", dec("10"), mid)
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, reason)
}

func TestIneligibility_ReasonOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Coupon)
		now    time.Time
		want   Reason
	}{
		{"inactive", func(c *Coupon) { c.IsActive = false }, mid, ReasonInactive},
		{"not started", func(c *Coupon) {}, start.Add(-time.Hour), ReasonNotStarted},
		{"expired", func(c *Coupon) {}, end.Add(time.Second), ReasonExpired},
		{"exhausted", func(c *Coupon) { c.UsageLimit = ptrInt(0) }, mid, ReasonUsageExhausted},
		{"below minimum", func(c *Coupon) { c.MinimumOrderAmount = dec("1000") }, mid, ReasonBelowMinimum},
		{"eligible", func(c *Coupon) {}, mid, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoupon()
			tt.mutate(c)
			got, err := c.Ineligibility("user-a", dec("100"), tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name     string
		typ      DiscountType
		value    string
		max      *decimal.Decimal
		subtotal string
		want     string
	}{
		{"percentage capped", DiscountPercentage, "50", ptrDec("20"), "100", "20"},
		{"percentage uncapped", DiscountPercentage, "50", nil, "100", "50"},
		{"fixed clamped to subtotal", DiscountFixed, "500", nil, "50", "50"},
		{"fixed below subtotal", DiscountFixed, "15", nil, "50", "15"},
		{"rounded once at the end", DiscountPercentage, "33.333", nil, "10.01", "3.34"},
		{"zero subtotal", DiscountPercentage, "10", nil, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoupon()
			c.DiscountType = tt.typ
			c.DiscountValue = dec(tt.value)
			c.MaxDiscount = tt.max

			got := c.CalculateDiscount(dec(tt.subtotal))
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestRedeem_IdempotentPerOrder(t *testing.T) {
	c := newCoupon()
	c.UsageLimit = ptrInt(5)

	assert.True(t, c.Redeem("user-a", "order-1", dec("10"), mid))
	assert.False(t, c.Redeem("user-a", "order-1", dec("10"), mid.Add(time.Minute)))

	assert.Len(t, c.UsedBy, 1)
	assert.Equal(t, 1, c.CurrentUsage)
	assert.Equal(t, mid, c.UsedBy[0].UsedAt)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Coupon)
		wantErr bool
	}{
		{"valid", func(c *Coupon) {}, false},
		{"percentage over 100", func(c *Coupon) { c.DiscountValue = dec("100.01") }, true},
		{"percentage exactly 100", func(c *Coupon) { c.DiscountValue = dec("100") }, false},
		{"fixed over 100 is fine", func(c *Coupon) { c.DiscountType = DiscountFixed; c.DiscountValue = dec("250") }, false},
		{"end equals start", func(c *Coupon) { c.EndDate = c.StartDate }, true},
		{"end before start", func(c *Coupon) { c.EndDate = c.StartDate.Add(-time.Hour) }, true},
		{"negative value", func(c *Coupon) { c.DiscountValue = dec("-1") }, true},
		{"unknown type", func(c *Coupon) { c.DiscountType = "bogo" }, true},
		{"missing code", func(c *Coupon) { c.Code = "" }, true},
		{"max below min", func(c *Coupon) { c.MinimumOrderAmount = dec("10"); c.MaximumOrderAmount = ptrDec("5") }, true},
		{"per-user zero", func(c *Coupon) { c.UsageLimitPerUser = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoupon()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	c := &Coupon{Code: "  summer25 ", ApplicableUsers: []string{"a", " ", "b", "a"}}
	c.Normalize()

	assert.Equal(t, "SUMMER25", c.Code)
	assert.Equal(t, 1, c.UsageLimitPerUser)
	assert.Equal(t, []string{"a", "b"}, c.ApplicableUsers)
}

func TestNormalize_LeavesCallerSliceAlone(t *testing.T) {
	users := []string{" x ", "", "y", "x"}
	c := &Coupon{Code: "A", ApplicableUsers: users}
	c.Normalize()

	assert.Equal(t, []string{"x", "y"}, c.ApplicableUsers)
	assert.Equal(t, []string{" x ", "", "y", "x"}, users)
}

func TestUsageViews(t *testing.T) {
	c := newCoupon()
	assert.Nil(t, c.RemainingUsage())
	assert.Nil(t, c.UsagePercentage())

	c.UsageLimit = ptrInt(3)
	c.CurrentUsage = 2
	assert.Equal(t, 1, *c.RemainingUsage())
	assert.Equal(t, 67, *c.UsagePercentage())

	c.CurrentUsage = 5
	assert.Equal(t, 0, *c.RemainingUsage())
}
