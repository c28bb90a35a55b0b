package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/cache"
	"github.com/adilrza0/qusamba-sub001/internal/cart"
	"github.com/adilrza0/qusamba-sub001/internal/models"
	"github.com/adilrza0/qusamba-sub001/internal/repository"
)

type checkoutFixture struct {
	*fixture
	carts    *cart.Store
	checkout *CheckoutService
}

func newCheckoutFixture(withCatalog bool) *checkoutFixture {
	f := newFixture()
	carts := cart.NewStore(cache.NewMemoryKV(), time.Hour, zap.NewNop(), f.metrics)
	var catalog PriceCatalog
	if withCatalog {
		catalog = f.store
	}
	return &checkoutFixture{
		fixture:  f,
		carts:    carts,
		checkout: NewCheckoutService(carts, catalog, f.svc, zap.NewNop()),
	}
}

func line(id, price string) models.LineItem {
	return models.LineItem{ProductID: id, Name: id, UnitPrice: dec(price), Color: "Gold", Size: "M"}
}

func (f *checkoutFixture) add(t *testing.T, session string, item models.LineItem, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, err := f.carts.Dispatch(context.Background(), session, cart.AddItem{Item: item})
		require.NoError(t, err)
	}
}

func TestQuote_WithoutCoupon(t *testing.T) {
	f := newCheckoutFixture(false)
	f.add(t, "s1", line("p1", "60"), 2)

	q, err := f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, q.Coupon)
	assert.True(t, dec("120").Equal(q.Subtotal))
	assert.True(t, q.Discount.IsZero())
	assert.True(t, dec("120").Equal(q.Total))
}

func TestQuote_AppliesCouponToCartSubtotal(t *testing.T) {
	f := newCheckoutFixture(false)
	require.NoError(t, f.svc.Create(context.Background(), percentCoupon("SAVE10")))
	f.add(t, "s1", line("p1", "60"), 2)

	q, err := f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "s1", UserID: "u1", CouponCode: "save10"})
	require.NoError(t, err)
	require.NotNil(t, q.Coupon)
	assert.True(t, q.Coupon.IsValid)
	assert.True(t, dec("12").Equal(q.Discount))
	assert.True(t, dec("108").Equal(q.Total))
}

func TestQuote_IneligibleAndUnknownCoupons(t *testing.T) {
	f := newCheckoutFixture(false)
	require.NoError(t, f.svc.Create(context.Background(), percentCoupon("SAVE10")))
	f.add(t, "s1", line("p1", "20"), 1)

	q, err := f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "s1", UserID: "u1", CouponCode: "SAVE10"})
	require.NoError(t, err)
	require.NotNil(t, q.Coupon)
	assert.Equal(t, models.ReasonBelowMinimum, q.Coupon.Reason)
	assert.True(t, dec("20").Equal(q.Total))

	q, err = f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "s1", UserID: "u1", CouponCode: "NOPE"})
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNotFound, q.Coupon.Reason)
}

func TestQuote_RepricesFromCatalog(t *testing.T) {
	f := newCheckoutFixture(true)
	f.store.SetPrice("p1", dec("75"))
	f.add(t, "s1", line("p1", "60"), 2)
	f.add(t, "s1", line("retired", "999"), 1)

	q, err := f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, q.Items, 1)
	assert.True(t, dec("75").Equal(q.Items[0].UnitPrice))
	assert.True(t, dec("150").Equal(q.Subtotal))
	require.Len(t, q.Missing, 1)
	assert.Equal(t, "retired", q.Missing[0].ProductID)

	// Quoting never rewrites the stored cart.
	state, err := f.carts.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, state.Items, 2)
}

func TestQuote_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(true)

	q, err := f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "fresh"})
	require.NoError(t, err)
	assert.Empty(t, q.Items)
	assert.True(t, q.Total.IsZero())

	_, err = f.checkout.Quote(context.Background(), QuoteRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

type failingCatalog struct{}

func (failingCatalog) Prices(context.Context, []string) (map[string]decimal.Decimal, error) {
	return nil, errors.New("catalog unavailable")
}

func TestQuote_CatalogFailureIsAnError(t *testing.T) {
	f := newCheckoutFixture(false)
	f.checkout.catalog = failingCatalog{}
	f.add(t, "s1", line("p1", "10"), 1)

	_, err := f.checkout.Quote(context.Background(), QuoteRequest{SessionID: "s1"})
	assert.Error(t, err)
}

func TestConfirm_CommitsThenClearsCart(t *testing.T) {
	f := newCheckoutFixture(false)
	ctx := context.Background()
	require.NoError(t, f.svc.Create(ctx, percentCoupon("SAVE10")))
	f.add(t, "s1", line("p1", "60"), 2)

	out, err := f.checkout.Confirm(ctx, ConfirmRequest{
		SessionID: "s1", UserID: "u1", OrderID: "order-1", CouponCode: "SAVE10", DiscountAmount: dec("12"),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Redemption)
	assert.True(t, out.Redemption.Applied)
	assert.Empty(t, out.Cart.Items)

	state, err := f.carts.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Items)

	// A retried confirmation for the same order is harmless.
	out, err = f.checkout.Confirm(ctx, ConfirmRequest{
		SessionID: "s1", UserID: "u1", OrderID: "order-1", CouponCode: "SAVE10", DiscountAmount: dec("12"),
	})
	require.NoError(t, err)
	assert.False(t, out.Redemption.Applied)

	c, err := f.svc.Get(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentUsage)
}

func TestConfirm_FailedCommitKeepsCart(t *testing.T) {
	f := newCheckoutFixture(false)
	ctx := context.Background()
	c := percentCoupon("ONCE")
	c.UsageLimit = intPtr(0)
	require.NoError(t, f.svc.Create(ctx, c))
	f.add(t, "s1", line("p1", "60"), 2)

	_, err := f.checkout.Confirm(ctx, ConfirmRequest{
		SessionID: "s1", UserID: "u1", OrderID: "order-1", CouponCode: "ONCE", DiscountAmount: dec("12"),
	})
	assert.ErrorIs(t, err, repository.ErrUsageExhausted)

	state, err := f.carts.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, state.Items, 1)
}

func TestConfirm_WithoutCoupon(t *testing.T) {
	f := newCheckoutFixture(false)
	f.add(t, "s1", line("p1", "60"), 1)

	out, err := f.checkout.Confirm(context.Background(), ConfirmRequest{SessionID: "s1", UserID: "u1", OrderID: "o"})
	require.NoError(t, err)
	assert.Nil(t, out.Redemption)
	assert.Empty(t, out.Cart.Items)

	_, err = f.checkout.Confirm(context.Background(), ConfirmRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestConfirm_RejectsIneligibleCoupon(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		coupon func() *models.Coupon
		reason models.Reason
	}{
		{
			name: "inactive",
			coupon: func() *models.Coupon {
				c := percentCoupon("VIPONLY")
				c.IsActive = false
				c.ApplicableUsers = []string{"vip"}
				return c
			},
			reason: models.ReasonInactive,
		},
		{
			name: "user not on allow-list",
			coupon: func() *models.Coupon {
				c := percentCoupon("VIPONLY")
				c.ApplicableUsers = []string{"vip"}
				return c
			},
			reason: models.ReasonUserNotAllowed,
		},
		{
			name: "below minimum",
			coupon: func() *models.Coupon {
				c := percentCoupon("VIPONLY")
				c.MinimumOrderAmount = dec("500")
				return c
			},
			reason: models.ReasonBelowMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(false)
			require.NoError(t, f.svc.Create(ctx, tt.coupon()))
			f.add(t, "s1", line("p1", "60"), 2)

			_, err := f.checkout.Confirm(ctx, ConfirmRequest{
				SessionID: "s1", UserID: "intruder", OrderID: "o1", CouponCode: "VIPONLY", DiscountAmount: dec("9999"),
			})
			require.ErrorIs(t, err, ErrCouponRejected)
			assert.Contains(t, err.Error(), string(tt.reason))

			c, err := f.svc.Get(ctx, "VIPONLY")
			require.NoError(t, err)
			assert.Equal(t, 0, c.CurrentUsage)
			assert.Empty(t, c.UsedBy)
			assert.Empty(t, f.publisher.events)

			state, err := f.carts.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Len(t, state.Items, 1)
		})
	}
}

func TestConfirm_UnknownCouponIsNotFound(t *testing.T) {
	f := newCheckoutFixture(false)
	f.add(t, "s1", line("p1", "60"), 2)

	_, err := f.checkout.Confirm(context.Background(), ConfirmRequest{
		SessionID: "s1", UserID: "u1", OrderID: "o1", CouponCode: "GHOST",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConfirm_RecordsComputedDiscount(t *testing.T) {
	f := newCheckoutFixture(false)
	ctx := context.Background()
	require.NoError(t, f.svc.Create(ctx, percentCoupon("SAVE10")))
	f.add(t, "s1", line("p1", "60"), 2)

	out, err := f.checkout.Confirm(ctx, ConfirmRequest{
		SessionID: "s1", UserID: "u1", OrderID: "o1", CouponCode: "SAVE10", DiscountAmount: dec("9999"),
	})
	require.NoError(t, err)
	assert.True(t, out.Redemption.Applied)

	c, err := f.svc.Get(ctx, "SAVE10")
	require.NoError(t, err)
	require.Len(t, c.UsedBy, 1)
	assert.True(t, dec("12").Equal(c.UsedBy[0].DiscountAmount), c.UsedBy[0].DiscountAmount.String())

	require.Len(t, f.publisher.events, 1)
	assert.True(t, dec("12").Equal(f.publisher.events[0].DiscountAmount))
}

func TestConfirm_DiscountFollowsCatalogPrices(t *testing.T) {
	f := newCheckoutFixture(true)
	ctx := context.Background()
	require.NoError(t, f.svc.Create(ctx, percentCoupon("SAVE10")))
	f.store.SetPrice("p1", dec("100"))
	f.add(t, "s1", line("p1", "60"), 2)

	_, err := f.checkout.Confirm(ctx, ConfirmRequest{
		SessionID: "s1", UserID: "u1", OrderID: "o1", CouponCode: "SAVE10",
	})
	require.NoError(t, err)

	c, err := f.svc.Get(ctx, "SAVE10")
	require.NoError(t, err)
	require.Len(t, c.UsedBy, 1)
	assert.True(t, dec("20").Equal(c.UsedBy[0].DiscountAmount))
}
