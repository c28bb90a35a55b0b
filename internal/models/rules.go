package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason names the first rule a checkout attempt failed. The zero value
// means the coupon may be applied.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotFound         Reason = "not_found"
	ReasonInactive         Reason = "inactive"
	ReasonNotStarted       Reason = "not_started"
	ReasonExpired          Reason = "expired"
	ReasonUsageExhausted   Reason = "usage_exhausted"
	ReasonBelowMinimum     Reason = "below_minimum"
	ReasonAboveMaximum     Reason = "above_maximum"
	ReasonUserNotAllowed   Reason = "user_not_allowed"
	ReasonUserLimitReached Reason = "user_limit_reached"
)

var hundred = decimal.NewFromInt(100)

// Validate enforces the structural invariants checked once at write time.
func (c *Coupon) Validate() error {
	if c.Code == "" {
		return invalid("coupon code is required")
	}
	if !c.DiscountType.Valid() {
		return invalidf("unknown discount type %q", c.DiscountType)
	}
	if c.DiscountValue.IsNegative() {
		return invalid("discount value must not be negative")
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(hundred) {
		return invalid("percentage discount cannot exceed 100")
	}
	if c.MaxDiscount != nil && c.MaxDiscount.IsNegative() {
		return invalid("max discount must not be negative")
	}
	if c.MinimumOrderAmount.IsNegative() {
		return invalid("minimum order amount must not be negative")
	}
	if c.MaximumOrderAmount != nil {
		if c.MaximumOrderAmount.IsNegative() {
			return invalid("maximum order amount must not be negative")
		}
		if c.MaximumOrderAmount.LessThan(c.MinimumOrderAmount) {
			return invalid("maximum order amount is below the minimum")
		}
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return invalid("usage limit must not be negative")
	}
	if c.UsageLimitPerUser < 1 {
		return invalid("per-user usage limit must be at least 1")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return invalid("start and end dates are required")
	}
	if !c.EndDate.After(c.StartDate) {
		return invalid("end date must be after start date")
	}
	return nil
}

// IsCurrentlyValid is evaluated against now on every call and must not be
// cached: the answer changes with the clock and with CurrentUsage.
func (c *Coupon) IsCurrentlyValid(now time.Time) bool {
	return c.validityReason(now) == ReasonNone
}

func (c *Coupon) validityReason(now time.Time) Reason {
	switch {
	case !c.IsActive:
		return ReasonInactive
	case now.Before(c.StartDate):
		return ReasonNotStarted
	case now.After(c.EndDate):
		return ReasonExpired
	case c.exhausted():
		return ReasonUsageExhausted
	}
	return ReasonNone
}

func (c *Coupon) exhausted() bool {
	return c.UsageLimit != nil && c.CurrentUsage >= *c.UsageLimit
}

// CanBeUsedBy reports whether userID may apply the coupon to an order of
// the given subtotal. Only a malformed subtotal is an error.
func (c *Coupon) CanBeUsedBy(userID string, subtotal decimal.Decimal, now time.Time) (bool, error) {
	reason, err := c.Ineligibility(userID, subtotal, now)
	if err != nil {
		return false, err
	}
	return reason == ReasonNone, nil
}

// Ineligibility returns the first failed rule, or ReasonNone.
func (c *Coupon) Ineligibility(userID string, subtotal decimal.Decimal, now time.Time) (Reason, error) {
	if subtotal.IsNegative() {
		return ReasonNone, invalid("order subtotal must not be negative")
	}
	if r := c.validityReason(now); r != ReasonNone {
		return r, nil
	}
	if subtotal.LessThan(c.MinimumOrderAmount) {
		return ReasonBelowMinimum, nil
	}
	if c.MaximumOrderAmount != nil && subtotal.GreaterThan(*c.MaximumOrderAmount) {
		return ReasonAboveMaximum, nil
	}
	if !c.allows(userID) {
		return ReasonUserNotAllowed, nil
	}
	if c.UsesBy(userID) >= c.UsageLimitPerUser {
		return ReasonUserLimitReached, nil
	}
	return ReasonNone, nil
}

func (c *Coupon) allows(userID string) bool {
	if len(c.ApplicableUsers) == 0 {
		return true
	}
	for _, u := range c.ApplicableUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// CalculateDiscount does not check eligibility. Rounding to cents happens
// once, on the final value.
func (c *Coupon) CalculateDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountFixed:
		discount = decimal.Min(c.DiscountValue, subtotal)
	case DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil {
			discount = decimal.Min(discount, *c.MaxDiscount)
		}
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}

// Redeem records a redemption for orderID. A second call for an order
// already in the ledger changes nothing and returns false.
func (c *Coupon) Redeem(userID, orderID string, amount decimal.Decimal, now time.Time) bool {
	if _, ok := c.RedemptionFor(orderID); ok {
		return false
	}
	c.UsedBy = append(c.UsedBy, Redemption{
		User:           userID,
		Order:          orderID,
		UsedAt:         now,
		DiscountAmount: amount,
	})
	c.CurrentUsage++
	return true
}
