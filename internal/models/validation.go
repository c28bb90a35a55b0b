package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EvaluationRequest struct {
	UserID     string
	CouponCode string
	Subtotal   decimal.Decimal
}

type EvaluationResult struct {
	IsValid  bool            `json:"is_valid"`
	Code     string          `json:"coupon_code,omitempty"`
	Reason   Reason          `json:"reason,omitempty"`
	Discount decimal.Decimal `json:"discount"`
}

type CommitRequest struct {
	CouponCode     string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
}

type CommitResult struct {
	Applied      bool      `json:"applied"`
	CouponCode   string    `json:"coupon_code"`
	OrderID      string    `json:"order_id"`
	CurrentUsage int       `json:"current_usage"`
	UsedAt       time.Time `json:"used_at"`
}

func (r CommitRequest) Validate() error {
	if NormalizeCode(r.CouponCode) == "" {
		return invalid("coupon code is required")
	}
	if r.UserID == "" {
		return invalid("user id is required")
	}
	if r.OrderID == "" {
		return invalid("order id is required")
	}
	if r.DiscountAmount.IsNegative() {
		return invalid("discount amount must not be negative")
	}
	return nil
}
