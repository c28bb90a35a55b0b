package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Coupon is a discount rule plus its redemption ledger. Everything except
// CurrentUsage and UsedBy is fixed once an administrator has written it.
type Coupon struct {
	ID                 int64
	Code               string
	Description        string
	DiscountType       DiscountType
	DiscountValue      decimal.Decimal
	MaxDiscount        *decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	MaximumOrderAmount *decimal.Decimal
	UsageLimit         *int
	UsageLimitPerUser  int
	CurrentUsage       int
	StartDate          time.Time
	EndDate            time.Time
	ApplicableUsers    []string
	IsActive           bool
	UsedBy             []Redemption
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Redemption struct {
	User           string          `json:"user"`
	Order          string          `json:"order"`
	UsedAt         time.Time       `json:"used_at"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize upper-cases the code, drops blank or repeated user ids and
// applies the per-user default.
func (c *Coupon) Normalize() {
	c.Code = NormalizeCode(c.Code)
	if c.UsageLimitPerUser == 0 {
		c.UsageLimitPerUser = 1
	}

	seen := make(map[string]bool, len(c.ApplicableUsers))
	users := make([]string, 0, len(c.ApplicableUsers))
	for _, u := range c.ApplicableUsers {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}
	c.ApplicableUsers = users
}

// RemainingUsage is nil when the coupon has no global limit.
func (c *Coupon) RemainingUsage() *int {
	if c.UsageLimit == nil {
		return nil
	}
	remaining := *c.UsageLimit - c.CurrentUsage
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// UsagePercentage is nil when the coupon has no global limit.
func (c *Coupon) UsagePercentage() *int {
	if c.UsageLimit == nil {
		return nil
	}
	if *c.UsageLimit == 0 {
		full := 100
		return &full
	}
	pct := decimal.NewFromInt(int64(c.CurrentUsage)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(*c.UsageLimit))).
		Round(0).
		IntPart()
	v := int(pct)
	return &v
}

func (c *Coupon) UsesBy(userID string) int {
	n := 0
	for _, r := range c.UsedBy {
		if r.User == userID {
			n++
		}
	}
	return n
}

func (c *Coupon) RedemptionFor(orderID string) (Redemption, bool) {
	for _, r := range c.UsedBy {
		if r.Order == orderID {
			return r, true
		}
	}
	return Redemption{}, false
}
