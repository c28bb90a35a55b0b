package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/adilrza0/qusamba-sub001/internal/models"
)

// MemoryStore keeps coupons, redemptions and prices in process memory. It is
// used when no database is configured and in tests. Coupons handed out are
// copies; callers never share state with the store.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	coupons map[string]*models.Coupon
	prices  map[string]decimal.Decimal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coupons: make(map[string]*models.Coupon),
		prices:  make(map[string]decimal.Decimal),
	}
}

func cloneCoupon(c *models.Coupon) *models.Coupon {
	out := *c
	if c.MaxDiscount != nil {
		v := *c.MaxDiscount
		out.MaxDiscount = &v
	}
	if c.MaximumOrderAmount != nil {
		v := *c.MaximumOrderAmount
		out.MaximumOrderAmount = &v
	}
	if c.UsageLimit != nil {
		v := *c.UsageLimit
		out.UsageLimit = &v
	}
	out.ApplicableUsers = append([]string(nil), c.ApplicableUsers...)
	out.UsedBy = append([]models.Redemption(nil), c.UsedBy...)
	return &out
}

func (s *MemoryStore) Create(_ context.Context, c *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[c.Code]; ok {
		return errors.Wrapf(ErrDuplicateCode, "code %s", c.Code)
	}

	s.nextID++
	now := time.Now().UTC()
	c.ID = s.nextID
	c.CurrentUsage = 0
	c.UsedBy = nil
	c.CreatedAt = now
	c.UpdatedAt = now
	s.coupons[c.Code] = cloneCoupon(c)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, c *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.coupons[c.Code]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "coupon %s", c.Code)
	}

	next := cloneCoupon(c)
	next.ID = existing.ID
	next.CurrentUsage = existing.CurrentUsage
	next.UsedBy = existing.UsedBy
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	s.coupons[c.Code] = next

	c.ID = next.ID
	c.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "coupon %s", code)
	}
	return cloneCoupon(c), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		if c.IsActive {
			out = append(out, cloneCoupon(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetActive(_ context.Context, code string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	if !ok {
		return errors.Wrapf(models.ErrNotFound, "coupon %s", code)
	}
	c.IsActive = active
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// CommitRedemption has the same contract as UsageRepo.CommitRedemption; the
// store mutex plays the part of the row lock.
func (s *MemoryStore) CommitRedemption(
	_ context.Context,
	code, userID, orderID string,
	amount decimal.Decimal,
	now time.Time,
) (*models.Coupon, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	if !ok {
		return nil, false, errors.Wrapf(models.ErrNotFound, "coupon %s", code)
	}
	if _, ok := c.RedemptionFor(orderID); ok {
		return cloneCoupon(c), false, nil
	}
	if err := checkLimits(c, userID); err != nil {
		return cloneCoupon(c), false, err
	}

	c.Redeem(userID, orderID, amount, now)
	c.UpdatedAt = now
	return cloneCoupon(c), true, nil
}

// SetPrice registers or replaces a catalog price.
func (s *MemoryStore) SetPrice(productID string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[productID] = price
}

func (s *MemoryStore) Prices(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		if p, ok := s.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
