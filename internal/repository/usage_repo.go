package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/adilrza0/qusamba-sub001/internal/models"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// CommitRedemption records that orderID used the coupon. The coupon row is
// locked for the whole transaction, so concurrent commits against the same
// code are serialized and the usage limits hold.
//
// A second commit for the same order returns applied=false and no error.
// Only usage limits are re-checked here; dates and order bounds were settled
// when the discount was quoted.
func (r *UsageRepo) CommitRedemption(
	ctx context.Context,
	code, userID, orderID string,
	amount decimal.Decimal,
	now time.Time,
) (*models.Coupon, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	c, err := getCoupon(ctx, tx, code, true)
	if err != nil {
		return nil, false, err
	}

	if _, ok := c.RedemptionFor(orderID); ok {
		return c, false, nil
	}
	if err := checkLimits(c, userID); err != nil {
		return c, false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO coupon_redemptions (id, coupon_id, user_id, order_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), c.ID, userID, orderID, amount, now)
	if err != nil {
		return nil, false, errors.Wrap(err, "insert redemption")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE coupons
		SET current_usage = current_usage + 1, updated_at = $2
		WHERE id = $1 AND (usage_limit IS NULL OR current_usage < usage_limit)`,
		c.ID, now)
	if err != nil {
		return nil, false, errors.Wrap(err, "increment usage")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, errors.Wrap(err, "increment usage")
	}
	if n == 0 {
		return c, false, errors.Wrapf(ErrUsageExhausted, "coupon %s", c.Code)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, errors.Wrap(err, "commit redemption")
	}
	committed = true

	c.Redeem(userID, orderID, amount, now)
	c.UpdatedAt = now
	return c, true, nil
}

func checkLimits(c *models.Coupon, userID string) error {
	if c.UsageLimit != nil && c.CurrentUsage >= *c.UsageLimit {
		return errors.Wrapf(ErrUsageExhausted, "coupon %s reached its usage limit", c.Code)
	}
	if c.UsesBy(userID) >= c.UsageLimitPerUser {
		return errors.Wrapf(ErrUsageExhausted, "user %s reached the limit for coupon %s", userID, c.Code)
	}
	return nil
}
