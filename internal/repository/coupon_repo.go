package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/adilrza0/qusamba-sub001/internal/models"
)

const couponColumns = `id, code, description, discount_type, discount_value, max_discount,
	minimum_order_amount, maximum_order_amount, usage_limit, usage_limit_per_user,
	current_usage, start_date, end_date, is_active, created_at, updated_at`

type CouponRepo struct {
	db *sql.DB
}

func NewCouponRepo(db *sql.DB) *CouponRepo {
	return &CouponRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var (
		c          models.Coupon
		discount   string
		maxDisc    decimal.NullDecimal
		maxOrder   decimal.NullDecimal
		usageLimit sql.NullInt64
	)
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Description,
		&discount,
		&c.DiscountValue,
		&maxDisc,
		&c.MinimumOrderAmount,
		&maxOrder,
		&usageLimit,
		&c.UsageLimitPerUser,
		&c.CurrentUsage,
		&c.StartDate,
		&c.EndDate,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.DiscountType = models.DiscountType(discount)
	if maxDisc.Valid {
		c.MaxDiscount = &maxDisc.Decimal
	}
	if maxOrder.Valid {
		c.MaximumOrderAmount = &maxOrder.Decimal
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		c.UsageLimit = &limit
	}
	return &c, nil
}

func nullableLimit(limit *int) sql.NullInt64 {
	if limit == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*limit), Valid: true}
}

// Create inserts the coupon and its allow-list in one transaction and fills
// in the generated id and timestamps.
func (r *CouponRepo) Create(ctx context.Context, c *models.Coupon) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO coupons
		(code, description, discount_type, discount_value, max_discount,
		 minimum_order_amount, maximum_order_amount, usage_limit, usage_limit_per_user,
		 current_usage, start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,$10,$11,$12,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		c.Code,
		c.Description,
		string(c.DiscountType),
		c.DiscountValue,
		c.MaxDiscount,
		c.MinimumOrderAmount,
		c.MaximumOrderAmount,
		nullableLimit(c.UsageLimit),
		c.UsageLimitPerUser,
		c.StartDate,
		c.EndDate,
		c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateCode, "code %s", c.Code)
		}
		return errors.Wrap(err, "insert coupon")
	}

	if err := insertUsers(ctx, tx, c.ID, c.ApplicableUsers); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit coupon")
	}
	c.CurrentUsage = 0
	return nil
}

// Update rewrites the administrator-owned fields of an existing coupon.
// Usage counters and the ledger are left alone.
func (r *CouponRepo) Update(ctx context.Context, c *models.Coupon) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE coupons
		SET description = $2, discount_type = $3, discount_value = $4, max_discount = $5,
		    minimum_order_amount = $6, maximum_order_amount = $7, usage_limit = $8,
		    usage_limit_per_user = $9, start_date = $10, end_date = $11, is_active = $12,
		    updated_at = NOW()
		WHERE code = $1
		RETURNING id, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		c.Code,
		c.Description,
		string(c.DiscountType),
		c.DiscountValue,
		c.MaxDiscount,
		c.MinimumOrderAmount,
		c.MaximumOrderAmount,
		nullableLimit(c.UsageLimit),
		c.UsageLimitPerUser,
		c.StartDate,
		c.EndDate,
		c.IsActive,
	).Scan(&c.ID, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(models.ErrNotFound, "coupon %s", c.Code)
		}
		return errors.Wrap(err, "update coupon")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM coupon_applicable_users WHERE coupon_id = $1`, c.ID); err != nil {
		return errors.Wrap(err, "clear applicable users")
	}
	if err := insertUsers(ctx, tx, c.ID, c.ApplicableUsers); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "commit coupon")
}

func insertUsers(ctx context.Context, q querier, couponID int64, users []string) error {
	stmt := `INSERT INTO coupon_applicable_users (coupon_id, user_id) VALUES ($1, $2)`
	for _, u := range users {
		if _, err := q.ExecContext(ctx, stmt, couponID, u); err != nil {
			return errors.Wrapf(err, "insert applicable user %s", u)
		}
	}
	return nil
}

func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return getCoupon(ctx, r.db, code, false)
}

// getCoupon loads a coupon with its allow-list and ledger. With lock set the
// coupon row is held FOR UPDATE until the surrounding transaction ends.
func getCoupon(ctx context.Context, q querier, code string, lock bool) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	c, err := scanCoupon(q.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "coupon %s", code)
		}
		return nil, errors.Wrap(err, "select coupon")
	}

	if c.ApplicableUsers, err = applicableUsers(ctx, q, c.ID); err != nil {
		return nil, err
	}
	if c.UsedBy, err = redemptions(ctx, q, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every active coupon, oldest first.
func (r *CouponRepo) List(ctx context.Context) ([]*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE is_active ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	var coupons []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan coupon")
		}
		coupons = append(coupons, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	for _, c := range coupons {
		if c.ApplicableUsers, err = applicableUsers(ctx, r.db, c.ID); err != nil {
			return nil, err
		}
		if c.UsedBy, err = redemptions(ctx, r.db, c.ID); err != nil {
			return nil, err
		}
	}
	return coupons, nil
}

func (r *CouponRepo) SetActive(ctx context.Context, code string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET is_active = $2, updated_at = $3 WHERE code = $1`,
		code, active, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "set coupon active")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "set coupon active")
	}
	if n == 0 {
		return errors.Wrapf(models.ErrNotFound, "coupon %s", code)
	}
	return nil
}

func applicableUsers(ctx context.Context, q querier, couponID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id FROM coupon_applicable_users WHERE coupon_id = $1 ORDER BY user_id`, couponID)
	if err != nil {
		return nil, errors.Wrap(err, "select applicable users")
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan applicable user")
		}
		users = append(users, id)
	}
	return users, errors.Wrap(rows.Err(), "select applicable users")
}

func redemptions(ctx context.Context, q querier, couponID int64) ([]models.Redemption, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, order_id, used_at, discount_amount
		FROM coupon_redemptions
		WHERE coupon_id = $1
		ORDER BY used_at, order_id`, couponID)
	if err != nil {
		return nil, errors.Wrap(err, "select redemptions")
	}
	defer rows.Close()

	var out []models.Redemption
	for rows.Next() {
		var r models.Redemption
		if err := rows.Scan(&r.User, &r.Order, &r.UsedAt, &r.DiscountAmount); err != nil {
			return nil, errors.Wrap(err, "scan redemption")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "select redemptions")
}
