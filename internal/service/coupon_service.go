package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/events"
	"github.com/adilrza0/qusamba-sub001/internal/metrics"
	"github.com/adilrza0/qusamba-sub001/internal/models"
	"github.com/adilrza0/qusamba-sub001/internal/repository"
)

var tracer = otel.Tracer("github.com/adilrza0/qusamba-sub001/internal/service")

// Repos required by the service; both the postgres repositories and
// repository.MemoryStore satisfy them.
type CouponRepo interface {
	Create(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, c *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context) ([]*models.Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
}

type UsageRepo interface {
	CommitRedemption(ctx context.Context, code, userID, orderID string, amount decimal.Decimal, now time.Time) (*models.Coupon, bool, error)
}

type CouponService struct {
	coupons   CouponRepo
	usage     UsageRepo
	publisher events.Publisher
	metrics   *metrics.Collectors
	log       *zap.Logger
	now       func() time.Time
}

func NewCouponService(
	coupons CouponRepo,
	usage UsageRepo,
	publisher events.Publisher,
	m *metrics.Collectors,
	log *zap.Logger,
) *CouponService {
	return &CouponService{
		coupons:   coupons,
		usage:     usage,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the evaluation clock. Used by tests.
func (s *CouponService) WithClock(now func() time.Time) *CouponService {
	s.now = now
	return s
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *CouponService) Create(ctx context.Context, c *models.Coupon) (err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Create")
	defer func() { endSpan(span, err) }()

	c.Normalize()
	span.SetAttributes(attribute.String("coupon.code", c.Code))
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.coupons.Create(ctx, c); err != nil {
		return err
	}

	s.log.Info("coupon created",
		zap.String("code", c.Code),
		zap.String("type", string(c.DiscountType)),
		zap.String("value", c.DiscountValue.String()),
	)
	return nil
}

// Update replaces the administrator-owned fields of code. The usage counter
// and ledger are carried over from the stored coupon.
func (s *CouponService) Update(ctx context.Context, code string, c *models.Coupon) (err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Update")
	defer func() { endSpan(span, err) }()

	code = models.NormalizeCode(code)
	span.SetAttributes(attribute.String("coupon.code", code))

	existing, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return err
	}

	c.Code = code
	c.Normalize()
	c.CurrentUsage = existing.CurrentUsage
	c.UsedBy = existing.UsedBy
	if err := c.Validate(); err != nil {
		return err
	}
	if c.UsageLimit != nil && *c.UsageLimit < c.CurrentUsage {
		return errors.Wrapf(models.ErrValidation,
			"usage limit %d is below current usage %d", *c.UsageLimit, c.CurrentUsage)
	}

	if err := s.coupons.Update(ctx, c); err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt

	s.log.Info("coupon updated", zap.String("code", code))
	return nil
}

// Deactivate hides a coupon from checkout without touching its ledger.
func (s *CouponService) Deactivate(ctx context.Context, code string) (err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Deactivate")
	defer func() { endSpan(span, err) }()

	code = models.NormalizeCode(code)
	if err := s.coupons.SetActive(ctx, code, false); err != nil {
		return err
	}
	s.log.Info("coupon deactivated", zap.String("code", code))
	return nil
}

func (s *CouponService) Get(ctx context.Context, code string) (c *models.Coupon, err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Get")
	defer func() { endSpan(span, err) }()

	return s.coupons.GetByCode(ctx, models.NormalizeCode(code))
}

// Evaluate answers whether the coupon applies to the request and how much it
// takes off. Ineligibility is a result, not an error; only malformed input
// and storage failures are errors.
func (s *CouponService) Evaluate(ctx context.Context, req models.EvaluationRequest) (res models.EvaluationResult, err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Evaluate")
	defer func() { endSpan(span, err) }()

	code := models.NormalizeCode(req.CouponCode)
	span.SetAttributes(attribute.String("coupon.code", code), attribute.String("user.id", req.UserID))

	if req.Subtotal.IsNegative() {
		return models.EvaluationResult{}, errors.Wrap(models.ErrValidation, "order subtotal must not be negative")
	}

	res = models.EvaluationResult{Code: code, Discount: decimal.Zero}
	if code == "" {
		res.Reason = models.ReasonNotFound
		s.countEvaluation(res.Reason)
		return res, nil
	}

	c, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			res.Reason = models.ReasonNotFound
			s.countEvaluation(res.Reason)
			return res, nil
		}
		return models.EvaluationResult{}, err
	}

	res = s.assess(c, req.UserID, req.Subtotal)
	span.SetAttributes(attribute.String("coupon.result", resultLabel(res.Reason)))
	return res, nil
}

func evaluate(c *models.Coupon, userID string, subtotal decimal.Decimal, now time.Time) models.EvaluationResult {
	res := models.EvaluationResult{Code: c.Code, Discount: decimal.Zero}
	// subtotal is non-negative here, so Ineligibility cannot fail.
	reason, _ := c.Ineligibility(userID, subtotal, now)
	if reason != models.ReasonNone {
		res.Reason = reason
		return res
	}
	res.IsValid = true
	res.Discount = c.CalculateDiscount(subtotal)
	return res
}

// assess evaluates an already loaded coupon at the service clock and counts
// the outcome.
func (s *CouponService) assess(c *models.Coupon, userID string, subtotal decimal.Decimal) models.EvaluationResult {
	res := evaluate(c, userID, subtotal, s.now())
	s.countEvaluation(res.Reason)
	return res
}

func resultLabel(r models.Reason) string {
	if r == models.ReasonNone {
		return "valid"
	}
	return string(r)
}

func (s *CouponService) countEvaluation(r models.Reason) {
	if s.metrics != nil {
		s.metrics.CouponEvaluations.WithLabelValues(resultLabel(r)).Inc()
	}
}

// ApplicableCoupon is one entry of the applicable listing.
type ApplicableCoupon struct {
	Code        string          `json:"coupon_code"`
	Description string          `json:"description,omitempty"`
	Discount    decimal.Decimal `json:"discount"`
}

// Applicable lists every active coupon userID could apply to an order of
// the given subtotal right now, with the discount each would give.
func (s *CouponService) Applicable(ctx context.Context, userID string, subtotal decimal.Decimal) (out []ApplicableCoupon, err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Applicable")
	defer func() { endSpan(span, err) }()

	if subtotal.IsNegative() {
		return nil, errors.Wrap(models.ErrValidation, "order subtotal must not be negative")
	}

	coupons, err := s.coupons.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out = []ApplicableCoupon{}
	for _, c := range coupons {
		res := evaluate(c, userID, subtotal, now)
		if !res.IsValid {
			continue
		}
		out = append(out, ApplicableCoupon{Code: c.Code, Description: c.Description, Discount: res.Discount})
	}
	span.SetAttributes(attribute.Int("coupon.applicable", len(out)))
	return out, nil
}

// Commit records the redemption once payment has been confirmed. Repeating
// a commit for the same order is safe and reports Applied=false.
func (s *CouponService) Commit(ctx context.Context, req models.CommitRequest) (res models.CommitResult, err error) {
	ctx, span := tracer.Start(ctx, "CouponService.Commit")
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return models.CommitResult{}, err
	}
	code := models.NormalizeCode(req.CouponCode)
	span.SetAttributes(attribute.String("coupon.code", code), attribute.String("order.id", req.OrderID))

	now := s.now()
	c, applied, err := s.usage.CommitRedemption(ctx, code, req.UserID, req.OrderID, req.DiscountAmount.Round(2), now)
	if err != nil {
		s.countRedemption(redemptionOutcome(err))
		return models.CommitResult{}, err
	}

	res = models.CommitResult{
		Applied:      applied,
		CouponCode:   code,
		OrderID:      req.OrderID,
		CurrentUsage: c.CurrentUsage,
	}
	if r, ok := c.RedemptionFor(req.OrderID); ok {
		res.UsedAt = r.UsedAt
	}

	if !applied {
		s.countRedemption("duplicate")
		s.log.Info("redemption already recorded", zap.String("code", code), zap.String("order_id", req.OrderID))
		return res, nil
	}

	s.countRedemption("applied")
	s.log.Info("coupon redeemed",
		zap.String("code", code),
		zap.String("user_id", req.UserID),
		zap.String("order_id", req.OrderID),
		zap.Int("current_usage", c.CurrentUsage),
	)

	ev := events.CouponRedeemed{
		CouponCode:     code,
		UserID:         req.UserID,
		OrderID:        req.OrderID,
		DiscountAmount: req.DiscountAmount.Round(2),
		CurrentUsage:   c.CurrentUsage,
		UsedAt:         res.UsedAt,
	}
	if perr := s.publisher.PublishRedeemed(ctx, ev); perr != nil {
		// The redemption is already durable; a lost event is logged, not failed.
		s.log.Error("publish redemption event", zap.String("order_id", req.OrderID), zap.Error(perr))
	}
	return res, nil
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, repository.ErrUsageExhausted):
		return "exhausted"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *CouponService) countRedemption(outcome string) {
	if s.metrics != nil {
		s.metrics.CouponRedemptions.WithLabelValues(outcome).Inc()
	}
}
