package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adilrza0/qusamba-sub001/internal/cart"
	"github.com/adilrza0/qusamba-sub001/internal/models"
	"github.com/adilrza0/qusamba-sub001/internal/repository"
)

type CartStore interface {
	Load(ctx context.Context, session string) (cart.State, error)
	Dispatch(ctx context.Context, session string, cmd cart.Command) (cart.State, error)
	Discard(ctx context.Context, session string) error
}

// ErrCouponRejected is returned by Confirm when the coupon is not eligible
// for the order being confirmed.
var ErrCouponRejected = errors.New("coupon cannot be applied to this order")

type PriceCatalog interface {
	Prices(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error)
}

type CheckoutService struct {
	carts   CartStore
	catalog PriceCatalog
	coupons *CouponService
	log     *zap.Logger
	timeout time.Duration
}

// NewCheckoutService builds the checkout flow. A nil catalog prices lines at
// the unit price stored in the cart.
func NewCheckoutService(carts CartStore, catalog PriceCatalog, coupons *CouponService, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		carts:   carts,
		catalog: catalog,
		coupons: coupons,
		log:     log,
		timeout: 8 * time.Second,
	}
}

type QuoteRequest struct {
	SessionID  string
	UserID     string
	CouponCode string
}

type Quote struct {
	Items    []models.LineItem        `json:"items"`
	Missing  []models.LineItem        `json:"missing,omitempty"`
	Subtotal decimal.Decimal          `json:"subtotal"`
	Discount decimal.Decimal          `json:"discount"`
	Total    decimal.Decimal          `json:"total"`
	Coupon   *models.EvaluationResult `json:"coupon,omitempty"`
}

// Quote prices the session's cart against the catalog and applies the
// coupon, if any. Nothing is written.
func (s *CheckoutService) Quote(ctx context.Context, req QuoteRequest) (q Quote, err error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.Quote")
	defer func() { endSpan(span, err) }()

	if req.SessionID == "" {
		return Quote{}, errors.Wrap(models.ErrValidation, "session id is required")
	}
	span.SetAttributes(attribute.String("cart.session", req.SessionID), attribute.String("coupon.code", models.NormalizeCode(req.CouponCode)))

	q, _, err = s.quote(ctx, req)
	return q, err
}

// quote does the pricing for Quote and Confirm. The coupon is returned as
// loaded, nil when no code was given or the code is unknown.
func (s *CheckoutService) quote(ctx context.Context, req QuoteRequest) (Quote, *models.Coupon, error) {
	code := models.NormalizeCode(req.CouponCode)

	// short request-scoped deadline to avoid long-running ops
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		state  cart.State
		coupon *models.Coupon
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state, err = s.carts.Load(gctx, req.SessionID)
		return err
	})
	if code != "" {
		g.Go(func() error {
			c, err := s.coupons.Get(gctx, code)
			if errors.Is(err, models.ErrNotFound) {
				return nil
			}
			coupon = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Quote{}, nil, err
	}

	items, missing, err := s.reprice(ctx, state.Items)
	if err != nil {
		return Quote{}, nil, err
	}

	q := Quote{Items: items, Missing: missing, Subtotal: decimal.Zero, Discount: decimal.Zero}
	for _, it := range items {
		q.Subtotal = q.Subtotal.Add(it.LineTotal())
	}

	if code != "" {
		var res models.EvaluationResult
		if coupon == nil {
			res = models.EvaluationResult{Code: code, Reason: models.ReasonNotFound, Discount: decimal.Zero}
			s.coupons.countEvaluation(res.Reason)
		} else {
			res = s.coupons.assess(coupon, req.UserID, q.Subtotal)
		}
		q.Coupon = &res
		q.Discount = res.Discount
	}
	q.Total = q.Subtotal.Sub(q.Discount)

	if len(missing) > 0 {
		s.log.Warn("cart references unavailable products",
			zap.String("session", req.SessionID),
			zap.Int("missing", len(missing)),
		)
	}
	return q, coupon, nil
}

// reprice replaces cart prices with catalog prices and splits off lines
// whose product is no longer sold.
func (s *CheckoutService) reprice(ctx context.Context, lines []models.LineItem) (priced, missing []models.LineItem, err error) {
	priced = make([]models.LineItem, 0, len(lines))
	if s.catalog == nil || len(lines) == 0 {
		return append(priced, lines...), nil, nil
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, it := range lines {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	prices, err := s.catalog.Prices(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	for _, it := range lines {
		price, ok := prices[it.ProductID]
		if !ok {
			missing = append(missing, it)
			continue
		}
		it.UnitPrice = price
		priced = append(priced, it)
	}
	return priced, missing, nil
}

type ConfirmRequest struct {
	SessionID  string
	UserID     string
	OrderID    string
	CouponCode string
	// DiscountAmount is the discount the client was shown. It is only
	// compared with the recomputed discount; the recomputed one is stored.
	DiscountAmount decimal.Decimal
}

type Confirmation struct {
	OrderID    string               `json:"order_id"`
	Redemption *models.CommitResult `json:"redemption,omitempty"`
	Cart       cart.State           `json:"cart"`
}

// Confirm runs after the payment provider has confirmed the order. The cart
// is quoted again, the coupon must still be eligible for this user and cart,
// and the recomputed discount is committed. The cart is discarded only after
// a successful commit.
func (s *CheckoutService) Confirm(ctx context.Context, req ConfirmRequest) (out Confirmation, err error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.Confirm")
	defer func() { endSpan(span, err) }()

	if req.SessionID == "" {
		return Confirmation{}, errors.Wrap(models.ErrValidation, "session id is required")
	}
	if req.OrderID == "" {
		return Confirmation{}, errors.Wrap(models.ErrValidation, "order id is required")
	}
	code := models.NormalizeCode(req.CouponCode)
	span.SetAttributes(attribute.String("cart.session", req.SessionID), attribute.String("order.id", req.OrderID))

	out = Confirmation{OrderID: req.OrderID}
	if code != "" {
		q, coupon, err := s.quote(ctx, QuoteRequest{SessionID: req.SessionID, UserID: req.UserID, CouponCode: code})
		if err != nil {
			return Confirmation{}, err
		}

		amount := q.Discount
		if prior, ok := recordedRedemption(coupon, req.OrderID); ok {
			// Retried confirmation: the cart is gone, replay the stored amount
			// so the commit reports the existing redemption.
			amount = prior.DiscountAmount
		} else if !q.Coupon.IsValid {
			s.coupons.countRedemption("rejected")
			return Confirmation{}, rejection(*q.Coupon)
		} else if !req.DiscountAmount.IsZero() && !req.DiscountAmount.Round(2).Equal(amount.Round(2)) {
			s.log.Warn("client discount differs from computed discount",
				zap.String("order_id", req.OrderID),
				zap.String("client", req.DiscountAmount.StringFixed(2)),
				zap.String("computed", amount.StringFixed(2)),
			)
		}

		res, err := s.coupons.Commit(ctx, models.CommitRequest{
			CouponCode:     code,
			UserID:         req.UserID,
			OrderID:        req.OrderID,
			DiscountAmount: amount,
		})
		if err != nil {
			return Confirmation{}, err
		}
		out.Redemption = &res
	}

	if err := s.carts.Discard(ctx, req.SessionID); err != nil {
		return Confirmation{}, err
	}
	out.Cart = cart.Empty()

	s.log.Info("checkout confirmed",
		zap.String("session", req.SessionID),
		zap.String("order_id", req.OrderID),
		zap.Bool("coupon", out.Redemption != nil),
	)
	return out, nil
}

func recordedRedemption(c *models.Coupon, orderID string) (models.Redemption, bool) {
	if c == nil {
		return models.Redemption{}, false
	}
	return c.RedemptionFor(orderID)
}

// rejection maps an ineligible evaluation onto the error a commit of the
// same coupon would have produced.
func rejection(res models.EvaluationResult) error {
	switch res.Reason {
	case models.ReasonNotFound:
		return errors.Wrapf(models.ErrNotFound, "coupon %s", res.Code)
	case models.ReasonUsageExhausted, models.ReasonUserLimitReached:
		return errors.Wrapf(repository.ErrUsageExhausted, "coupon %s: %s", res.Code, res.Reason)
	default:
		return errors.Wrapf(ErrCouponRejected, "coupon %s: %s", res.Code, res.Reason)
	}
}
