package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/models"
	"github.com/adilrza0/qusamba-sub001/internal/service"
)

// --- Request / Response DTOs ---

type CouponRequest struct {
	Code               string           `json:"coupon_code"`
	Description        string           `json:"description,omitempty"`
	DiscountType       string           `json:"discount_type"`
	DiscountValue      decimal.Decimal  `json:"discount_value"`
	MaxDiscount        *decimal.Decimal `json:"max_discount,omitempty"`
	MinimumOrderAmount decimal.Decimal  `json:"minimum_order_amount"`
	MaximumOrderAmount *decimal.Decimal `json:"maximum_order_amount,omitempty"`
	UsageLimit         *int             `json:"usage_limit,omitempty"`
	UsageLimitPerUser  int              `json:"usage_limit_per_user,omitempty"`
	StartDate          time.Time        `json:"start_date"`
	EndDate            time.Time        `json:"end_date"`
	ApplicableUsers    []string         `json:"applicable_users,omitempty"`
	IsActive           *bool            `json:"is_active,omitempty"`
}

func (req CouponRequest) toModel() *models.Coupon {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.Coupon{
		Code:               req.Code,
		Description:        req.Description,
		DiscountType:       models.DiscountType(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		DiscountValue:      req.DiscountValue,
		MaxDiscount:        req.MaxDiscount,
		MinimumOrderAmount: req.MinimumOrderAmount,
		MaximumOrderAmount: req.MaximumOrderAmount,
		UsageLimit:         req.UsageLimit,
		UsageLimitPerUser:  req.UsageLimitPerUser,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		ApplicableUsers:    req.ApplicableUsers,
		IsActive:           active,
	}
}

type CouponResponse struct {
	Code               string              `json:"coupon_code"`
	Description        string              `json:"description,omitempty"`
	DiscountType       models.DiscountType `json:"discount_type"`
	DiscountValue      decimal.Decimal     `json:"discount_value"`
	MaxDiscount        *decimal.Decimal    `json:"max_discount,omitempty"`
	MinimumOrderAmount decimal.Decimal     `json:"minimum_order_amount"`
	MaximumOrderAmount *decimal.Decimal    `json:"maximum_order_amount,omitempty"`
	UsageLimit         *int                `json:"usage_limit,omitempty"`
	UsageLimitPerUser  int                 `json:"usage_limit_per_user"`
	CurrentUsage       int                 `json:"current_usage"`
	RemainingUsage     *int                `json:"remaining_usage,omitempty"`
	UsagePercentage    *int                `json:"usage_percentage,omitempty"`
	StartDate          time.Time           `json:"start_date"`
	EndDate            time.Time           `json:"end_date"`
	ApplicableUsers    []string            `json:"applicable_users,omitempty"`
	IsActive           bool                `json:"is_active"`
	UsedBy             []models.Redemption `json:"used_by"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func newCouponResponse(c *models.Coupon) CouponResponse {
	usedBy := c.UsedBy
	if usedBy == nil {
		usedBy = []models.Redemption{}
	}
	return CouponResponse{
		Code:               c.Code,
		Description:        c.Description,
		DiscountType:       c.DiscountType,
		DiscountValue:      c.DiscountValue,
		MaxDiscount:        c.MaxDiscount,
		MinimumOrderAmount: c.MinimumOrderAmount,
		MaximumOrderAmount: c.MaximumOrderAmount,
		UsageLimit:         c.UsageLimit,
		UsageLimitPerUser:  c.UsageLimitPerUser,
		CurrentUsage:       c.CurrentUsage,
		RemainingUsage:     c.RemainingUsage(),
		UsagePercentage:    c.UsagePercentage(),
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		ApplicableUsers:    c.ApplicableUsers,
		IsActive:           c.IsActive,
		UsedBy:             usedBy,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type ValidateRequestBody struct {
	UserID   string          `json:"user_id"`
	Coupon   string          `json:"coupon_code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type ApplicableResponse struct {
	ApplicableCoupons []service.ApplicableCoupon `json:"applicable_coupons"`
}

// --- Handler struct & constructor ---

type CouponHandler struct {
	svc *service.CouponService
	log *zap.Logger
}

func NewCouponHandler(svc *service.CouponService, log *zap.Logger) *CouponHandler {
	return &CouponHandler{svc: svc, log: log}
}

// --- Handlers ---

// CreateCoupon handles POST /admin/coupons
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	c := req.toModel()
	if err := h.svc.Create(r.Context(), c); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCouponResponse(c))
}

// GetCoupon handles GET /admin/coupons/{code}
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newCouponResponse(c))
}

// UpdateCoupon handles PUT /admin/coupons/{code}; the code in the path wins
// over any code in the body.
func (h *CouponHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	c := req.toModel()
	if err := h.svc.Update(r.Context(), chi.URLParam(r, "code"), c); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newCouponResponse(c))
}

// DeactivateCoupon handles POST /admin/coupons/{code}/deactivate
func (h *CouponHandler) DeactivateCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "coupon_deactivated"})
}

// ValidateCoupon handles POST /coupons/validate. It only answers; nothing is
// redeemed until checkout is confirmed.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	res, err := h.svc.Evaluate(r.Context(), models.EvaluationRequest{
		UserID:     req.UserID,
		CouponCode: req.Coupon,
		Subtotal:   req.Subtotal,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetApplicableCoupons handles GET /coupons/applicable?user=&subtotal=
func (h *CouponHandler) GetApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, r, h.log, errors.Wrap(models.ErrValidation, "user required"))
		return
	}

	subtotal := decimal.Zero
	if raw := r.URL.Query().Get("subtotal"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, h.log, errors.Wrapf(models.ErrValidation, "invalid subtotal %q", raw))
			return
		}
		subtotal = d
	}

	list, err := h.svc.Applicable(r.Context(), user, subtotal)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ApplicableResponse{ApplicableCoupons: list})
}
