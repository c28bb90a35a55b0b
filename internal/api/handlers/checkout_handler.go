package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/service"
)

type QuoteBody struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	CouponCode string `json:"coupon_code,omitempty"`
}

type ConfirmBody struct {
	SessionID      string          `json:"session_id"`
	UserID         string          `json:"user_id"`
	OrderID        string          `json:"order_id"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type CheckoutHandler struct {
	svc *service.CheckoutService
	log *zap.Logger
}

func NewCheckoutHandler(svc *service.CheckoutService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, log: log}
}

// Quote handles POST /checkout/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var body QuoteBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	q, err := h.svc.Quote(r.Context(), service.QuoteRequest{
		SessionID:  body.SessionID,
		UserID:     body.UserID,
		CouponCode: body.CouponCode,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Confirm handles POST /checkout/confirm, called once payment is confirmed.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var body ConfirmBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	out, err := h.svc.Confirm(r.Context(), service.ConfirmRequest{
		SessionID:      body.SessionID,
		UserID:         body.UserID,
		OrderID:        body.OrderID,
		CouponCode:     body.CouponCode,
		DiscountAmount: body.DiscountAmount,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
