package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/cart"
	"github.com/adilrza0/qusamba-sub001/internal/models"
	"github.com/adilrza0/qusamba-sub001/internal/service"
)

type AddItemBody struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

type LineKeyBody struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity,omitempty"`
}

func (b LineKeyBody) key() models.LineKey {
	return models.LineKey{ProductID: b.ProductID, Color: b.Color, Size: b.Size}
}

type CartHandler struct {
	carts service.CartStore
	log   *zap.Logger
}

func NewCartHandler(carts service.CartStore, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

func session(r *http.Request) (string, error) {
	s := strings.TrimSpace(chi.URLParam(r, "session"))
	if s == "" {
		return "", errors.Wrap(models.ErrValidation, "session id is required")
	}
	return s, nil
}

func (h *CartHandler) dispatch(w http.ResponseWriter, r *http.Request, cmd cart.Command) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	state, err := h.carts.Dispatch(r.Context(), sess, cmd)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetCart handles GET /carts/{session}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	state, err := h.carts.Load(r.Context(), sess)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// AddItem handles POST /carts/{session}/items. Adding a line that is already
// in the cart bumps its quantity by one.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body AddItemBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if strings.TrimSpace(body.ProductID) == "" {
		writeError(w, r, h.log, errors.Wrap(models.ErrValidation, "product_id is required"))
		return
	}
	if body.UnitPrice.IsNegative() {
		writeError(w, r, h.log, errors.Wrap(models.ErrValidation, "unit_price must not be negative"))
		return
	}

	h.dispatch(w, r, cart.AddItem{Item: models.LineItem{
		ProductID: body.ProductID,
		Name:      body.Name,
		UnitPrice: body.UnitPrice,
		Color:     body.Color,
		Size:      body.Size,
		ImageRef:  body.ImageRef,
	}})
}

// UpdateQuantity handles PATCH /carts/{session}/items
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var body LineKeyBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.dispatch(w, r, cart.UpdateQuantity{Key: body.key(), Quantity: body.Quantity})
}

// RemoveItem handles DELETE /carts/{session}/items
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var body LineKeyBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.dispatch(w, r, cart.RemoveItem{Key: body.key()})
}

// ClearCart handles DELETE /carts/{session}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, cart.ClearCart{})
}
