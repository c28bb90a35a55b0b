package models

import "github.com/shopspring/decimal"

// LineKey identifies a cart row. The same product in two variants is two
// rows.
type LineKey struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image_ref,omitempty"`
}

func (li LineItem) Key() LineKey {
	return LineKey{ProductID: li.ProductID, Color: li.Color, Size: li.Size}
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
