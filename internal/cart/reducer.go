// Package cart holds the session cart: a pure reducer over line items and a
// store that persists each resulting state.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/adilrza0/qusamba-sub001/internal/models"
)

// State is an immutable snapshot. Total and ItemCount are always derived
// from Items by Reduce.
type State struct {
	Items     []models.LineItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

func Empty() State {
	return State{Items: []models.LineItem{}, Total: decimal.Zero}
}

// Command is one of AddItem, UpdateQuantity, RemoveItem or ClearCart.
type Command interface {
	name() string
}

// AddItem increments an existing row by one, or appends the item with a
// quantity of one. The candidate's own Quantity is ignored.
type AddItem struct {
	Item models.LineItem
}

// UpdateQuantity sets a row's quantity, clamped to a minimum of 1. Rows are
// only ever deleted through RemoveItem.
type UpdateQuantity struct {
	Key      models.LineKey
	Quantity int
}

type RemoveItem struct {
	Key models.LineKey
}

type ClearCart struct{}

func (AddItem) name() string        { return "add_item" }
func (UpdateQuantity) name() string { return "update_quantity" }
func (RemoveItem) name() string     { return "remove_item" }
func (ClearCart) name() string      { return "clear_cart" }

// CommandName is the metric/log label for cmd.
func CommandName(cmd Command) string {
	return cmd.name()
}

// Reduce applies cmd to s and returns the next state. s is not modified.
func Reduce(s State, cmd Command) State {
	items := make([]models.LineItem, len(s.Items), len(s.Items)+1)
	copy(items, s.Items)

	switch c := cmd.(type) {
	case AddItem:
		if i := indexOf(items, c.Item.Key()); i >= 0 {
			items[i].Quantity++
		} else {
			item := c.Item
			item.Quantity = 1
			items = append(items, item)
		}

	case UpdateQuantity:
		if i := indexOf(items, c.Key); i >= 0 {
			q := c.Quantity
			if q < 1 {
				q = 1
			}
			items[i].Quantity = q
		}

	case RemoveItem:
		if i := indexOf(items, c.Key); i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}

	case ClearCart:
		items = items[:0]
	}

	return derive(items)
}

func indexOf(items []models.LineItem, key models.LineKey) int {
	for i, it := range items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

func derive(items []models.LineItem) State {
	total := decimal.Zero
	count := 0
	for _, it := range items {
		total = total.Add(it.LineTotal())
		count += it.Quantity
	}
	return State{Items: items, Total: total, ItemCount: count}
}

// Restore rebuilds a state from persisted items. It reports false when the
// items break the cart invariants (repeated keys, non-positive quantities,
// negative prices).
func Restore(items []models.LineItem) (State, bool) {
	seen := make(map[models.LineKey]bool, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() || seen[it.Key()] {
			return Empty(), false
		}
		seen[it.Key()] = true
	}
	if items == nil {
		items = []models.LineItem{}
	}
	return derive(items), true
}
