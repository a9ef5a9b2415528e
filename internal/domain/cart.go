package domain

import "strconv"

type CartItem struct {
	CartItemID   string          `json:"cart_item_id"`
	MenuItemID   int             `json:"menu_item_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Images       []string        `json:"images,omitempty"`
	BasePrice    float64         `json:"base_price"`
	Quantity     int             `json:"quantity"`
	CustomFields []SelectedField `json:"custom_fields,omitempty"`
	ExtraPrice   float64         `json:"extra_price"`
}

// LineKey identifies a cart line by menu item and custom-field signature.
func (i CartItem) LineKey() string {
	return LineKey(i.MenuItemID, Signature(i.CustomFields))
}

// UnitPrice is the base price plus selected extras.
func (i CartItem) UnitPrice() float64 {
	return i.BasePrice + i.ExtraPrice
}

func (i CartItem) LineTotal() float64 {
	return i.UnitPrice() * float64(i.Quantity)
}

// LineKey builds the line identity used to merge or split cart lines.
func LineKey(menuItemID int, signature string) string {
	return strconv.Itoa(menuItemID) + "|" + signature
}

type Cart struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice float64    `json:"total_price"`
}

// Recompute derives totals from the lines.
func (c *Cart) Recompute() {
	c.TotalItems = 0
	c.TotalPrice = 0
	for _, item := range c.Items {
		c.TotalItems += item.Quantity
		c.TotalPrice += item.LineTotal()
	}
}

// Find returns the index of the line with the given key, or -1.
func (c Cart) Find(key string) int {
	for i, item := range c.Items {
		if item.LineKey() == key {
			return i
		}
	}
	return -1
}

// Clone returns a deep-enough copy for optimistic mutation.
func (c Cart) Clone() Cart {
	out := Cart{TotalItems: c.TotalItems, TotalPrice: c.TotalPrice}
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return out
}
