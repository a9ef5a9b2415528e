package domain

import (
	"sort"
	"strconv"
	"strings"
)

type MenuSection struct {
	ID    int        `json:"id"`
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

type MenuItem struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Price        float64       `json:"price"`
	Discount     float64       `json:"discount"`
	Images       []string      `json:"images,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
}

// BasePrice is the unit price after the percentage discount.
func (m MenuItem) BasePrice() float64 {
	if m.Discount <= 0 || m.Discount > 100 {
		return m.Price
	}
	return m.Price * (1 - m.Discount/100)
}

// Field returns the custom field with the given id.
func (m MenuItem) Field(id string) (CustomField, bool) {
	for _, f := range m.CustomFields {
		if f.ID == id {
			return f, true
		}
	}
	return CustomField{}, false
}

// FieldType is the declared selection shape of a custom field.
type FieldType string

const (
	FieldSingle         FieldType = "dropdown"
	FieldSingleQuantity FieldType = "dropdown-quantity"
	FieldMulti          FieldType = "checkboxes"
)

type CustomField struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Type          FieldType           `json:"type"`
	Options       []CustomFieldOption `json:"options"`
	Required      bool                `json:"required"`
	MaxSelections int                 `json:"max_selections,omitempty"`
}

// Option returns the option with the given id.
func (f CustomField) Option(id string) (CustomFieldOption, bool) {
	for _, o := range f.Options {
		if o.ID == id {
			return o, true
		}
	}
	return CustomFieldOption{}, false
}

type CustomFieldOption struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Selection is a diner's choice for one custom field. The concrete type is
// determined by the field's declared type.
type Selection interface {
	Field() string
	// Picks returns option id -> quantity.
	Picks() map[string]int
}

// SingleChoice selects exactly one option of a dropdown field.
type SingleChoice struct {
	FieldID  string
	OptionID string
}

func (s SingleChoice) Field() string { return s.FieldID }

func (s SingleChoice) Picks() map[string]int {
	if s.OptionID == "" {
		return map[string]int{}
	}
	return map[string]int{s.OptionID: 1}
}

// MultiChoice selects any number of options of a checkbox field.
type MultiChoice struct {
	FieldID   string
	OptionIDs []string
}

func (s MultiChoice) Field() string { return s.FieldID }

func (s MultiChoice) Picks() map[string]int {
	out := make(map[string]int, len(s.OptionIDs))
	for _, id := range s.OptionIDs {
		out[id] = 1
	}
	return out
}

// QuantityMap selects options with a per-option quantity.
type QuantityMap struct {
	FieldID    string
	Quantities map[string]int
}

func (s QuantityMap) Field() string { return s.FieldID }

func (s QuantityMap) Picks() map[string]int {
	out := make(map[string]int, len(s.Quantities))
	for id, qty := range s.Quantities {
		if qty > 0 {
			out[id] = qty
		}
	}
	return out
}

// SelectedField is the resolved, wire-level form of a selection stored on cart lines.
type SelectedField struct {
	FieldID         string           `json:"field_id"`
	FieldName       string           `json:"field_name"`
	SelectedOptions []SelectedOption `json:"selected_options"`
}

type SelectedOption struct {
	OptionID   string  `json:"option_id"`
	OptionName string  `json:"option_name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// ExtraPrice sums option price times quantity over every selected option.
func ExtraPrice(fields []SelectedField) float64 {
	var total float64
	for _, f := range fields {
		for _, o := range f.SelectedOptions {
			qty := o.Quantity
			if qty <= 0 {
				qty = 1
			}
			total += o.Price * float64(qty)
		}
	}
	return total
}

// Signature renders selections canonically so that two selection sets compare
// equal regardless of field or option order. Ids are length-prefixed, so no id
// content can be mistaken for a separator.
func Signature(fields []SelectedField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f.SelectedOptions) == 0 {
			continue
		}
		opts := make([]string, 0, len(f.SelectedOptions))
		for _, o := range f.SelectedOptions {
			qty := o.Quantity
			if qty <= 0 {
				qty = 1
			}
			opts = append(opts, sigID(o.OptionID)+"x"+strconv.Itoa(qty))
		}
		sort.Strings(opts)
		parts = append(parts, sigID(f.FieldID)+"="+strings.Join(opts, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func sigID(id string) string {
	return strconv.Itoa(len(id)) + ":" + id
}
