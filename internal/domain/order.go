package domain

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

type DishStatus string

const (
	DishPending    DishStatus = "pending"
	DishInProgress DishStatus = "in_progress"
	DishReady      DishStatus = "ready"
	DishDelivered  DishStatus = "delivered"
)

// DishOrderLine is the payload for creating one dish order per cart line.
type DishOrderLine struct {
	Item            string          `json:"item"`
	MenuItemID      int             `json:"menu_item_id"`
	Price           float64         `json:"price"`
	Quantity        int             `json:"quantity"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	GuestID         string          `json:"guest_id,omitempty"`
	Images          []string        `json:"images,omitempty"`
	CustomFields    []SelectedField `json:"custom_fields,omitempty"`
	ExtraPrice      float64         `json:"extra_price"`
	PaymentMethodID *string         `json:"payment_method_id"`
}

type DishOrder struct {
	ID            string          `json:"id"`
	TapOrderID    string          `json:"tap_order_id"`
	Item          string          `json:"item"`
	Quantity      int             `json:"quantity"`
	Price         float64         `json:"price"`
	ExtraPrice    float64         `json:"extra_price"`
	Status        DishStatus      `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CustomFields  []SelectedField `json:"custom_fields,omitempty"`
	Images        []string        `json:"images,omitempty"`
}

type TapOrder struct {
	ID            string        `json:"id"`
	RestaurantID  int           `json:"restaurant_id"`
	BranchNumber  int           `json:"branch_number"`
	TableNumber   string        `json:"table_number"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   OrderStatus   `json:"order_status"`
	TotalAmount   float64       `json:"total_amount"`
	Dishes        []DishOrder   `json:"dishes"`
	CreatedAt     time.Time     `json:"created_at"`
}
