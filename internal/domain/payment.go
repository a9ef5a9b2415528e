package domain

// SystemCardID is the id of the built-in payment method that needs no processor.
const SystemCardID = "system-default-card"

type PaymentMethod struct {
	ID             string `json:"id"`
	LastFourDigits string `json:"last_four_digits"`
	CardBrand      string `json:"card_brand"`
	CardType       string `json:"card_type,omitempty"`
	ExpiryMonth    int    `json:"expiry_month,omitempty"`
	ExpiryYear     int    `json:"expiry_year,omitempty"`
	IsDefault      bool   `json:"is_default"`
	IsSystemCard   bool   `json:"is_system_card"`
}

// IsSystem reports whether checkout can skip the external payment processor.
func (p PaymentMethod) IsSystem() bool {
	return p.IsSystemCard || p.ID == SystemCardID
}

// Reference returns the id recorded on transactions; nil for the system card.
func (p PaymentMethod) Reference() *string {
	if p.IsSystem() || p.ID == "" {
		return nil
	}
	id := p.ID
	return &id
}

// PaymentTransactionRecord is the immutable audit row written after order lines exist.
type PaymentTransactionRecord struct {
	PaymentMethodID              *string `json:"payment_method_id"`
	RestaurantID                 int     `json:"restaurant_id"`
	TapOrderID                   string  `json:"id_table_order,omitempty"`
	BaseAmount                   float64 `json:"base_amount"`
	TipAmount                    float64 `json:"tip_amount"`
	IVATip                       float64 `json:"iva_tip"`
	XquisitoCommissionTotal      float64 `json:"xquisito_commission_total"`
	XquisitoCommissionClient     float64 `json:"xquisito_commission_client"`
	XquisitoCommissionRestaurant float64 `json:"xquisito_commission_restaurant"`
	IVAXquisitoClient            float64 `json:"iva_xquisito_client"`
	IVAXquisitoRestaurant        float64 `json:"iva_xquisito_restaurant"`
	XquisitoClientCharge         float64 `json:"xquisito_client_charge"`
	XquisitoRestaurantCharge     float64 `json:"xquisito_restaurant_charge"`
	XquisitoRateApplied          float64 `json:"xquisito_rate_applied"`
	TotalAmountCharged           float64 `json:"total_amount_charged"`
	SubtotalForCommission        float64 `json:"subtotal_for_commission"`
	Currency                     string  `json:"currency"`
	MSIMonths                    int     `json:"msi_months,omitempty"`
	MSIDisplayTotal              float64 `json:"msi_display_total,omitempty"`
}
