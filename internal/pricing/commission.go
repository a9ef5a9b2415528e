// Package pricing turns a cart subtotal and a tip into the full charged amount.
//
// Every value in a Breakdown keeps full precision; rounding happens only at the
// display/charge boundary through Round2.
package pricing

import "github.com/shopspring/decimal"

// IVA is the value-added tax applied to the tip and to platform commissions.
const IVA = 0.16

// MinimumAmount is the smallest total (after tip, commission and IVA) that can be charged.
const MinimumAmount = 20.0

// Rates holds the commission rates applied on subtotalForCommission.
type Rates struct {
	IVA            float64 `json:"iva" yaml:"iva"`
	ClientRate     float64 `json:"client_rate" yaml:"client_rate"`
	RestaurantRate float64 `json:"restaurant_rate" yaml:"restaurant_rate"`
}

// DefaultRates is the canonical commission split.
var DefaultRates = Rates{
	IVA:            IVA,
	ClientRate:     0.025,
	RestaurantRate: 0.033,
}

// Total is the combined platform commission rate.
func (r Rates) Total() float64 {
	return r.ClientRate + r.RestaurantRate
}

// ClientShare is the fraction of the commission paid by the diner.
func (r Rates) ClientShare() float64 {
	if r.Total() == 0 {
		return 0
	}
	return r.ClientRate / r.Total()
}

type Breakdown struct {
	BaseAmount                   float64 `json:"baseAmount"`
	TipAmount                    float64 `json:"tipAmount"`
	IVATip                       float64 `json:"ivaTip"`
	SubtotalForCommission        float64 `json:"subtotalForCommission"`
	XquisitoCommissionTotal      float64 `json:"xquisitoCommissionTotal"`
	XquisitoCommissionClient     float64 `json:"xquisitoCommissionClient"`
	XquisitoCommissionRestaurant float64 `json:"xquisitoCommissionRestaurant"`
	IVAXquisitoClient            float64 `json:"ivaXquisitoClient"`
	IVAXquisitoRestaurant        float64 `json:"ivaXquisitoRestaurant"`
	XquisitoClientCharge         float64 `json:"xquisitoClientCharge"`
	XquisitoRestaurantCharge     float64 `json:"xquisitoRestaurantCharge"`
	TotalAmountCharged           float64 `json:"totalAmountCharged"`
	Rates                        Rates   `json:"rates"`
}

// Calculator computes breakdowns with a fixed set of rates.
type Calculator struct {
	rates   Rates
	minimum float64
}

// NewCalculator returns a Calculator; zero rates fall back to DefaultRates.
func NewCalculator(rates Rates, minimum float64) *Calculator {
	if rates == (Rates{}) {
		rates = DefaultRates
	}
	if minimum <= 0 {
		minimum = MinimumAmount
	}
	return &Calculator{rates: rates, minimum: minimum}
}

// Compute is the single commission formula used for both display and charge.
// Negative inputs are treated as zero.
func (c *Calculator) Compute(baseAmount, tipAmount float64) Breakdown {
	if baseAmount < 0 {
		baseAmount = 0
	}
	if tipAmount < 0 {
		tipAmount = 0
	}
	r := c.rates
	subtotal := baseAmount + tipAmount

	commissionClient := subtotal * r.ClientRate
	commissionRestaurant := subtotal * r.RestaurantRate
	ivaClient := commissionClient * r.IVA
	ivaRestaurant := commissionRestaurant * r.IVA
	ivaTip := tipAmount * r.IVA

	clientCharge := commissionClient + ivaClient

	return Breakdown{
		BaseAmount:                   baseAmount,
		TipAmount:                    tipAmount,
		IVATip:                       ivaTip,
		SubtotalForCommission:        subtotal,
		XquisitoCommissionTotal:      commissionClient + commissionRestaurant,
		XquisitoCommissionClient:     commissionClient,
		XquisitoCommissionRestaurant: commissionRestaurant,
		IVAXquisitoClient:            ivaClient,
		IVAXquisitoRestaurant:        ivaRestaurant,
		XquisitoClientCharge:         clientCharge,
		XquisitoRestaurantCharge:     commissionRestaurant + ivaRestaurant,
		TotalAmountCharged:           baseAmount + tipAmount + ivaTip + clientCharge,
		Rates:                        r,
	}
}

// Minimum returns the configured minimum charge.
func (c *Calculator) Minimum() float64 {
	return c.minimum
}

// CheckoutAllowed gates checkout on the total after tip, commission and IVA.
func (c *Calculator) CheckoutAllowed(b Breakdown) bool {
	return b.TotalAmountCharged >= c.minimum
}

// Compute applies DefaultRates.
func Compute(baseAmount, tipAmount float64) Breakdown {
	return defaultCalculator.Compute(baseAmount, tipAmount)
}

var defaultCalculator = NewCalculator(DefaultRates, MinimumAmount)

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Rounded returns a copy with every monetary field rounded for display or receipts.
func (b Breakdown) Rounded() Breakdown {
	out := b
	out.BaseAmount = Round2(b.BaseAmount)
	out.TipAmount = Round2(b.TipAmount)
	out.IVATip = Round2(b.IVATip)
	out.SubtotalForCommission = Round2(b.SubtotalForCommission)
	out.XquisitoCommissionTotal = Round2(b.XquisitoCommissionTotal)
	out.XquisitoCommissionClient = Round2(b.XquisitoCommissionClient)
	out.XquisitoCommissionRestaurant = Round2(b.XquisitoCommissionRestaurant)
	out.IVAXquisitoClient = Round2(b.IVAXquisitoClient)
	out.IVAXquisitoRestaurant = Round2(b.IVAXquisitoRestaurant)
	out.XquisitoClientCharge = Round2(b.XquisitoClientCharge)
	out.XquisitoRestaurantCharge = Round2(b.XquisitoRestaurantCharge)
	out.TotalAmountCharged = Round2(b.TotalAmountCharged)
	return out
}

// ChargeAmount is the amount sent to the payment processor.
func (b Breakdown) ChargeAmount() float64 {
	return Round2(b.TotalAmountCharged)
}
