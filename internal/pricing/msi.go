package pricing

import "strings"

// InstallmentIVA is the VAT charged on the installment commission.
const InstallmentIVA = 1.16

// Tier is one installment (meses sin intereses) option.
type Tier struct {
	Months        int     `json:"months" yaml:"months"`
	Rate          float64 `json:"rate" yaml:"rate"`
	MinimumAmount float64 `json:"minimumAmount" yaml:"minimum_amount"`
}

// Quote is the installment view of a total. It never replaces TotalAmountCharged.
type Quote struct {
	Tier         Tier    `json:"tier"`
	BaseTotal    float64 `json:"baseTotal"`
	DisplayTotal float64 `json:"displayTotal"`
	Monthly      float64 `json:"monthly"`
}

// Schedule maps a card brand to its installment tiers.
type Schedule struct {
	Amex  []Tier `json:"amex" yaml:"amex"`
	Other []Tier `json:"other" yaml:"other"`
}

// DefaultSchedule has a richer table for amex and a coarser one for other brands.
var DefaultSchedule = Schedule{
	Amex: []Tier{
		{Months: 3, Rate: 3.25, MinimumAmount: 0},
		{Months: 6, Rate: 6.25, MinimumAmount: 0},
		{Months: 9, Rate: 8.25, MinimumAmount: 0},
		{Months: 12, Rate: 10.25, MinimumAmount: 0},
		{Months: 15, Rate: 13.25, MinimumAmount: 1200},
		{Months: 18, Rate: 15.25, MinimumAmount: 1500},
		{Months: 21, Rate: 17.25, MinimumAmount: 1800},
		{Months: 24, Rate: 19.25, MinimumAmount: 2000},
	},
	Other: []Tier{
		{Months: 3, Rate: 3.5, MinimumAmount: 300},
		{Months: 6, Rate: 5.5, MinimumAmount: 600},
		{Months: 9, Rate: 8.5, MinimumAmount: 900},
		{Months: 12, Rate: 11.5, MinimumAmount: 1200},
	},
}

// Tiers returns the table for a card brand.
func (s Schedule) Tiers(brand string) []Tier {
	if strings.EqualFold(strings.TrimSpace(brand), "amex") || strings.EqualFold(strings.TrimSpace(brand), "american express") {
		return s.Amex
	}
	return s.Other
}

// Available filters tiers the total qualifies for.
func (s Schedule) Available(brand string, total float64) []Tier {
	var out []Tier
	for _, t := range s.Tiers(brand) {
		if total >= t.MinimumAmount {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the tier with the given month count for a brand.
func (s Schedule) Find(brand string, months int) (Tier, bool) {
	for _, t := range s.Tiers(brand) {
		if t.Months == months {
			return t, true
		}
	}
	return Tier{}, false
}

// QuoteFor layers the installment surcharge on top of a charged total.
func QuoteFor(total float64, tier Tier) Quote {
	display := total * (1 + tier.Rate/100) * InstallmentIVA
	q := Quote{Tier: tier, BaseTotal: total, DisplayTotal: display}
	if tier.Months > 0 {
		q.Monthly = display / float64(tier.Months)
	}
	return q
}
