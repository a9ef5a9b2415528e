package pricing

// TipSelection holds either a percentage tip or a custom amount, never both.
type TipSelection struct {
	Percentage float64 `json:"percentage,omitempty"`
	Custom     float64 `json:"custom,omitempty"`
}

// SelectPercentage replaces any custom tip with a percentage of the base.
func (t *TipSelection) SelectPercentage(pct float64) {
	t.Percentage = pct
	t.Custom = 0
}

// SetCustom replaces any percentage tip with an explicit amount.
func (t *TipSelection) SetCustom(amount float64) {
	t.Custom = amount
	t.Percentage = 0
}

// Amount resolves the tip for a base amount. A positive custom amount always wins.
func (t TipSelection) Amount(base float64) float64 {
	if t.Custom > 0 {
		return t.Custom
	}
	if t.Percentage > 0 && base > 0 {
		return base * t.Percentage / 100
	}
	return 0
}
