package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"xquisito-tap/internal/checkout"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/navigation"
	"xquisito-tap/internal/pricing"
)

type tipRequest struct {
	TipPercentage *float64 `json:"tipPercentage"`
	CustomTip     *float64 `json:"customTip"`
}

// selection applies percentage first so a custom amount, when sent, wins.
func (t tipRequest) selection() pricing.TipSelection {
	var sel pricing.TipSelection
	if t.TipPercentage != nil {
		sel.SelectPercentage(*t.TipPercentage)
	}
	if t.CustomTip != nil {
		sel.SetCustom(*t.CustomTip)
	}
	return sel
}

type quoteRequest struct {
	tipRequest
	CardBrand string `json:"cardBrand"`
	MSIMonths int    `json:"msiMonths"`
}

type tierQuote struct {
	Months        int     `json:"months"`
	Rate          float64 `json:"rate"`
	MinimumAmount float64 `json:"minimumAmount"`
	DisplayTotal  float64 `json:"displayTotal"`
	Monthly       float64 `json:"monthly"`
}

type quoteResponse struct {
	Breakdown       pricing.Breakdown `json:"breakdown"`
	CheckoutAllowed bool              `json:"checkoutAllowed"`
	MinimumAmount   float64           `json:"minimumAmount"`
	Tiers           []tierQuote       `json:"tiers"`
	Selected        *tierQuote        `json:"selected,omitempty"`
}

func toTierQuote(q pricing.Quote) tierQuote {
	return tierQuote{
		Months:        q.Tier.Months,
		Rate:          q.Tier.Rate,
		MinimumAmount: q.Tier.MinimumAmount,
		DisplayTotal:  pricing.Round2(q.DisplayTotal),
		Monthly:       pricing.Round2(q.Monthly),
	}
}

// quote prices the current cart: the breakdown, the minimum gate and the installment tiers.
func (h *handlers) quote(c *gin.Context) {
	var req quoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWith(c, http.StatusBadRequest, "validation", err.Error())
			return
		}
	}
	e, _, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	base := e.Snapshot().TotalPrice
	tip := req.selection()
	b := h.deps.Calculator.Compute(base, tip.Amount(base))

	out := quoteResponse{
		Breakdown:       b.Rounded(),
		CheckoutAllowed: h.deps.Calculator.CheckoutAllowed(b),
		MinimumAmount:   h.deps.Calculator.Minimum(),
		Tiers:           []tierQuote{},
	}
	if req.CardBrand != "" {
		for _, tier := range h.deps.Schedule.Available(req.CardBrand, b.TotalAmountCharged) {
			tq := toTierQuote(pricing.QuoteFor(b.TotalAmountCharged, tier))
			out.Tiers = append(out.Tiers, tq)
			if tier.Months == req.MSIMonths {
				sel := tq
				out.Selected = &sel
			}
		}
	}
	respond(c, http.StatusOK, out)
}

type checkoutRequest struct {
	tipRequest
	PaymentMethodID string            `json:"paymentMethodId"`
	Customer        checkout.Customer `json:"customer"`
	MSIMonths       int               `json:"msiMonths"`
}

type checkoutResponse struct {
	checkout.Result
	NavigateTo string `json:"navigateTo"`
}

// paymentMethod resolves the selected method against the device's saved cards.
// An unknown id resolves to nil, which checkout reports as a missing method.
func (h *handlers) paymentMethod(c *gin.Context, id string) (*domain.PaymentMethod, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	if id == domain.SystemCardID {
		pm := systemCard()
		return &pm, nil
	}
	methods, err := h.api(c).ListPaymentMethods(c.Request.Context())
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	ctx := c.Request.Context()
	device := deviceFrom(c)
	scope := scopeFrom(c)

	e, id, err := h.engine(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	api := h.api(c)
	if strings.TrimSpace(req.Customer.Name) == "" && id.Mode == domain.ModeAuthenticated {
		if p, err := api.GetProfile(ctx); err == nil {
			req.Customer.Name = p.FullName()
		}
	}
	pm, err := h.paymentMethod(c, req.PaymentMethodID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	snap := snapshotFrom(c)
	res, err := h.deps.Checkout.Checkout(ctx, checkout.Request{
		Device:         device,
		Scope:          scope,
		Identity:       id,
		Customer:       req.Customer,
		PaymentMethod:  pm,
		Tip:            req.selection(),
		MSIMonths:      req.MSIMonths,
		RestaurantName: snap.Restaurant.Name,
		API:            api,
		Cart:           e,
		Restaurant:     h.deps.Restaurants.For(device),
		Animation:      h.animations.start(device, scope),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, checkoutResponse{
		Result:     res,
		NavigateTo: navigation.Scoped(scope, "/order-confirmation/"+res.TapOrderID),
	})
}

// storedScope is the scope of the device's last scoped request.
func (h *handlers) storedScope(c *gin.Context) (domain.Scope, bool) {
	scope, ok, err := h.session(c).Scope(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return domain.Scope{}, false
	}
	if !ok {
		abortWith(c, http.StatusNotFound, "not_found", "no restaurant selected")
		return domain.Scope{}, false
	}
	return scope, true
}

func (h *handlers) getProgress(c *gin.Context) {
	scope, ok := h.storedScope(c)
	if !ok {
		return
	}
	p, err := h.deps.Checkout.Progress(c.Request.Context(), deviceFrom(c), scope)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if p == nil {
		abortWith(c, http.StatusNotFound, "not_found", "no checkout in progress")
		return
	}
	respond(c, http.StatusOK, p)
}

func (h *handlers) discardProgress(c *gin.Context) {
	scope, ok := h.storedScope(c)
	if !ok {
		return
	}
	if err := h.deps.Checkout.DiscardProgress(c.Request.Context(), deviceFrom(c), scope); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
