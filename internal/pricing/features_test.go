package pricing_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"xquisito-tap/internal/pricing"
)

type pricingTestContext struct {
	calc      *pricing.Calculator
	base      float64
	tip       pricing.TipSelection
	breakdown pricing.Breakdown
	quote     pricing.Quote
	tiers     []pricing.Tier
}

func (c *pricingTestContext) reset() {
	c.calc = pricing.NewCalculator(pricing.DefaultRates, pricing.MinimumAmount)
	c.base = 0
	c.tip = pricing.TipSelection{}
	c.breakdown = pricing.Breakdown{}
	c.quote = pricing.Quote{}
	c.tiers = nil
}

func (c *pricingTestContext) aCartSubtotalOf(amount float64) error {
	c.base = amount
	return nil
}

func (c *pricingTestContext) noTip() error {
	c.tip = pricing.TipSelection{}
	return nil
}

func (c *pricingTestContext) aTipOfPercent(pct float64) error {
	c.tip.SelectPercentage(pct)
	return nil
}

func (c *pricingTestContext) aCustomTipOf(amount float64) error {
	c.tip.SetCustom(amount)
	return nil
}

func (c *pricingTestContext) theBreakdownIsComputed() error {
	c.breakdown = c.calc.Compute(c.base, c.tip.Amount(c.base))
	return nil
}

func (c *pricingTestContext) anInstallmentQuoteIsRequested(months int, brand string) error {
	tier, ok := pricing.DefaultSchedule.Find(brand, months)
	if !ok {
		return fmt.Errorf("no %d month tier for %s", months, brand)
	}
	c.quote = pricing.QuoteFor(c.breakdown.TotalAmountCharged, tier)
	return nil
}

func (c *pricingTestContext) installmentTiersAreListed(brand string, total float64) error {
	c.tiers = pricing.DefaultSchedule.Available(brand, total)
	return nil
}

func expectRounded(label string, got, want float64) error {
	if pricing.Round2(got) != want {
		return fmt.Errorf("expected %s %.2f, got %.2f", label, want, pricing.Round2(got))
	}
	return nil
}

func (c *pricingTestContext) theTotalChargedIs(want float64) error {
	return expectRounded("total", c.breakdown.TotalAmountCharged, want)
}

func (c *pricingTestContext) theTipAmountIs(want float64) error {
	return expectRounded("tip", c.breakdown.TipAmount, want)
}

func (c *pricingTestContext) theTipIVAIs(want float64) error {
	return expectRounded("tip iva", c.breakdown.IVATip, want)
}

func (c *pricingTestContext) theClientCommissionIs(want float64) error {
	return expectRounded("client commission", c.breakdown.XquisitoCommissionClient, want)
}

func (c *pricingTestContext) checkoutIsDisabled() error {
	if c.calc.CheckoutAllowed(c.breakdown) {
		return fmt.Errorf("expected checkout disabled at %.2f", c.breakdown.TotalAmountCharged)
	}
	return nil
}

func (c *pricingTestContext) checkoutIsEnabled() error {
	if !c.calc.CheckoutAllowed(c.breakdown) {
		return fmt.Errorf("expected checkout enabled at %.2f", c.breakdown.TotalAmountCharged)
	}
	return nil
}

func (c *pricingTestContext) theInstallmentDisplayTotalIs(want float64) error {
	if c.quote.BaseTotal != c.breakdown.TotalAmountCharged {
		return fmt.Errorf("quote changed the charged total")
	}
	return expectRounded("display total", c.quote.DisplayTotal, want)
}

func (c *pricingTestContext) theMonthlyInstallmentIs(want float64) error {
	return expectRounded("monthly", c.quote.Monthly, want)
}

func (c *pricingTestContext) tiersAreOffered(n int) error {
	if len(c.tiers) != n {
		return fmt.Errorf("expected %d tiers, got %d", n, len(c.tiers))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &pricingTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a cart subtotal of (\d+(?:\.\d+)?)$`, tc.aCartSubtotalOf)
	ctx.Step(`^no tip$`, tc.noTip)
	ctx.Step(`^a tip of (\d+(?:\.\d+)?) percent$`, tc.aTipOfPercent)
	ctx.Step(`^a custom tip of (\d+(?:\.\d+)?)$`, tc.aCustomTipOf)

	ctx.Step(`^the breakdown is computed$`, tc.theBreakdownIsComputed)
	ctx.Step(`^a (\d+) month installment quote is requested for a "([^"]*)" card$`, tc.anInstallmentQuoteIsRequested)
	ctx.Step(`^installment tiers are listed for a "([^"]*)" card and total (\d+(?:\.\d+)?)$`, tc.installmentTiersAreListed)

	ctx.Step(`^the total charged is (\d+(?:\.\d+)?)$`, tc.theTotalChargedIs)
	ctx.Step(`^the tip amount is (\d+(?:\.\d+)?)$`, tc.theTipAmountIs)
	ctx.Step(`^the tip IVA is (\d+(?:\.\d+)?)$`, tc.theTipIVAIs)
	ctx.Step(`^the client commission is (\d+(?:\.\d+)?)$`, tc.theClientCommissionIs)
	ctx.Step(`^checkout is disabled$`, tc.checkoutIsDisabled)
	ctx.Step(`^checkout is enabled$`, tc.checkoutIsEnabled)
	ctx.Step(`^the installment display total is (\d+(?:\.\d+)?)$`, tc.theInstallmentDisplayTotalIs)
	ctx.Step(`^the monthly installment is (\d+(?:\.\d+)?)$`, tc.theMonthlyInstallmentIs)
	ctx.Step(`^(\d+) tiers are offered$`, tc.tiersAreOffered)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/pricing.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
