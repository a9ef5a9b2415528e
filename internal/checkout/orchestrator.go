// Package checkout runs the multi-call checkout saga: validate, optionally charge,
// create one dish order per cart line, finalize status, record the transaction,
// persist the receipt and finally clear the cart.
//
// There is no transactional backend endpoint. Created lines are never rolled back;
// instead a progress marker lets a retry resume where the previous attempt stopped.
package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/pricing"
	"xquisito-tap/internal/receipt"
	"xquisito-tap/internal/storage"
)

// API is the order and payment part of the backend, bound to the diner's credentials.
type API interface {
	Charge(ctx context.Context, in backend.ChargeInput) (backend.Authorization, error)
	CreateDishOrder(ctx context.Context, scope domain.Scope, line domain.DishOrderLine) (backend.DishOrderCreated, error)
	UpdateTapOrderPaymentStatus(ctx context.Context, tapOrderID string, status domain.PaymentStatus) error
	UpdateTapOrderStatus(ctx context.Context, tapOrderID string, status domain.OrderStatus) error
	MarkDishPaid(ctx context.Context, dishOrderID string) error
	RecordTransaction(ctx context.Context, rec domain.PaymentTransactionRecord) error
}

// Cart is the cart engine of the checkout scope.
type Cart interface {
	Refresh(ctx context.Context) (domain.Cart, error)
	Clear(ctx context.Context) (domain.Cart, error)
}

// OpenChecker re-evaluates opening hours at the moment of the action.
type OpenChecker interface {
	IsOpenNow() bool
}

type ReceiptWriter interface {
	Save(ctx context.Context, device string, r receipt.Receipt) error
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Request is one checkout attempt.
type Request struct {
	Device         string
	Scope          domain.Scope
	Identity       domain.Identity
	Customer       Customer
	PaymentMethod  *domain.PaymentMethod
	Tip            pricing.TipSelection
	MSIMonths      int
	RestaurantName string
	Currency       string

	API        API
	Cart       Cart
	Restaurant OpenChecker
	Animation  *Animation
	Observer   Observer
}

type Result struct {
	TapOrderID   string            `json:"tapOrderId"`
	DishOrderIDs []string          `json:"dishOrderIds"`
	Breakdown    pricing.Breakdown `json:"breakdown"`
	Installments *pricing.Quote    `json:"installments,omitempty"`
	Receipt      receipt.Receipt   `json:"receipt"`
	Resumed      bool              `json:"resumed"`
}

type Orchestrator struct {
	calc      *pricing.Calculator
	schedule  pricing.Schedule
	receipts  ReceiptWriter
	progress  progressStore
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(calc *pricing.Calculator, schedule pricing.Schedule, receipts ReceiptWriter, store storage.Store, publisher Publisher, logger *zap.Logger) *Orchestrator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Orchestrator{
		calc:      calc,
		schedule:  schedule,
		receipts:  receipts,
		progress:  progressStore{store: store},
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// begin claims the device and scope for one attempt. The returned func releases it.
func (o *Orchestrator) begin(device string, scope domain.Scope) (func(), bool) {
	key := device + "|" + scope.Key()
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return nil, false
	}
	o.inflight[key] = struct{}{}
	return func() {
		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
	}, true
}

// Progress returns the stored marker for a scope, or nil.
func (o *Orchestrator) Progress(ctx context.Context, device string, scope domain.Scope) (*Progress, error) {
	return o.progress.load(ctx, device, scope)
}

// DiscardProgress forgets an interrupted attempt so the next checkout starts fresh.
func (o *Orchestrator) DiscardProgress(ctx context.Context, device string, scope domain.Scope) error {
	return o.progress.clear(ctx, device, scope)
}

type run struct {
	o       *Orchestrator
	req     Request
	log     *zap.Logger
	state   State
	cart    domain.Cart
	bd      pricing.Breakdown
	quote   *pricing.Quote
	prog    *Progress
	resumed bool
}

func (r *run) enter(p Phase) {
	r.state.Phase = p
	if r.prog != nil {
		r.state.TapOrderID = r.prog.TapOrderID
		r.state.CreatedLines = len(r.prog.CreatedCartItemIDs)
	}
	r.log.Debug("checkout: phase", zap.String("phase", string(p)))
	if r.req.Observer != nil {
		r.req.Observer(r.state)
	}
}

func (r *run) fail(err error) (Result, error) {
	r.state.Err = err
	r.enter(PhaseFailed)
	if r.req.Animation != nil {
		r.req.Animation.Reset()
	}
	r.log.Warn("checkout: failed", zap.Error(err))
	return Result{}, err
}

// Checkout runs one attempt. Validation failures return *ValidationError before any
// backend call. The cart is cleared only after the receipt is stored and never on failure.
// A second attempt for the same device and scope while one is running is rejected.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (Result, error) {
	release, ok := o.begin(req.Device, req.Scope)
	if !ok {
		o.logger.Info("checkout: rejected concurrent attempt", zap.String("device", req.Device), zap.String("scope", req.Scope.Key()))
		return Result{}, invalid(ReasonInProgress, "a checkout for this table is already running")
	}
	defer release()

	r := &run{
		o:   o,
		req: req,
		log: o.logger.With(zap.String("device", req.Device), zap.String("scope", req.Scope.Key())),
	}
	r.enter(PhaseIdle)
	r.enter(PhaseValidating)
	if err := r.validate(ctx); err != nil {
		return r.fail(err)
	}
	if req.Animation != nil {
		req.Animation.Begin()
	}

	// The diner may navigate away; downstream calls must finish regardless.
	ctx = context.WithoutCancel(ctx)

	if err := r.charge(ctx); err != nil {
		return r.fail(err)
	}
	if err := r.createDishOrders(ctx); err != nil {
		return r.fail(err)
	}
	r.finalize(ctx)
	r.recordTransaction(ctx)

	r.enter(PhasePersistingReceipt)
	rec := r.buildReceipt()
	if err := o.receipts.Save(ctx, req.Device, rec); err != nil {
		return r.fail(fmt.Errorf("persist receipt: %w", err))
	}

	r.enter(PhaseClearingCart)
	if _, err := req.Cart.Clear(ctx); err != nil {
		r.log.Error("checkout: clear cart failed", zap.Error(err))
	}
	if err := o.progress.clear(ctx, req.Device, req.Scope); err != nil {
		r.log.Warn("checkout: clear progress failed", zap.Error(err))
	}

	r.publish(ctx)
	r.enter(PhaseDone)
	if req.Animation != nil {
		req.Animation.Complete(r.prog.TapOrderID)
	}
	r.log.Info("checkout: done", zap.String("tap_order_id", r.prog.TapOrderID), zap.Int("lines", len(r.prog.DishOrderIDs)), zap.Bool("resumed", r.resumed))
	return Result{
		TapOrderID:   r.prog.TapOrderID,
		DishOrderIDs: append([]string(nil), r.prog.DishOrderIDs...),
		Breakdown:    r.bd.Rounded(),
		Installments: r.quote,
		Receipt:      rec,
		Resumed:      r.resumed,
	}, nil
}

func (r *run) validate(ctx context.Context) error {
	req := r.req
	if strings.TrimSpace(req.Scope.TableNumber) == "" {
		return invalid(ReasonMissingTable, "a table number is required")
	}
	if req.PaymentMethod == nil || (req.PaymentMethod.ID == "" && !req.PaymentMethod.IsSystemCard) {
		return invalid(ReasonMissingPaymentMethod, "select a payment method")
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		return invalid(ReasonMissingCustomerName, "a customer name is required")
	}
	// The cached engine may predate a migration or an edit from another device.
	cart, err := req.Cart.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	r.cart = cart
	if len(r.cart.Items) == 0 {
		return invalid(ReasonEmptyCart, "the cart is empty")
	}
	if req.Restaurant == nil || !req.Restaurant.IsOpenNow() {
		return &ValidationError{Reason: ReasonRestaurantClosed, Message: domain.ErrRestaurantClosed.Error()}
	}

	base := r.cart.TotalPrice
	r.bd = r.o.calc.Compute(base, req.Tip.Amount(base))
	if !r.o.calc.CheckoutAllowed(r.bd) {
		return invalid(ReasonBelowMinimum, "the minimum purchase is %.2f", r.o.calc.Minimum())
	}

	if req.MSIMonths > 0 {
		if req.PaymentMethod.IsSystem() {
			return invalid(ReasonInvalidInstallments, "installments need a card")
		}
		tier, ok := r.o.schedule.Find(req.PaymentMethod.CardBrand, req.MSIMonths)
		if !ok || r.bd.TotalAmountCharged < tier.MinimumAmount {
			return invalid(ReasonInvalidInstallments, "%d months is not available for this purchase", req.MSIMonths)
		}
		q := pricing.QuoteFor(r.bd.TotalAmountCharged, tier)
		r.quote = &q
	}

	prog, err := r.o.progress.load(ctx, req.Device, req.Scope)
	if err != nil {
		return fmt.Errorf("load checkout progress: %w", err)
	}
	if prog != nil {
		if prog.PaymentAuthorized && math.Abs(prog.ChargedAmount-r.bd.ChargeAmount()) > 0.005 {
			return invalid(ReasonProgressMismatch, "a previous checkout for this table charged %.2f; discard it before paying a different amount", prog.ChargedAmount)
		}
		r.prog = prog
		r.resumed = true
		r.log.Info("checkout: resuming", zap.String("tap_order_id", prog.TapOrderID), zap.Int("created", len(prog.CreatedCartItemIDs)))
	} else {
		r.prog = &Progress{IdempotencyKey: uuid.NewString(), StartedAt: r.o.now()}
	}
	r.prog.ChargedAmount = r.bd.ChargeAmount()
	r.state.TotalLines = len(r.cart.Items)
	return nil
}

func (r *run) save(ctx context.Context) {
	if err := r.o.progress.save(ctx, r.req.Device, r.req.Scope, r.prog); err != nil {
		r.log.Warn("checkout: save progress failed", zap.Error(err))
	}
}

func (r *run) charge(ctx context.Context) error {
	pm := r.req.PaymentMethod
	if pm.IsSystem() || r.prog.PaymentAuthorized {
		return nil
	}
	r.enter(PhaseProcessingExternalPayment)
	r.save(ctx)
	auth, err := r.req.API.Charge(ctx, backend.ChargeInput{
		PaymentMethodID: pm.ID,
		Amount:          r.bd.ChargeAmount(),
		Currency:        r.currency(),
		Description:     r.req.RestaurantName,
		RestaurantID:    r.req.Scope.RestaurantID,
		TableNumber:     r.req.Scope.TableNumber,
		IdempotencyKey:  r.prog.IdempotencyKey,
		MSIMonths:       r.req.MSIMonths,
	})
	if err != nil {
		return &PaymentError{Err: err}
	}
	r.prog.PaymentAuthorized = true
	r.prog.PaymentTransactionID = auth.TransactionID
	r.save(ctx)
	return nil
}

func (r *run) currency() string {
	if r.req.Currency != "" {
		return r.req.Currency
	}
	return "MXN"
}

// createDishOrders is strictly sequential: the parent id comes from the first response.
func (r *run) createDishOrders(ctx context.Context) error {
	r.enter(PhaseCreatingDishOrders)
	for _, item := range r.cart.Items {
		if item.CartItemID != "" && r.prog.created(item.CartItemID) {
			continue
		}
		created, err := r.req.API.CreateDishOrder(ctx, r.req.Scope, r.dishLine(item))
		if err != nil {
			return &PartialOrderError{
				TapOrderID: r.prog.TapOrderID,
				Created:    len(r.prog.DishOrderIDs),
				Total:      len(r.cart.Items),
				Err:        err,
			}
		}
		if r.prog.TapOrderID == "" {
			r.prog.TapOrderID = created.TapOrderID
		}
		r.prog.CreatedCartItemIDs = append(r.prog.CreatedCartItemIDs, item.CartItemID)
		r.prog.DishOrderIDs = append(r.prog.DishOrderIDs, created.DishOrderID)
		r.save(ctx)
		r.enter(PhaseCreatingDishOrders)
	}
	if r.prog.TapOrderID == "" {
		return &PartialOrderError{Created: len(r.prog.DishOrderIDs), Total: len(r.cart.Items), Err: fmt.Errorf("backend returned no tap order id")}
	}
	return nil
}

func (r *run) dishLine(item domain.CartItem) domain.DishOrderLine {
	line := domain.DishOrderLine{
		Item:            item.Name,
		MenuItemID:      item.MenuItemID,
		Price:           item.BasePrice,
		Quantity:        item.Quantity,
		CustomerName:    r.req.Customer.Name,
		CustomerPhone:   r.req.Customer.Phone,
		CustomerEmail:   r.req.Customer.Email,
		Images:          item.Images,
		CustomFields:    item.CustomFields,
		ExtraPrice:      item.ExtraPrice,
		PaymentMethodID: r.req.PaymentMethod.Reference(),
	}
	if r.req.Identity.Mode == domain.ModeAuthenticated {
		line.UserID = r.req.Identity.UserID
	} else {
		line.GuestID = r.req.Identity.GuestID
	}
	return line
}

// finalize issues three independent calls; failures are logged, never surfaced.
func (r *run) finalize(ctx context.Context) {
	r.enter(PhaseFinalizingStatus)
	tapID := r.prog.TapOrderID
	var errs error
	if err := r.req.API.UpdateTapOrderPaymentStatus(ctx, tapID, domain.PaymentPaid); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("payment status: %w", err))
	}
	if err := r.req.API.UpdateTapOrderStatus(ctx, tapID, domain.OrderCompleted); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("order status: %w", err))
	}
	for _, id := range r.prog.DishOrderIDs {
		if err := r.req.API.MarkDishPaid(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark dish %s paid: %w", id, err))
		}
	}
	if errs != nil {
		r.log.Warn("checkout: finalization incomplete", zap.String("tap_order_id", tapID), zap.Errors("errors", multierr.Errors(errs)))
	}
}

func (r *run) recordTransaction(ctx context.Context) {
	if r.prog.TransactionRecorded {
		return
	}
	r.enter(PhaseRecordingTransaction)
	b := r.bd.Rounded()
	rec := domain.PaymentTransactionRecord{
		PaymentMethodID:              r.req.PaymentMethod.Reference(),
		RestaurantID:                 r.req.Scope.RestaurantID,
		TapOrderID:                   r.prog.TapOrderID,
		BaseAmount:                   b.BaseAmount,
		TipAmount:                    b.TipAmount,
		IVATip:                       b.IVATip,
		XquisitoCommissionTotal:      b.XquisitoCommissionTotal,
		XquisitoCommissionClient:     b.XquisitoCommissionClient,
		XquisitoCommissionRestaurant: b.XquisitoCommissionRestaurant,
		IVAXquisitoClient:            b.IVAXquisitoClient,
		IVAXquisitoRestaurant:        b.IVAXquisitoRestaurant,
		XquisitoClientCharge:         b.XquisitoClientCharge,
		XquisitoRestaurantCharge:     b.XquisitoRestaurantCharge,
		XquisitoRateApplied:          b.Rates.Total(),
		TotalAmountCharged:           b.TotalAmountCharged,
		SubtotalForCommission:        b.SubtotalForCommission,
		Currency:                     r.currency(),
	}
	if r.quote != nil {
		rec.MSIMonths = r.quote.Tier.Months
		rec.MSIDisplayTotal = pricing.Round2(r.quote.DisplayTotal)
	}
	if err := r.req.API.RecordTransaction(ctx, rec); err != nil {
		r.log.Warn("checkout: record transaction failed", zap.String("tap_order_id", r.prog.TapOrderID), zap.Error(err))
		return
	}
	r.prog.TransactionRecorded = true
	r.save(ctx)
}

func (r *run) buildReceipt() receipt.Receipt {
	pm := r.req.PaymentMethod
	rec := receipt.Receipt{
		OrderID:        r.prog.TapOrderID,
		DishOrderIDs:   append([]string(nil), r.prog.DishOrderIDs...),
		RestaurantID:   r.req.Scope.RestaurantID,
		RestaurantName: r.req.RestaurantName,
		BranchNumber:   r.req.Scope.BranchNumber,
		TableNumber:    r.req.Scope.TableNumber,
		Lines:          receipt.LinesFromCart(r.cart),
		Breakdown:      r.bd.Rounded(),
		CustomerName:   r.req.Customer.Name,
		CreatedAt:      r.o.now(),
	}
	if !pm.IsSystem() {
		rec.CardLast4 = pm.LastFourDigits
		rec.CardBrand = pm.CardBrand
	}
	if r.quote != nil {
		q := *r.quote
		q.DisplayTotal = pricing.Round2(q.DisplayTotal)
		q.Monthly = pricing.Round2(q.Monthly)
		rec.Installments = &q
	}
	return rec
}

func (r *run) publish(ctx context.Context) {
	ev := CompletedEvent{
		TapOrderID:         r.prog.TapOrderID,
		RestaurantID:       r.req.Scope.RestaurantID,
		BranchNumber:       r.req.Scope.BranchNumber,
		TableNumber:        r.req.Scope.TableNumber,
		DishOrderIDs:       r.prog.DishOrderIDs,
		TotalAmountCharged: r.bd.ChargeAmount(),
		Owner:              r.req.Identity.Owner(),
		CompletedAt:        r.o.now(),
	}
	if r.quote != nil {
		ev.MSIMonths = r.quote.Tier.Months
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.o.publisher.PublishCompleted(pubCtx, ev); err != nil {
		r.log.Warn("checkout: publish completed event failed", zap.Error(err))
	}
}
