package checkout

import (
	"errors"
	"fmt"
)

// Phase is one step of a checkout attempt.
type Phase string

const (
	PhaseIdle                      Phase = "idle"
	PhaseValidating                Phase = "validating"
	PhaseProcessingExternalPayment Phase = "processing_external_payment"
	PhaseCreatingDishOrders        Phase = "creating_dish_orders"
	PhaseFinalizingStatus          Phase = "finalizing_status"
	PhaseRecordingTransaction      Phase = "recording_transaction"
	PhasePersistingReceipt         Phase = "persisting_receipt"
	PhaseClearingCart              Phase = "clearing_cart"
	PhaseDone                      Phase = "done"
	PhaseFailed                    Phase = "failed"
)

// State is reported to the observer on every transition.
type State struct {
	Phase        Phase  `json:"phase"`
	TapOrderID   string `json:"tapOrderId,omitempty"`
	CreatedLines int    `json:"createdLines"`
	TotalLines   int    `json:"totalLines"`
	Err          error  `json:"-"`
}

// Observer receives state transitions. It must not block.
type Observer func(State)

// Validation reasons.
const (
	ReasonMissingTable         = "missing_table"
	ReasonMissingPaymentMethod = "missing_payment_method"
	ReasonMissingCustomerName  = "missing_customer_name"
	ReasonEmptyCart            = "empty_cart"
	ReasonRestaurantClosed     = "restaurant_closed"
	ReasonBelowMinimum         = "below_minimum"
	ReasonInvalidInstallments  = "invalid_installments"
	ReasonProgressMismatch     = "progress_mismatch"
	ReasonInProgress           = "checkout_in_progress"
)

// ValidationError is a user-recoverable pre-flight failure. Nothing was sent to the backend.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return "checkout: " + e.Message
}

func invalid(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// PaymentError is a failed external authorization. Nothing downstream exists yet.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string { return "checkout: payment failed: " + e.Err.Error() }
func (e *PaymentError) Unwrap() error { return e.Err }

// PartialOrderError means creation stopped mid-loop: Created lines exist server-side
// and were not rolled back.
type PartialOrderError struct {
	TapOrderID string
	Created    int
	Total      int
	Err        error
}

func (e *PartialOrderError) Error() string {
	return fmt.Sprintf("checkout: created %d of %d dish orders: %v", e.Created, e.Total, e.Err)
}

func (e *PartialOrderError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
