package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/cart"
	"xquisito-tap/internal/checkout"
	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/restaurant"
)

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func abortWith(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": errorBody{Type: kind, Message: message}})
}

// writeError maps every service error to a status code.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validation *checkout.ValidationError
		payment    *checkout.PaymentError
		partial    *checkout.PartialOrderError
		apiErr     *backend.APIError
	)
	switch {
	case errors.As(err, &validation):
		abortWith(c, http.StatusUnprocessableEntity, validation.Reason, validation.Message)
	case errors.As(err, &payment):
		abortWith(c, http.StatusPaymentRequired, "payment_failed", payment.Error())
	case errors.As(err, &partial):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   errorBody{Type: "partial_order", Message: partial.Error()},
			"data": gin.H{
				"tapOrderId": partial.TapOrderID,
				"created":    partial.Created,
				"total":      partial.Total,
			},
		})
	case errors.Is(err, domain.ErrSessionExpired):
		abortWith(c, http.StatusUnauthorized, "session_expired", err.Error())
	case errors.Is(err, domain.ErrValidation):
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		abortWith(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		abortWith(c, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, domain.ErrRestaurantClosed):
		abortWith(c, http.StatusConflict, checkout.ReasonRestaurantClosed, err.Error())
	case errors.Is(err, domain.ErrInvalidAccess):
		abortWith(c, http.StatusForbidden, "invalid_access", err.Error())
	case errors.Is(err, cart.ErrDuplicateSubmission):
		abortWith(c, http.StatusConflict, "duplicate_submission", err.Error())
	case errors.Is(err, restaurant.ErrSuperseded):
		abortWith(c, http.StatusConflict, "superseded", err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		kind := apiErr.Type
		if kind == "" {
			kind = "backend_error"
		}
		abortWith(c, status, kind, apiErr.Message)
	default:
		logger.Error("http: unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		abortWith(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
