package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"xquisito-tap/internal/domain"
)

type addCardRequest struct {
	CardToken string `json:"cardToken" binding:"required"`
}

// systemCard is always offered; it needs no external processor.
func systemCard() domain.PaymentMethod {
	return domain.PaymentMethod{
		ID:           domain.SystemCardID,
		CardBrand:    "system",
		IsSystemCard: true,
	}
}

func (h *handlers) listPaymentMethods(c *gin.Context) {
	methods, err := h.api(c).ListPaymentMethods(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	hasSystem := false
	for _, m := range methods {
		if m.IsSystem() {
			hasSystem = true
			break
		}
	}
	if !hasSystem {
		methods = append(methods, systemCard())
	}
	respond(c, http.StatusOK, methods)
}

func (h *handlers) addPaymentMethod(c *gin.Context) {
	var req addCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if _, err := h.identityAnywhere(c); err != nil {
		writeError(c, h.logger, err)
		return
	}
	pm, err := h.api(c).AddPaymentMethod(c.Request.Context(), req.CardToken)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, pm)
}

func (h *handlers) deletePaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if id == domain.SystemCardID {
		abortWith(c, http.StatusBadRequest, "validation", "the system card cannot be removed")
		return
	}
	if err := h.api(c).DeletePaymentMethod(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) setDefaultPaymentMethod(c *gin.Context) {
	if err := h.api(c).SetDefaultPaymentMethod(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
