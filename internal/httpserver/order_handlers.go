package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"xquisito-tap/internal/orderstatus"
)

// getOrder always answers 200: fetch failures are part of the view, never a redirect.
func (h *handlers) getOrder(c *gin.Context) {
	orderID := c.Param("orderId")
	device := deviceFrom(c)
	api := h.api(c)
	ctx := c.Request.Context()

	var view orderstatus.View
	if c.Query("refresh") == "1" {
		view = h.deps.Orders.Refresh(ctx, api, device, orderID)
	} else {
		view = h.deps.Orders.Fetch(ctx, api, device, orderID)
	}
	respond(c, http.StatusOK, view)
}

// getReceipt rebuilds the confirmation from stored copies only.
func (h *handlers) getReceipt(c *gin.Context) {
	r, err := h.deps.Receipts.Load(c.Request.Context(), deviceFrom(c), c.Param("orderId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, r)
}
