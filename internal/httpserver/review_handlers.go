package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"xquisito-tap/internal/backend"
	"xquisito-tap/internal/domain"
)

type reviewRequest struct {
	MenuItemID int    `json:"menuItemId" binding:"required"`
	Rating     int    `json:"rating" binding:"required,min=1,max=5"`
	Comment    string `json:"comment"`
}

type reviewUpdateRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// identityAnywhere is the stored identity of the device outside a scoped route.
func (h *handlers) identityAnywhere(c *gin.Context) (domain.Identity, error) {
	id, err := h.session(c).Identity(c.Request.Context())
	if err != nil {
		return domain.Identity{}, err
	}
	if id.IsZero() {
		return domain.Identity{}, fmt.Errorf("%w: scan a table first", domain.ErrValidation)
	}
	return id, nil
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		abortWith(c, http.StatusBadRequest, "validation", name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

func (h *handlers) createReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	id, err := h.identityAnywhere(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	in := backend.Review{MenuItemID: req.MenuItemID, Rating: req.Rating, Comment: req.Comment}
	if id.Mode == domain.ModeAuthenticated {
		in.UserID = id.UserID
	} else {
		in.GuestID = id.GuestID
	}
	out, err := h.api(c).CreateReview(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, out)
}

func (h *handlers) reviewStats(c *gin.Context) {
	menuItemID, ok := intParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.api(c).MenuItemStats(c.Request.Context(), menuItemID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, stats)
}

func (h *handlers) myReview(c *gin.Context) {
	menuItemID, ok := intParam(c, "id")
	if !ok {
		return
	}
	id, err := h.identityAnywhere(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	r, err := h.api(c).MyReview(c.Request.Context(), menuItemID, id.Owner())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, r)
}

func (h *handlers) updateReview(c *gin.Context) {
	reviewID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req reviewUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	r, err := h.api(c).UpdateReview(c.Request.Context(), reviewID, req.Rating, req.Comment)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, r)
}

func (h *handlers) deleteReview(c *gin.Context) {
	reviewID, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.api(c).DeleteReview(c.Request.Context(), reviewID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
