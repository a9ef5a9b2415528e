package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"xquisito-tap/internal/domain"
	"xquisito-tap/internal/restaurant"
	"xquisito-tap/internal/session"
)

type resolveRequest struct {
	Table        string `json:"table"`
	RestaurantID int    `json:"restaurantId"`
	BranchNumber int    `json:"branchNumber"`
}

type resolveResponse struct {
	Identity   domain.Identity        `json:"identity"`
	Validation *restaurant.Validation `json:"validation,omitempty"`
}

type otpSendRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type otpVerifyRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Remember bool   `json:"remember"`
}

type socialRequest struct {
	Provider string `json:"provider" binding:"required"`
	IDToken  string `json:"idToken" binding:"required"`
	Remember bool   `json:"remember"`
}

func (h *handlers) getSession(c *gin.Context) {
	id, err := h.session(c).Identity(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, resolveResponse{Identity: id})
}

// resolveSession runs on every page load. With a full scope the table access is validated too.
func (h *handlers) resolveSession(c *gin.Context) {
	var req resolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWith(c, http.StatusBadRequest, "validation", err.Error())
			return
		}
	}
	if req.Table == "" {
		req.Table = c.Query("table")
	}
	req.Table = strings.TrimSpace(req.Table)
	ctx := c.Request.Context()

	var validation *restaurant.Validation
	if req.RestaurantID != 0 || req.BranchNumber != 0 {
		v := h.deps.Restaurants.ValidateAccess(ctx, req.RestaurantID, req.BranchNumber, req.Table)
		if !v.Valid {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success":    false,
				"validation": v,
				"error":      errorBody{Type: v.ErrorKind, Message: domain.ErrInvalidAccess.Error()},
			})
			return
		}
		validation = &v
		h.scopes.remember(domain.Scope{RestaurantID: req.RestaurantID, BranchNumber: req.BranchNumber, TableNumber: req.Table})
	}

	sess := h.session(c)
	id, err := sess.Resolve(ctx, req.Table)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if validation != nil {
		if err := sess.SetScope(ctx, req.RestaurantID, req.BranchNumber); err != nil {
			writeError(c, h.logger, err)
			return
		}
	}
	respond(c, http.StatusOK, resolveResponse{Identity: id, Validation: validation})
}

func (h *handlers) sendOTP(c *gin.Context) {
	var req otpSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if err := h.session(c).SendOTP(c.Request.Context(), req.Phone); err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"sent": true})
}

func (h *handlers) verifyOTP(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	res, err := h.session(c).VerifyOTP(c.Request.Context(), req.Phone, req.Code, req.Remember)
	h.signedIn(c, res, err)
}

func (h *handlers) signInSocial(c *gin.Context) {
	var req socialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	res, err := h.session(c).SignInSocial(c.Request.Context(), req.Provider, req.IDToken, req.Remember)
	h.signedIn(c, res, err)
}

func (h *handlers) signedIn(c *gin.Context, res session.SignInResult, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *handlers) completeProfile(c *gin.Context) {
	var p domain.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		abortWith(c, http.StatusBadRequest, "validation", err.Error())
		return
	}
	out, err := h.session(c).CompleteProfile(c.Request.Context(), p)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, out)
}

func (h *handlers) logout(c *gin.Context) {
	ctx := c.Request.Context()
	sess := h.session(c)
	id, err := sess.Identity(ctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if err := sess.Teardown(ctx); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if id.Mode == domain.ModeAuthenticated {
		h.deps.Carts.Forget(id.Owner())
	}
	c.Status(http.StatusNoContent)
}
