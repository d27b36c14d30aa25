package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/auth"
	"github.com/troikatech/collections-agent/pkg/errors"
)

type LoginRequest struct {
	User     string `json:"user" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login exchanges operator credentials for an access token, plus a
// refresh token when a token store is configured.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	if err := h.deps.Operator.Check(req.User, req.Password); err != nil {
		h.logger.Info("Login rejected", zap.String("user", req.User), zap.String("ip", c.ClientIP()))
		errors.Unauthorized(c, "invalid credentials")
		return
	}

	pair, err := h.issue(c, req.User)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	h.audit(c.Request.Context(), req.User, audit.ActionLogin, "operator", req.User, map[string]interface{}{"ip": c.ClientIP()})
	c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token
func (h *Handler) Refresh(c *gin.Context) {
	if h.deps.Refresh == nil {
		errors.NotFound(c, "refresh tokens are not enabled")
		return
	}
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	subject, err := h.deps.Refresh.Verify(c.Request.Context(), req.RefreshToken)
	if err != nil {
		errors.Unauthorized(c, "invalid refresh token")
		return
	}
	if err := h.deps.Refresh.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Warn("Failed to revoke rotated refresh token", zap.Error(err))
	}

	pair, err := h.issue(c, subject)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *Handler) issue(c *gin.Context, subject string) (auth.TokenPair, error) {
	access, expiresAt, err := auth.GenerateAccessToken(subject, auth.RoleOperator, h.cfg.JWTSecret, h.cfg.JWTIssuer, h.cfg.AccessTTLMin)
	if err != nil {
		return auth.TokenPair{}, err
	}
	pair := auth.TokenPair{AccessToken: access, ExpiresAt: expiresAt}
	if h.deps.Refresh == nil {
		return pair, nil
	}

	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := h.deps.Refresh.Store(c.Request.Context(), subject, refresh); err != nil {
		return auth.TokenPair{}, err
	}
	pair.RefreshToken = refresh
	return pair, nil
}
