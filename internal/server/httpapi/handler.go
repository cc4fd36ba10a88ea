// Package httpapi exposes the session endpoints over gin.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is the session core as seen by the handlers.
type AuthService interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, presented string, fp models.DeviceFingerprint, sourceIP string) (*services.IssuedTokens, error)
	Logout(ctx context.Context, presented, sourceIP string)
	LogoutAll(ctx context.Context, accessToken, sourceIP string) (int64, error)
}

type AuthHandler struct {
	svc     AuthService
	cookies CookiePolicy
	log     logging.Logger
}

func NewAuthHandler(svc AuthService, cookies CookiePolicy, log logging.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, log: log.With("module", "http")}
}

func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)
	r.POST("/logout-all", h.logoutAll)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.NewValidationError("invalid login payload"), msgInvalidCredentials)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), services.LoginInput{
		Username:    req.Username,
		Password:    req.Password,
		SourceIP:    c.ClientIP(),
		Fingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		h.logFailure(c, "login failed", err)
		writeError(c, err, msgInvalidCredentials)
		return
	}

	noStore(c)
	h.cookies.setRefreshCookie(c, res.Tokens.RefreshToken)
	c.JSON(http.StatusOK, LoginResponse{
		Success:     true,
		AccessToken: res.Tokens.AccessToken,
		User:        UserView{Username: res.Username, UUID: res.UserID},
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		writeError(c, common.NewValidationError("invalid refresh payload"), msgInvalidRefreshToken)
		return
	}

	presented := presentedRefreshToken(c, req.RefreshToken)
	if presented == "" {
		writeError(c, common.NewValidationError("refresh token is required"), msgInvalidRefreshToken)
		return
	}

	tokens, err := h.svc.Refresh(c.Request.Context(), presented, req.DeviceFingerprint, c.ClientIP())
	if err != nil {
		h.logFailure(c, "refresh failed", err)
		writeError(c, err, msgInvalidRefreshToken)
		return
	}

	noStore(c)
	h.cookies.setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, RefreshResponse{Success: true, AccessToken: tokens.AccessToken})
}

// logout always reports success so it reveals nothing about the token.
func (h *AuthHandler) logout(c *gin.Context) {
	var req LogoutRequest
	_ = bindOptionalJSON(c, &req)

	h.svc.Logout(c.Request.Context(), presentedRefreshToken(c, req.RefreshToken), c.ClientIP())

	noStore(c)
	h.cookies.clearRefreshCookie(c)
	c.JSON(http.StatusOK, LogoutResponse{Success: true, Message: "logged out"})
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		writeError(c, common.NewAuthError(common.ReasonInvalidToken), msgInvalidAccessToken)
		return
	}

	n, err := h.svc.LogoutAll(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		h.logFailure(c, "logout-all failed", err)
		writeError(c, err, msgInvalidAccessToken)
		return
	}

	noStore(c)
	h.cookies.clearRefreshCookie(c)
	c.JSON(http.StatusOK, LogoutAllResponse{Success: true, Revoked: n})
}

func (h *AuthHandler) logFailure(c *gin.Context, msg string, err error) {
	ctx := c.Request.Context()
	switch common.KindOf(err) {
	case common.KindStorage, common.KindInternal:
		h.log.Error(ctx, msg, "error", err, "client_ip", c.ClientIP())
	default:
		h.log.Debug(ctx, msg, "kind", common.KindOf(err).String(), "client_ip", c.ClientIP())
	}
}

// presentedRefreshToken prefers the cookie over the body field.
func presentedRefreshToken(c *gin.Context, fromBody string) string {
	if v, err := c.Cookie(common.RefreshTokenCookieName); err == nil && v != "" {
		return v
	}
	return strings.TrimSpace(fromBody)
}

func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
