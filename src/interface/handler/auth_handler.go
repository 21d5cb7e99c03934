package handler

import (
	"errors"
	"net/http"
	"time"

	"ppn-portal/src/i18n"
	"ppn-portal/src/middleware"
	"ppn-portal/src/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler 認証ハンドラー
type AuthHandler struct {
	authService  service.AuthService
	catalog      *i18n.Catalog
	logger       *logrus.Logger
	secureCookie bool
}

// NewAuthHandler 認証ハンドラーのコンストラクタ
func NewAuthHandler(authService service.AuthService, catalog *i18n.Catalog, logger *logrus.Logger, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		catalog:      catalog,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// Login リーダーのログイン。トークンはJSONとクッキーの両方で返す
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponseDTO{Error: "Invalid request format"})
		return
	}

	loc := h.catalog.Localizer(middleware.Language(c))

	resp, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponseDTO{
				Error:   "Invalid credentials",
				Message: loc.Lookup("auth:error:invalid_credentials"),
			})
		case errors.Is(err, service.ErrLeaderInactive):
			c.JSON(http.StatusForbidden, ErrorResponseDTO{
				Error:   "Account is deactivated",
				Message: loc.Lookup("auth:error:forbidden"),
			})
		default:
			h.logger.WithError(err).Error("ログインに失敗")
			c.JSON(http.StatusInternalServerError, ErrorResponseDTO{Error: "Login failed"})
		}
		return
	}

	maxAge := int(time.Until(resp.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, resp.AccessToken, maxAge, "/", "", h.secureCookie, true)

	c.JSON(http.StatusOK, resp)
}

// Logout クッキーのトークンを削除
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookie, true)
	c.Status(http.StatusNoContent)
}
