package middleware

import (
	"errors"
	"net/http"
	"strings"

	"ppn-portal/src/logger"
	"ppn-portal/src/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	// TokenCookie ブラウザでの閲覧用にトークンを保持するクッキー
	TokenCookie = "ppn_token"

	ContextLeader   = "leader"
	ContextLeaderID = "leader_id"
)

// LeaderAuthMiddleware リーダー認証用のmiddleware。
// トークンはAuthorizationヘッダーかクッキーから読む。
func LeaderAuthMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			logger.WithField("client_ip", c.ClientIP()).Warn("認証失敗: トークンがありません")
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Authorization required")
			return
		}

		leader, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			message := "Invalid token"
			if errors.Is(err, service.ErrLeaderInactive) {
				status = http.StatusForbidden
				message = "Account is deactivated"
			}
			logger.WithFields(logrus.Fields{
				"client_ip": c.ClientIP(),
				"error":     err.Error(),
			}).Warn("認証失敗")
			abortWithError(c, status, http.StatusText(status), message)
			return
		}

		c.Set(ContextLeader, leader)
		c.Set(ContextLeaderID, leader.ID)

		logger.WithFields(logrus.Fields{
			"client_ip": c.ClientIP(),
			"leader_id": leader.ID,
		}).Debug("認証成功")
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		return token, found && token != ""
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

func abortWithError(c *gin.Context, status int, errText, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errText, "message": message})
}
