package routes

import (
	"net/http"
	"time"

	"ppn-portal/src/i18n"
	"ppn-portal/src/interface/handler"
	"ppn-portal/src/logger"
	"ppn-portal/src/middleware"
	"ppn-portal/src/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handlers groups the HTTP handlers of the portal
type Handlers struct {
	Participant  *handler.ParticipantHandler
	Registration *handler.RegistrationHandler
	Auth         *handler.AuthHandler
}

// Options configures the router
type Options struct {
	Catalog     *i18n.Catalog
	AuthService service.AuthService
	AllowOrigin string
	RateLimiter *middleware.RateLimiter
	// Health はバックエンドの疎通確認。nilなら常に正常
	Health func() error
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h Handlers, opts Options) {
	r.NoRoute(func(c *gin.Context) {
		logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"uri":       c.Request.RequestURI,
			"client_ip": c.ClientIP(),
		}).Warn("404: ルートが見つかりません")
		c.JSON(http.StatusNotFound, handler.ErrorResponseDTO{Error: "Route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"uri":    c.Request.RequestURI,
		}).Warn("405: サポートされていないメソッド")
		c.JSON(http.StatusMethodNotAllowed, handler.ErrorResponseDTO{Error: "Method not allowed"})
	})

	// グローバルmiddlewareを適用
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(opts.AllowOrigin))
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware())
	}
	r.Use(middleware.LanguageMiddleware(opts.Catalog))

	// ヘルスチェック用のエンドポイント
	r.GET("/health", func(c *gin.Context) {
		status, code := "OK", http.StatusOK
		if opts.Health != nil {
			if err := opts.Health(); err != nil {
				logger.WithField("error", err.Error()).Error("ヘルスチェックに失敗")
				status, code = "UNAVAILABLE", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// ページが読み込むスクリプト
	r.StaticFS("/static", handler.StaticFS())

	// 認証が不要なパブリックルート
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)   // POST /auth/login
		auth.POST("/logout", h.Auth.Logout) // POST /auth/logout
	}

	register := r.Group("/register")
	{
		register.GET("", h.Registration.ShowForm)                  // GET /register
		register.POST("", h.Registration.Register)                 // POST /register
		register.GET("/birthdate", h.Registration.PreviewBirthDate) // GET /register/birthdate
	}

	// 実験リーダー用のルート
	leader := r.Group("/leader/experiments/:experiment")
	leader.Use(middleware.LeaderAuthMiddleware(opts.AuthService))
	{
		leader.GET("/participants", h.Participant.ShowParticipants)                      // GET 参加者一覧ページ
		leader.GET("/participants/data", h.Participant.ParticipantData)                  // GET サーバーサイド処理
		leader.GET("/participants/download", h.Participant.DownloadCSV)                  // GET CSVダウンロード
		leader.POST("/appointments/:appointment/delete", h.Participant.RemoveParticipant) // POST 登録解除
	}
}
