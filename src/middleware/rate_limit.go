package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ppn-portal/src/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type window struct {
	start time.Time
	count int
}

// RateLimiter クライアントIPごとの固定ウィンドウ方式のレート制限
type RateLimiter struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	clients  map[string]*window
	now      func() time.Time
}

// NewRateLimiter レート制限を作成。requestsが0以下なら制限しない。
func NewRateLimiter(requests int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: requests,
		window:   per,
		clients:  make(map[string]*window),
		now:      time.Now,
	}
}

// Allow reports whether the client may make another request and, if not,
// how long until its window resets.
func (l *RateLimiter) Allow(clientIP string) (bool, time.Duration) {
	if l.requests <= 0 || l.window <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[clientIP]
	if !ok || now.Sub(w.start) >= l.window {
		l.clients[clientIP] = &window{start: now, count: 1}
		l.sweep(now)
		return true, 0
	}
	if w.count >= l.requests {
		return false, w.start.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}

// 期限切れのウィンドウを削除
func (l *RateLimiter) sweep(now time.Time) {
	for ip, w := range l.clients {
		if now.Sub(w.start) >= l.window {
			delete(l.clients, ip)
		}
	}
}

// Middleware レート制限用のmiddleware
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed, retryAfter := l.Allow(clientIP)
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			logger.WithFields(logrus.Fields{
				"client_ip":   clientIP,
				"uri":         c.Request.RequestURI,
				"retry_after": seconds,
			}).Warn("レート制限に達しました")

			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too Many Requests",
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}
