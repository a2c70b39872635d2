package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// loginAttempts 按客户端 IP 记录滑动窗口内的登录尝试
type loginAttempts struct {
	mu     sync.Mutex
	byIP   map[string][]time.Time
	limit  int
	window time.Duration
}

// allow 判断该 IP 是否还能尝试，允许时记录本次尝试
func (a *loginAttempts) allow(ip string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.window)
	kept := a.byIP[ip][:0]
	for _, ts := range a.byIP[ip] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= a.limit {
		a.byIP[ip] = kept
		return false
	}
	a.byIP[ip] = append(kept, now)
	return true
}

// sweep 定期清掉整个窗口内都没有活动的 IP，防止 map 无限增长
func (a *loginAttempts) sweep() {
	for now := range time.Tick(time.Minute) {
		a.mu.Lock()
		cutoff := now.Add(-a.window)
		for ip, stamps := range a.byIP {
			if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
				delete(a.byIP, ip)
			}
		}
		a.mu.Unlock()
	}
}

// LoginRateLimit 登录限流中间件
// 每个 IP 在 window 内最多 limit 次尝试，超出返回 429
func LoginRateLimit(limit int, window time.Duration) gin.HandlerFunc {
	attempts := &loginAttempts{
		byIP:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
	go attempts.sweep()

	return func(c *gin.Context) {
		if !attempts.allow(c.ClientIP(), time.Now()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "登录过于频繁，请稍候重试",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
