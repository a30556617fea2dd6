package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/trackline/chat-core/internal/auth"
)

// bearerAuth validates the Authorization header and stores the caller's
// identity in the request context.
func bearerAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := verifier.Verify(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", claims.UserID)
		c.Set("userName", claims.UserName)
		c.Set("userRole", claims.Role)
		c.Next()
	}
}

func requestUserID(c *gin.Context) int64 {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(int64); ok2 {
			return id
		}
	}
	return 0
}

type ipLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// rateLimit throttles requests per client IP using a token bucket. Stale
// per-IP limiters are evicted on access after 10 minutes of inactivity.
func rateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*ipLimiter)
		lastGC   = time.Now()
	)

	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if time.Since(lastGC) > time.Minute {
			cutoff := time.Now().Add(-10 * time.Minute)
			for k, v := range limiters {
				if v.ts.Before(cutoff) {
					delete(limiters, k)
				}
			}
			lastGC = time.Now()
		}

		if l, ok := limiters[key]; ok {
			l.ts = time.Now()
			return l.lim
		}
		l := &ipLimiter{lim: rate.NewLimiter(r, burst), ts: time.Now()}
		limiters[key] = l
		return l.lim
	}

	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		if !get(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
