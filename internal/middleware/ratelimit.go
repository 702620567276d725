package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dimitarkovachev/partyplanner/internal/identity"
)

const visitorIdleTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIPKey charges requests per client IP.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// IdentityKey charges authenticated requests per user and falls back to the
// client IP when no identity is attached yet.
func IdentityKey(c *gin.Context) string {
	if who, ok := identity.FromContext(c.Request.Context()); ok {
		return "user:" + who.ID
	}
	return ClientIPKey(c)
}

// RateLimiter tracks per-key token bucket limiters.
type RateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	key      KeyFunc
}

// NewRateLimiter creates a Gin middleware that applies per-key rate limiting.
// rps controls the steady-state rate (requests per second), burst is the
// maximum number of tokens that can be consumed in a single burst. Idle
// visitors are swept until ctx is done.
func NewRateLimiter(ctx context.Context, rps rate.Limit, burst int, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIPKey
	}
	rl := &RateLimiter{rps: rps, burst: burst, key: key}
	go rl.cleanupLoop(ctx)
	return rl.handle
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()
	val, _ := rl.visitors.LoadOrStore(key, &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst), lastSeen: now})
	v := val.(*visitor)
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
	return v.limiter
}

func (rl *RateLimiter) handle(c *gin.Context) {
	limiter := rl.getVisitor(rl.key(c))

	if !limiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"message": "too many requests, please try again later",
			"kind":    "rate_limited",
		})
		return
	}

	c.Next()
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

// sweep removes visitors idle for longer than visitorIdleTTL.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.visitors.Range(func(key, value any) bool {
		v := value.(*visitor)
		v.mu.Lock()
		idle := now.Sub(v.lastSeen)
		v.mu.Unlock()
		if idle > visitorIdleTTL {
			rl.visitors.Delete(key)
		}
		return true
	})
}
