package approuters

import (
	"net/http"
	"sync"
	"time"

	"Flort/internal/configuration"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per client IP. Buckets idle for longer than
// both limiterIdleTTL and their refill time are dropped, so a returning client
// starts from the same full bucket it would have had anyway.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	cfg       configuration.RateLimitConfig
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterPool(cfg configuration.RateLimitConfig) *limiterPool {
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}
	return &limiterPool{
		m:   make(map[string]*limiterEntry),
		cfg: cfg,
		now: time.Now,
	}
}

func (p *limiterPool) idleAfter() time.Duration {
	refill := time.Duration(float64(p.cfg.Burst) / p.cfg.RPS * float64(time.Second))
	return max(limiterIdleTTL, refill)
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	idle := p.idleAfter()
	if now.Sub(p.lastSweep) >= idle/2 {
		for k, e := range p.m {
			if now.Sub(e.lastSeen) > idle {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}

	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)
	p.m[key] = &limiterEntry{limiter: l, lastSeen: now}
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).AllowN(p.now(), 1)
}

func (p *limiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// RateLimit rejects requests over the per-IP budget with 429 and the usual envelope
func RateLimit(cfg configuration.RateLimitConfig) gin.HandlerFunc {
	pool := newLimiterPool(cfg)
	return func(c *gin.Context) {
		if !pool.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"HttpStatusCode": http.StatusTooManyRequests,
				"ResponseBody":   nil,
				"IsSuccess":      false,
				"Message":        "Too many requests",
			})
			return
		}
		c.Next()
	}
}
