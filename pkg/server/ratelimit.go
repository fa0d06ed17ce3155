package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an untouched client limiter is kept. A limiter
// idle for a full day has refilled its bucket, so dropping it changes nothing.
const limiterIdleTTL = 24 * time.Hour

// turnLimiter allows perDay chat turns per client hash, refilled evenly
// over the day. A zero perDay disables limiting.
type turnLimiter struct {
	mu      sync.Mutex
	perDay  int
	clients *gocache.Cache
}

func newTurnLimiter(perDay int, idle time.Duration) *turnLimiter {
	return &turnLimiter{perDay: perDay, clients: gocache.New(idle, idle/2)}
}

func (l *turnLimiter) Allow(key string) bool {
	if l.perDay <= 0 {
		return true
	}
	l.mu.Lock()
	var lim *rate.Limiter
	if v, ok := l.clients.Get(key); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(l.perDay)), l.perDay)
	}
	// Set refreshes the idle expiry on every turn.
	l.clients.Set(key, lim, gocache.DefaultExpiration)
	l.mu.Unlock()
	return lim.Allow()
}

// clientIP returns the first X-Forwarded-For hop, X-Real-IP, or the peer
// address, in that order.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HashIP returns the first 16 hex characters of sha256(ip+salt). Raw
// addresses are never stored.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])[:16]
}
