package handler

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// TriggerLimiter throttles keepalive triggers per client address.
type TriggerLimiter struct {
	mutex    sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
	logger   *slog.Logger
}

func NewTriggerLimiter(rps float64, burst int, logger *slog.Logger) *TriggerLimiter {
	return &TriggerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
		logger:   logger,
	}
}

// Allow reports whether a trigger from key may proceed now.
func (l *TriggerLimiter) Allow(key string) bool {
	return l.limiter(key).Allow()
}

func (l *TriggerLimiter) limiter(key string) *rate.Limiter {
	l.mutex.RLock()
	limiter, ok := l.limiters[key]
	l.mutex.RUnlock()
	if ok {
		return limiter
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if limiter, ok = l.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Middleware answers 429 once a client exceeds its budget. Run it after
// middleware.RealIP so proxied clients are told apart.
func (l *TriggerLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r.RemoteAddr)
		if !l.Allow(key) {
			l.logger.Warn("Rate limited keepalive trigger",
				slog.String("from", key),
				slog.String("path", r.URL.Path))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
