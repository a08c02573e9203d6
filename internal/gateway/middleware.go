package gateway

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/time/rate"
)

const totpHeader = "X-TOTP-Code"

// requireTOTP rejects the request unless X-TOTP-Code holds a valid code for
// the configured secret. A blank secret disables the check.
func (s *Server) requireTOTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.TOTPSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		code := r.Header.Get(totpHeader)
		if code == "" || !totp.Validate(code, s.opts.TOTPSecret) {
			log.Printf("[gateway] rejected %s %s: bad or missing %s", r.Method, r.URL.Path, totpHeader)
			writeError(w, http.StatusUnauthorized, "valid "+totpHeader+" header required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited applies the per-IP backtest limiter.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.get(ip).Allow() {
			log.Printf("[gateway] rate limit exceeded for %s on %s", ip, r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many requests, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ipLimiter holds one token bucket per client IP. Buckets idle for more
// than idleTTL are swept on access.
type ipLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

const idleTTL = 5 * time.Minute

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > idleTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > idleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[ip]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = now
	return e.l
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
