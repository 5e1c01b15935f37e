package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"lendcore/observability"
	"lendcore/observability/logging"
	"lendcore/services/lendingd/config"
)

const requestIDHeader = "X-Request-Id"

// requestID tags every request with a stable identifier for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// authenticate requires a configured bearer token on mutating routes.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if _, ok := s.tokens[token]; !ok {
			s.logger.Warn("rejected request",
				"path", r.URL.Path,
				"request_id", w.Header().Get(requestIDHeader),
				logging.MaskField("token", token),
			)
			writeError(w, http.StatusUnauthorized, "invalid api token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// clientLimiter hands out one token bucket per client identity.
type clientLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	perSecond := cfg.RequestsPerMinute / 60.0
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (c *clientLimiter) allow(id string) bool {
	c.mu.Lock()
	limiter, ok := c.visitors[id]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.visitors[id] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientID(r)) {
			observability.LedgerMetrics().RecordThrottle(r.URL.Path, "rate_limit")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID prefers the bearer token so distinct callers behind one proxy get
// separate buckets, falling back to the remote host.
func clientID(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records latency and outcome metrics per operation.
func (s *Server) instrument(operation string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		handler(recorder, r)
		observability.LedgerMetrics().Observe(operation, recorder.status, time.Since(start))
	}
}
