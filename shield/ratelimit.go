package shield

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rule limits one endpoint, keyed "METHOD /path", to Max requests per Window
// for each client IP.
type Rule struct {
	Max    int
	Window time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window limiter per client IP and endpoint. Endpoints
// without a rule are not limited.
type RateLimiter struct {
	rules  map[string]Rule
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter for rules. Rules with a non-positive Max
// or Window are ignored.
func NewRateLimiter(rules map[string]Rule, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		rules:   make(map[string]Rule, len(rules)),
		logger:  logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for ep, rule := range rules {
		if rule.Max > 0 && rule.Window > 0 {
			rl.rules[ep] = rule
		}
	}
	return rl
}

// Allow records one request and reports whether it is within the limit,
// and if not, how long until the window resets.
func (rl *RateLimiter) Allow(ip, endpoint string) (bool, time.Duration) {
	rule, ok := rl.rules[endpoint]
	if !ok {
		return true, 0
	}
	now := rl.now()
	key := ip + " " + endpoint

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.gcLocked(now)
	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rule.Window)}
		return true, 0
	}
	b.count++
	if b.count <= rule.Max {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

func (rl *RateLimiter) gcLocked(now time.Time) {
	if len(rl.buckets) < 1024 {
		return
	}
	for k, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, k)
		}
	}
}

// Middleware answers 429 with a JSON body and Retry-After once a client
// exceeds the rule for the requested endpoint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)
		ok, wait := rl.Allow(ip, endpoint)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.Warn("shield: rate limit exceeded", "ip", ip, "endpoint", endpoint)
		secs := int(wait.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"code":  "rate_limited",
			"error": "rate limit exceeded",
		})
	})
}

// ParseRule reads "N/duration", e.g. "10/1m".
func ParseRule(s string) (Rule, error) {
	n, d, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, &ruleError{s}
	}
	max, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil || max <= 0 {
		return Rule{}, &ruleError{s}
	}
	window, err := time.ParseDuration(strings.TrimSpace(d))
	if err != nil || window <= 0 {
		return Rule{}, &ruleError{s}
	}
	return Rule{Max: max, Window: window}, nil
}

type ruleError struct{ s string }

func (e *ruleError) Error() string {
	return "shield: invalid rate rule " + strconv.Quote(e.s) + ", want N/duration"
}
