package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/pkg/observability"
)

// ThrottleConfig defines login throttle settings
type ThrottleConfig struct {
	// AttemptsPerWindow is the max attempts allowed in the time window
	AttemptsPerWindow int
	// WindowDuration is the time window for throttling
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultThrottleConfig returns the default login throttle settings:
// 10 attempts per minute per client with a small burst allowance.
func DefaultThrottleConfig() *ThrottleConfig {
	return &ThrottleConfig{
		AttemptsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// Throttler implements per-key throttling using a token bucket
type Throttler struct {
	config  *ThrottleConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewThrottler creates a throttler with the given config
func NewThrottler(config *ThrottleConfig) *Throttler {
	if config == nil {
		config = DefaultThrottleConfig()
	}
	return &Throttler{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks if an attempt is allowed for the given key
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	b, exists := t.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     t.config.AttemptsPerWindow + t.config.BurstSize,
			lastUpdate: time.Now(),
		}
		t.buckets[key] = b
	}
	t.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)

	tokensToAdd := int(elapsed.Seconds() * float64(t.config.AttemptsPerWindow) / t.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		maxTokens := t.config.AttemptsPerWindow + t.config.BurstSize
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Cleanup removes buckets idle for more than two windows
func (t *Throttler) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, b := range t.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > t.config.WindowDuration*2 {
			delete(t.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup once per window until the context is cancelled
func (t *Throttler) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(t.config.WindowDuration)
	go func() {
		for {
			select {
			case <-ticker.C:
				t.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// LoginThrottle limits authentication attempts per client IP. It guards
// only the credential-presenting endpoints; it is not a general request
// rate limit.
type LoginThrottle struct {
	throttler *Throttler
	metrics   *observability.Metrics
}

// NewLoginThrottle creates a login throttle with the given config
func NewLoginThrottle(config *ThrottleConfig) *LoginThrottle {
	return &LoginThrottle{throttler: NewThrottler(config)}
}

// WithMetrics enables the throttled-attempt counter
func (t *LoginThrottle) WithMetrics(m *observability.Metrics) *LoginThrottle {
	t.metrics = m
	return t
}

// Handler wraps a login-style handler with per-IP throttling
func (t *LoginThrottle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if !t.throttler.Allow(key) {
			if t.metrics != nil {
				t.metrics.LoginAttemptsTotal.WithLabelValues("throttled").Inc()
			}
			observability.FromContext(r.Context()).
				WithField("client", key).
				Warn("login attempt throttled")
			retryAfter := t.throttler.config.WindowDuration.Seconds()
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many attempts","retry_after":` + fmt.Sprintf("%.0f", retryAfter) + `}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop in the chain is the original client.
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
