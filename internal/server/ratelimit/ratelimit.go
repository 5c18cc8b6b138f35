// Package ratelimit provides per-client request limits for the HTTP surface.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTTL is how long an unused bucket is kept
	IdleTTL         time.Duration
	Whitelist       []string
	Blacklist       []string
	EndpointConfigs []EndpointConfig
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

type bucket struct {
	lim        *rate.Limiter
	limit      int
	window     time.Duration
	lastAccess time.Time
}

// Limiter keeps one token bucket per client, endpoint and method.
type Limiter struct {
	config    *Config
	whitelist map[string]bool
	blacklist map[string]bool

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration. A
// cleanup goroutine runs until Stop when CleanupInterval is positive.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	l := &Limiter{
		config:    config,
		whitelist: toSet(config.Whitelist),
		blacklist: toSet(config.Blacklist),
		buckets:   make(map[string]*bucket),
		stop:      make(chan struct{}),
		now:       time.Now,
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanup(config.CleanupInterval)
	}
	return l
}

// Allow reports whether a request from clientID to endpoint may proceed.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.blacklist[clientID] {
		return false, Info{}
	}

	key := endpoint
	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec == nil {
		ec = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	} else if ec.Path != "" {
		// prefix routes share one bucket across ids
		key = ec.Path
	}
	if ec.Limit <= 0 || ec.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	b := l.bucket(clientID+":"+method+":"+key, *ec, now)

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, Info{Limit: b.limit, ResetTime: now.Add(b.window)}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, Info{
			Limit:      b.limit,
			ResetTime:  l.resetTime(b, now),
			RetryAfter: delay,
		}
	}
	return true, Info{
		Allowed:   true,
		Limit:     b.limit,
		Remaining: int(math.Max(0, math.Floor(b.lim.TokensAt(now)))),
		ResetTime: l.resetTime(b, now),
	}
}

func (l *Limiter) bucket(key string, ec EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		burst := ec.Burst
		if burst <= 0 {
			burst = ec.Limit
		}
		every := ec.Window / time.Duration(ec.Limit)
		b = &bucket{
			lim:    rate.NewLimiter(rate.Every(every), burst),
			limit:  ec.Limit,
			window: ec.Window,
		}
		l.buckets[key] = b
	}
	b.lastAccess = now
	return b
}

// resetTime is when the bucket will be full again
func (l *Limiter) resetTime(b *bucket, now time.Time) time.Time {
	missing := float64(b.lim.Burst()) - b.lim.TokensAt(now)
	if missing <= 0 || b.lim.Limit() <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / float64(b.lim.Limit()) * float64(time.Second)))
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanupBuckets()
		case <-l.stop:
			return
		}
	}
}

// cleanupBuckets removes buckets idle for longer than IdleTTL.
func (l *Limiter) cleanupBuckets() {
	cutoff := l.now().Add(-l.config.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		if item != "" {
			out[item] = true
		}
	}
	return out
}
