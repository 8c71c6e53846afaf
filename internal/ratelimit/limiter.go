// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound direct fetches per retailer
type RateLimiter interface {
	// Wait blocks until a request for urlStr may proceed or ctx is done
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a request for urlStr may proceed right now,
	// consuming a token if so
	Allow(urlStr string) bool
}

// DomainLimiter keeps one token bucket per registrable domain, so
// www.example.com, images.example.com and m.example.com share a budget
// while different retailers never slow each other down.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// NewDomainLimiter creates a limiter allowing requestsPerSecond per retailer
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	if burst <= 0 {
		burst = 4
	}

	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the retailer's bucket has a token. URLs without a host
// pass through; the fetch itself rejects them.
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	key := bucketKey(urlStr)
	if key == "" {
		return nil
	}
	return dl.limiter(key).Wait(ctx)
}

// Allow consumes a token if one is available
func (dl *DomainLimiter) Allow(urlStr string) bool {
	key := bucketKey(urlStr)
	if key == "" {
		return true
	}
	return dl.limiter(key).Allow()
}

// Hosts returns the number of retailers with a live bucket
func (dl *DomainLimiter) Hosts() int {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return len(dl.limiters)
}

func (dl *DomainLimiter) limiter(key string) *rate.Limiter {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	l, ok := dl.limiters[key]
	if !ok {
		l = rate.NewLimiter(dl.perHost, dl.burst)
		dl.limiters[key] = l
	}
	return l
}

// bucketKey maps a URL to its registrable domain (eTLD+1). IP addresses,
// localhost and bare public suffixes fall back to the host itself.
func bucketKey(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}
	return host
}
