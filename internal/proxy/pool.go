package proxy

import (
	"strings"
	"sync"
	"time"
)

// DefaultBench is how long a failed proxy is skipped
const DefaultBench = 5 * time.Minute

// ProxyPool rotates the outbound HTTP proxies used for direct retailer fetches
// and benches proxies that recently failed.
type ProxyPool struct {
	proxies []string
	index   int
	bench   time.Duration
	mu      sync.Mutex
	failed  map[string]time.Time
}

// NewProxyPool creates a new ProxyPool. Blank entries are dropped.
func NewProxyPool(proxies []string) *ProxyPool {
	cleaned := make([]string, 0, len(proxies))
	for _, p := range proxies {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &ProxyPool{
		proxies: cleaned,
		bench:   DefaultBench,
		failed:  make(map[string]time.Time),
	}
}

// Len reports how many proxies are configured
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// GetNext returns the next healthy proxy from the pool, or "" when the pool
// is empty. When every proxy is benched the next one in rotation is returned
// anyway.
func (p *ProxyPool) GetNext() string {
	if p == nil {
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	start := p.index
	for {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[proxy]; ok {
			if time.Since(failTime) < p.bench {
				if p.index == start {
					return proxy
				}
				continue
			}
			delete(p.failed, proxy)
		}

		return proxy
	}
}

// MarkFailed marks a proxy as failed so it will be skipped for a while
func (p *ProxyPool) MarkFailed(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = time.Now()
}

// MarkHealthy clears the failure status of a proxy
func (p *ProxyPool) MarkHealthy(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
