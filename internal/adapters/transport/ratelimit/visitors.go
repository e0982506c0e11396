// Package ratelimit keeps one token bucket per client address.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Visitors hands out a limiter per host. Idle hosts fall out of the cache
// after ttl and the cache never holds more than size hosts.
type Visitors struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors *expirable.LRU[string, *rate.Limiter]
}

func NewVisitors(limit, burst, size int, ttl time.Duration) *Visitors {
	return &Visitors{
		limit:    rate.Limit(limit),
		burst:    burst,
		visitors: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
	}
}

// Allow reports whether host may make one more request now.
func (v *Visitors) Allow(host string) bool {
	v.mu.Lock()
	l, ok := v.visitors.Get(host)
	if !ok {
		l = rate.NewLimiter(v.limit, v.burst)
		v.visitors.Add(host, l)
	}
	v.mu.Unlock()

	return l.Allow()
}

// Host strips the port from addr; addresses without a port are returned as is.
func Host(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
