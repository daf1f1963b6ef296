package respserver

import (
	"net"

	"golang.org/x/time/rate"

	"github.com/yndnr/keymesh-go/pkg/cmap"
)

// limiterRegistry hands out one token-bucket limiter per client IP.
type limiterRegistry struct {
	limiters *cmap.Map[*rate.Limiter]
	rate     int
}

func newLimiterRegistry(commandsPerSecond int) *limiterRegistry {
	return &limiterRegistry{
		limiters: cmap.New[*rate.Limiter](),
		rate:     commandsPerSecond,
	}
}

// allow reports whether a command from addr may proceed.
func (r *limiterRegistry) allow(addr net.Addr) bool {
	ip := addrIP(addr)

	limiter, ok := r.limiters.Get(ip)
	if !ok {
		limiter, _ = r.limiters.GetOrSet(ip, rate.NewLimiter(rate.Limit(r.rate), r.rate))
	}
	return limiter.Allow()
}

// addrIP extracts the host part of a client address.
func addrIP(addr net.Addr) string {
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}
