// Package limits implements a per-connection command-rate admission
// limiter. It is purely ambient protection against a runaway client
// pipelining commands faster than the single-threaded dispatcher can drain
// them; it has no bearing on command semantics.
package limits

import (
	"golang.org/x/time/rate"
)

// CommandLimiter admits or rejects the next command for one connection
// using a token-bucket limiter.
type CommandLimiter struct {
	limiter *rate.Limiter
}

// NewCommandLimiter builds a limiter admitting up to ratePerSec commands a
// second, with a burst allowance of burst.
func NewCommandLimiter(ratePerSec float64, burst int) *CommandLimiter {
	return &CommandLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether the next inbound command may proceed now.
func (c *CommandLimiter) Allow() bool {
	return c.limiter.Allow()
}
