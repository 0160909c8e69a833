package command

import "time"

// timeoutDuration converts a BLPOP-style float-seconds timeout into a
// time.Duration, where 0 means "wait indefinitely" (signaled by returning 0,
// which blocking.Wait/WaitBytes treat as no deadline).
func timeoutDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// timeoutDurationMs is XREAD BLOCK's millisecond-integer counterpart.
func timeoutDurationMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
