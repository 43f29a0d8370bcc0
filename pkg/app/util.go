package app

import "time"

// nextDelay returns the time until the next interval boundary, so refreshes
// land on a stable cadence across restarts.
func nextDelay(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

func pointer[K any](val K) *K {
	return &val
}
