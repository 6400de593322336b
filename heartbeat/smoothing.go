package heartbeat

import "time"

// warmupSignals is how many signals are observed before the smoothed
// interval drives a timeout.
const warmupSignals = 2

// ObserveSignal feeds the arrival time of a heartbeat into the smoothed
// inter-signal interval and reports whether it is ready to drive a timeout.
//
// The first signal only records its arrival. The second seeds the interval
// with the observed gap. From the third on the interval is an exponentially
// weighted average, 0.8 on the previous value and 0.2 on the new gap.
func (c *Core) ObserveSignal(now time.Time) bool {
	if c.warmup < warmupSignals {
		if c.warmup == 1 {
			c.smoothed = now.Sub(c.lastSignal)
		}
		c.warmup++
		c.lastSignal = now
		return false
	}

	elapsed := now.Sub(c.lastSignal)
	c.smoothed = (c.smoothed*4 + elapsed) / 5
	c.lastSignal = now
	return true
}

// SmoothedInterval returns the current smoothed inter-signal interval.
func (c *Core) SmoothedInterval() time.Duration {
	return c.smoothed
}

// Window scales the smoothed interval by threshold.
func (c *Core) Window(threshold float64) time.Duration {
	return time.Duration(float64(c.smoothed) * threshold)
}
