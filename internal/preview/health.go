package preview

import "time"

// maxBackoffShift bounds the exponent so the shift cannot overflow.
const maxBackoffShift = 16

// health tracks consecutive fetch failures for one run of the loop.
// Guarded by Loop.mu.
type health struct {
	threshold int
	failures  int
	degraded  bool
	lastErr   string
	lastFail  time.Time
}

// recordFailure counts a failure and reports whether this one crossed the
// threshold.
func (h *health) recordFailure(err error, at time.Time) (becameDegraded bool) {
	h.failures++
	h.lastErr = err.Error()
	h.lastFail = at
	if !h.degraded && h.failures >= h.threshold {
		h.degraded = true
		return true
	}
	return false
}

// recordSuccess resets the counter and reports whether the loop was
// degraded before.
func (h *health) recordSuccess() (recovered bool) {
	recovered = h.degraded
	h.failures = 0
	h.degraded = false
	h.lastErr = ""
	return recovered
}

func (h *health) reset() {
	h.failures = 0
	h.degraded = false
	h.lastErr = ""
	h.lastFail = time.Time{}
}

// delay returns the wait before the next tick: base while healthy, then
// doubling per failure past the threshold up to max.
func (h *health) delay(base, max time.Duration) time.Duration {
	if !h.degraded {
		return base
	}
	shift := h.failures - h.threshold + 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := base << uint(shift)
	if d > max || d <= 0 {
		return max
	}
	return d
}
