// Package encoder turns a periodically-read wrapping quadrature counter
// into a smoothed signed delta stream.
package encoder

// Counter is the hardware side of a quadrature encoder: a wrapping
// 16-bit position counter. Only deltas between consecutive reads are
// meaningful, never the absolute value.
type Counter interface {
	Count() uint16
}

const (
	fullRange = 65536
	halfRange = 32767
)

// Decoder accumulates corrected position deltas and emits one unit of
// motion per Smoothing raw counts. The division both damps mechanical
// bounce jitter and rate-limits the output.
type Decoder struct {
	counter   Counter
	smoothing int32
	prev      uint16
	acc       int32
	primed    bool
}

// NewDecoder creates a decoder over counter. smoothing must be at least 1.
func NewDecoder(counter Counter, smoothing int) *Decoder {
	if smoothing < 1 {
		smoothing = 1
	}
	return &Decoder{counter: counter, smoothing: int32(smoothing)}
}

// Poll reads the counter once and returns the smoothed delta to emit.
// The first call latches the initial position and emits a zero delta so
// consumers have a defined first value; after that, emit is false until
// the accumulated motion reaches the smoothing factor.
func (d *Decoder) Poll() (delta int, emit bool) {
	cur := d.counter.Count()
	if !d.primed {
		d.prev = cur
		d.primed = true
		return 0, true
	}

	raw := int32(cur) - int32(d.prev)
	d.prev = cur

	// A jump of more than half the counter range is a wrap, not a real
	// movement; correct it toward the short way around.
	switch {
	case raw > halfRange:
		raw -= fullRange
	case raw < -halfRange:
		raw += fullRange
	}

	d.acc += raw
	if d.acc >= d.smoothing || d.acc <= -d.smoothing {
		out := d.acc / d.smoothing
		d.acc %= d.smoothing
		return int(out), true
	}
	return 0, false
}

// Remainder reports the raw counts accumulated but not yet emitted.
func (d *Decoder) Remainder() int {
	return int(d.acc)
}
