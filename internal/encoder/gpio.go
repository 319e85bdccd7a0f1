package encoder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Quadrature transition table indexed by (previous<<2 | current) two-bit
// phase states. Invalid transitions (both phases flipping at once, i.e.
// contact bounce or a missed sample) contribute nothing.
var quadTable = [16]int32{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// GPIOCounter maintains a wrapping 16-bit position counter from two
// phase-offset GPIO inputs, sampled on its own fast tick. It implements
// Counter for the decoder, which polls at a much slower rate.
type GPIOCounter struct {
	clk   gpio.PinIn
	dt    gpio.PinIn
	count atomic.Uint32
	state uint8
}

// NewGPIOCounter opens the two encoder phase pins by name and configures
// them with pull-ups. Call Run to start sampling.
func NewGPIOCounter(clkPin, dtPin string) (*GPIOCounter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("encoder: periph host init: %w", err)
	}

	clk := gpioreg.ByName(clkPin)
	if clk == nil {
		return nil, fmt.Errorf("encoder: CLK pin %q not found", clkPin)
	}
	dt := gpioreg.ByName(dtPin)
	if dt == nil {
		return nil, fmt.Errorf("encoder: DT pin %q not found", dtPin)
	}

	if err := clk.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("encoder: configure CLK pin: %w", err)
	}
	if err := dt.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("encoder: configure DT pin: %w", err)
	}

	c := &GPIOCounter{clk: clk, dt: dt}
	c.state = c.phase()
	return c, nil
}

// Run samples the phase pins at the given interval until ctx is done.
// It is meant to be run as its own task; one sample per millisecond is
// plenty for a hand-turned rotary encoder.
func (c *GPIOCounter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cur := c.phase()
			step := quadTable[c.state<<2|cur]
			c.state = cur
			if step != 0 {
				c.count.Add(uint32(step))
			}
		}
	}
}

// Count returns the current wrapping position counter.
func (c *GPIOCounter) Count() uint16 {
	return uint16(c.count.Load())
}

func (c *GPIOCounter) phase() uint8 {
	var p uint8
	if c.clk.Read() == gpio.High {
		p |= 0b01
	}
	if c.dt.Read() == gpio.High {
		p |= 0b10
	}
	return p
}
