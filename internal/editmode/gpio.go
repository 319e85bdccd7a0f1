package editmode

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePollTimeout bounds each blocking WaitForEdge call so the context
// is checked regularly; it is not a debounce interval.
const edgePollTimeout = 200 * time.Millisecond

// GPIOButton is a Button backed by a periph.io GPIO input with a pull-up.
type GPIOButton struct {
	pin gpio.PinIn
}

// NewGPIOButton opens the button pin by name and configures it for edge
// detection with a pull-up, so the line is high until pressed.
func NewGPIOButton(pinName string) (*GPIOButton, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("button: periph host init: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("button: pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("button: configure pin: %w", err)
	}
	return &GPIOButton{pin: pin}, nil
}

// WaitForFallingEdge blocks until the line goes low or ctx is done.
func (b *GPIOButton) WaitForFallingEdge(ctx context.Context) error {
	return b.waitForLevel(ctx, gpio.Low)
}

// WaitForRisingEdge blocks until the line goes high or ctx is done.
func (b *GPIOButton) WaitForRisingEdge(ctx context.Context) error {
	return b.waitForLevel(ctx, gpio.High)
}

// IsPressed reads the line level synchronously; pressed means low.
func (b *GPIOButton) IsPressed() bool {
	return b.pin.Read() == gpio.Low
}

func (b *GPIOButton) waitForLevel(ctx context.Context, want gpio.Level) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.pin.WaitForEdge(edgePollTimeout) && b.pin.Read() == want {
			return nil
		}
	}
}
