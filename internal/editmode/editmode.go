// Package editmode cycles the clock's selected-field index on debounced
// button presses. Field 0 means normal mode; fields 1..6 select year,
// month, day, hour, minute and second for editing.
package editmode

import (
	"context"
	"time"
)

// FieldCount is the number of editable fields. The selected-field index
// cycles through 0..FieldCount, where 0 is "no field selected".
const FieldCount = 6

// Button is the debounce-level view of a push button on a pull-up input:
// the line falls when pressed and rises when released. The edge waits
// block; the level read does not.
type Button interface {
	WaitForFallingEdge(ctx context.Context) error
	WaitForRisingEdge(ctx context.Context) error
	IsPressed() bool
}

// StateMachine holds the selected-field index. It is owned exclusively
// by the button task; other tasks learn the field through a channel.
type StateMachine struct {
	field int
}

// Field returns the current selected-field index.
func (m *StateMachine) Field() int {
	return m.field
}

// Advance cycles to the next field and returns the new index:
// 0 → 1 → ... → FieldCount → 0.
func (m *StateMachine) Advance() int {
	m.field = (m.field + 1) % (FieldCount + 1)
	return m.field
}

// WaitForPress blocks until a genuine, debounced button press. A falling
// edge is confirmed by re-sampling the level after the debounce window;
// a transient blip that has bounced back high by then is discarded and
// the wait re-arms. Returns ctx.Err() if the context ends first.
func WaitForPress(ctx context.Context, b Button, debounce time.Duration) error {
	for {
		if err := b.WaitForFallingEdge(ctx); err != nil {
			return err
		}

		select {
		case <-time.After(debounce):
		case <-ctx.Done():
			return ctx.Err()
		}

		if !b.IsPressed() {
			continue // bounce, not a press
		}
		return nil
	}
}
