package display

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/attitude_clock/internal/orientation"
)

func countLit(t *testing.T, pixels []byte) int {
	t.Helper()
	n := 0
	for _, b := range pixels {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestRenderClockDrawsSomething(t *testing.T) {
	img := NewFrame()
	RenderClock(img, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), 0, false)
	require.NotZero(t, countLit(t, img.Pix), "date/time text must set pixels")
}

func TestRenderClockCursorBlink(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	img := NewFrame()
	RenderClock(img, now, 1, false)
	hidden := countLit(t, img.Pix)

	RenderClock(img, now, 1, true)
	visible := countLit(t, img.Pix)

	// The year field is 4 characters wide, so the visible cursor adds
	// exactly one underline of 4*charWidth pixels.
	assert.Equal(t, hidden+4*charWidth, visible)
}

func TestRenderClockNoCursorWithoutField(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	img := NewFrame()
	RenderClock(img, now, 0, true)
	noField := countLit(t, img.Pix)

	RenderClock(img, now, 0, false)
	assert.Equal(t, noField, countLit(t, img.Pix), "field 0 never shows a cursor")
}

func TestRenderAttitudeWaitingState(t *testing.T) {
	img := NewFrame()

	RenderAttitude(img, orientation.Pose{}, false)
	waiting := countLit(t, img.Pix)
	require.NotZero(t, waiting)

	RenderAttitude(img, orientation.Pose{Roll: 1.5, Pitch: -2.25, Yaw: 90}, true)
	assert.NotEqual(t, waiting, countLit(t, img.Pix))
}
