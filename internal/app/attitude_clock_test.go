// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/attitude_clock/internal/clock"
)

const testTick = 30 * time.Millisecond

func TestStepClockPausesWhileEditing(t *testing.T) {
	start := time.Date(2025, time.July, 20, 18, 0, 0, 0, time.UTC)
	c := clock.New(start)

	// Normal mode: time flows tick by tick.
	for i := 0; i < 100; i++ {
		stepClock(c, testTick, clock.FieldNone, 0, false)
	}
	assert.Equal(t, start.Add(3*time.Second), c.Now())

	// With a field selected, ticks must not move the time at all.
	frozen := c.Now()
	for i := 0; i < 100; i++ {
		stepClock(c, testTick, clock.FieldMinute, 0, false)
	}
	assert.Equal(t, frozen, c.Now(), "time must stand still while a field is being edited")

	// An encoder delta adjusts the selected field, still without the
	// tick advancing underneath it.
	assert.True(t, stepClock(c, testTick, clock.FieldMinute, 2, true))
	assert.Equal(t, frozen.Add(2*time.Minute), c.Now())
}

func TestStepClockDiscardsDeltaWithoutField(t *testing.T) {
	start := time.Date(2025, time.July, 20, 18, 0, 0, 0, time.UTC)
	c := clock.New(start)

	assert.False(t, stepClock(c, testTick, clock.FieldNone, 5, true))
	assert.Equal(t, start.Add(testTick), c.Now(), "a stray delta in normal mode is dropped, the tick still applies")
}
