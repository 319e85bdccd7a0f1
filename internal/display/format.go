// Package display renders the clock and attitude pages into SSD1306
// frame buffers. Everything here draws into an in-memory image; the
// display task owns the device and flushes the buffer to hardware.
package display

import (
	"fmt"

	"github.com/chewxy/math32"
)

// FormatAngle formats an angle in degrees as a fixed-width row, with the
// label padded to five columns and the sign in its own fixed column so a
// negative value never shifts the digits:
//
//	"roll :   3.20"
//	"pitch:- 12.34"
//	"yaw  : 179.99"
func FormatAngle(label string, deg float32) string {
	sign := byte(' ')
	if math32.Signbit(deg) {
		sign = '-'
	}
	// Round once to hundredths, then split, so a value like 3.9999
	// renders as 4.00 rather than the inconsistent 3.99.
	cents := int(math32.Abs(deg)*100 + 0.5)
	return fmt.Sprintf("%-5s:%c%3d.%02d", label, sign, cents/100, cents%100)
}
