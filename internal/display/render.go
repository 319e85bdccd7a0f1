package display

import (
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/attitude_clock/internal/orientation"
)

const (
	width  = 128
	height = 64

	// basicfont.Face7x13 metrics.
	charWidth  = 7
	lineHeight = 13
)

// NewFrame allocates a blank 128x64 frame buffer.
func NewFrame() *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, width, height))
}

func clear(img *image1bit.VerticalLSB) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
}

func drawText(img *image1bit.VerticalLSB, x, baseline int, s string) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	drawer.DrawString(s)
}

func drawHLine(img *image1bit.VerticalLSB, x0, x1, y int) {
	for x := x0; x < x1; x++ {
		img.Set(x, y, image1bit.On)
	}
}

// Layout of the clock page. The date and time rows are centered for
// their fixed widths; the cursor table maps each editable field to the
// character span it underlines.
const (
	dateX        = 29 // (128 - 10*7) / 2
	dateBaseline = 14
	timeX        = 36 // (128 - 8*7) / 2
	timeBaseline = 34
	weekBaseline = 54
)

// cursorSpans[field-1] is the underline segment (left pixel, row, width
// in characters) for fields 1..6: year, month, day, hour, minute, second.
var cursorSpans = [6]struct {
	x, y, chars int
}{
	{dateX + 0*charWidth, dateBaseline + 2, 4}, // year "YYYY"
	{dateX + 5*charWidth, dateBaseline + 2, 2}, // month "MM"
	{dateX + 8*charWidth, dateBaseline + 2, 2}, // day "DD"
	{timeX + 0*charWidth, timeBaseline + 2, 2}, // hour "HH"
	{timeX + 3*charWidth, timeBaseline + 2, 2}, // minute "MM"
	{timeX + 6*charWidth, timeBaseline + 2, 2}, // second "SS"
}

// RenderClock draws the calendar page: date, time, weekday, and — when a
// field is selected and the blink phase is visible — an underline cursor
// beneath the selected field.
func RenderClock(img *image1bit.VerticalLSB, now time.Time, field int, cursorVisible bool) {
	clear(img)

	drawText(img, dateX, dateBaseline, now.Format("2006-01-02"))
	drawText(img, timeX, timeBaseline, now.Format("15:04:05"))

	weekday := now.Weekday().String()
	weekX := (width - len(weekday)*charWidth) / 2
	drawText(img, weekX, weekBaseline, weekday)

	if cursorVisible && field >= 1 && field <= len(cursorSpans) {
		span := cursorSpans[field-1]
		drawHLine(img, span.x, span.x+span.chars*charWidth, span.y)
	}
}

// RenderAttitude draws the orientation page: one fixed-width row per
// Euler angle, or a waiting message until the first pose arrives.
func RenderAttitude(img *image1bit.VerticalLSB, pose orientation.Pose, have bool) {
	clear(img)

	if !have {
		drawText(img, 0, 26, "Attitude")
		drawText(img, 0, 39, "Calibrating...")
		return
	}

	drawText(img, 0, lineHeight, FormatAngle("roll", pose.Roll))
	drawText(img, 0, 2*lineHeight+6, FormatAngle("pitch", pose.Pitch))
	drawText(img, 0, 3*lineHeight+12, FormatAngle("yaw", pose.Yaw))
}

// RenderSplash draws the startup screen shown until the first data tick.
func RenderSplash(img *image1bit.VerticalLSB) {
	clear(img)
	drawText(img, 15, 26, "Attitude Clock")
	drawText(img, 25, 43, "starting...")
}
