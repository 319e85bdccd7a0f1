package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAngle(t *testing.T) {
	tests := []struct {
		name  string
		label string
		deg   float32
		want  string
	}{
		{"positive small", "roll", 3.2, "roll :   3.20"},
		{"negative keeps digit columns", "pitch", -12.34, "pitch:- 12.34"},
		{"three digit", "yaw", 179.99, "yaw  : 179.99"},
		{"negative three digit", "yaw", -179.99, "yaw  :-179.99"},
		{"zero", "roll", 0, "roll :   0.00"},
		{"rounds up into next whole", "roll", 3.9999, "roll :   4.00"},
		{"rounds negative toward larger magnitude", "pitch", -0.996, "pitch:-  1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAngle(tt.label, tt.deg)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 13, "rows must be fixed width")
		})
	}
}
