package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter replays a fixed sequence of raw counts, holding the last
// value once exhausted.
type fakeCounter struct {
	counts []uint16
	i      int
}

func (f *fakeCounter) Count() uint16 {
	c := f.counts[f.i]
	if f.i < len(f.counts)-1 {
		f.i++
	}
	return c
}

func TestDecoderInitialZeroDelta(t *testing.T) {
	d := NewDecoder(&fakeCounter{counts: []uint16{12345}}, 4)

	delta, emit := d.Poll()
	require.True(t, emit, "first poll must emit a defined value")
	assert.Equal(t, 0, delta)
}

func TestDecoderWrapCorrection(t *testing.T) {
	tests := []struct {
		name   string
		counts []uint16
		want   int
	}{
		{
			name:   "forward across wrap",
			counts: []uint16{65530, 2}, // +8 through zero
			want:   8,
		},
		{
			name:   "backward across wrap",
			counts: []uint16{2, 65530}, // -8 through zero
			want:   -8,
		},
		{
			name:   "plain forward",
			counts: []uint16{100, 107},
			want:   7,
		},
		{
			name:   "plain backward",
			counts: []uint16{107, 100},
			want:   -7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(&fakeCounter{counts: tt.counts}, 1)
			_, _ = d.Poll() // prime, emits the initial zero

			delta, emit := d.Poll()
			require.True(t, emit)
			assert.Equal(t, tt.want, delta)
		})
	}
}

func TestDecoderSmoothing(t *testing.T) {
	// Raw counts [3, 6, 65535] with S=4: corrected deltas are +3 then -7
	// (the second read wraps backward through zero and is corrected via
	// the -65536 rule). One smoothed unit comes out when the accumulator
	// first reaches magnitude 4; the leftover carries in the remainder.
	f := &fakeCounter{counts: []uint16{3, 6, 65535}}
	d := NewDecoder(f, 4)

	delta, emit := d.Poll()
	require.True(t, emit)
	require.Equal(t, 0, delta)

	// +3: below the smoothing threshold, nothing emitted.
	_, emit = d.Poll()
	assert.False(t, emit)
	assert.Equal(t, 3, d.Remainder())

	// -7: accumulator reaches -4, one unit of -1 comes out, remainder 0.
	delta, emit = d.Poll()
	require.True(t, emit)
	assert.Equal(t, -1, delta)
	assert.Equal(t, 0, d.Remainder())
}

func TestDecoderDeltaSumConservation(t *testing.T) {
	// For any raw count sequence, sum(emitted)*S + remainder equals the
	// net corrected movement, including across wrap-arounds.
	const smoothing = 4
	counts := []uint16{0, 10, 30, 25, 65500, 65530, 40, 35, 100, 90}

	f := &fakeCounter{counts: counts}
	d := NewDecoder(f, smoothing)

	var emitted int
	for range counts {
		if delta, emit := d.Poll(); emit {
			emitted += delta
		}
	}

	// Net corrected movement computed independently.
	var net int
	for i := 1; i < len(counts); i++ {
		raw := int(int32(counts[i]) - int32(counts[i-1]))
		if raw > 32767 {
			raw -= 65536
		} else if raw < -32767 {
			raw += 65536
		}
		net += raw
	}

	assert.Equal(t, net, emitted*smoothing+d.Remainder())
}

func TestDecoderSignPreservingRemainder(t *testing.T) {
	// A burst of -9 with S=4 emits -2 and leaves a remainder of -1:
	// the modulo keeps the accumulator's sign.
	f := &fakeCounter{counts: []uint16{20, 11}}
	d := NewDecoder(f, 4)
	_, _ = d.Poll()

	delta, emit := d.Poll()
	require.True(t, emit)
	assert.Equal(t, -2, delta)
	assert.Equal(t, -1, d.Remainder())
}
