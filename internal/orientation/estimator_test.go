package orientation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/attitude_clock/internal/imu"
)

// fakeSampleSource replays scripted samples, holding the last one once
// exhausted; err, when set, fails every read.
type fakeSampleSource struct {
	samples []imu.Sample
	err     error
	reads   int
}

func (f *fakeSampleSource) ReadSample() (imu.Sample, error) {
	if f.err != nil {
		return imu.Sample{}, f.err
	}
	i := f.reads
	if i >= len(f.samples) {
		i = len(f.samples) - 1
	}
	f.reads++
	return f.samples[i], nil
}

func TestCalibrateComputesMeanBias(t *testing.T) {
	// Two alternating samples: the bias must be their arithmetic mean,
	// with 1 g removed from the accelerometer Z axis.
	src := &fakeSampleSource{samples: []imu.Sample{
		{Accel: imu.Vector3{X: 0.02, Y: -0.04, Z: 1.06}, Gyro: imu.Vector3{X: 0.10, Y: -0.06, Z: 0.02}},
		{Accel: imu.Vector3{X: 0.04, Y: -0.02, Z: 1.02}, Gyro: imu.Vector3{X: 0.14, Y: -0.02, Z: 0.00}},
		{Accel: imu.Vector3{X: 0.02, Y: -0.04, Z: 1.06}, Gyro: imu.Vector3{X: 0.10, Y: -0.06, Z: 0.02}},
		{Accel: imu.Vector3{X: 0.04, Y: -0.02, Z: 1.02}, Gyro: imu.Vector3{X: 0.14, Y: -0.02, Z: 0.00}},
	}}
	e := NewEstimator(src, testPeriod, testBeta)

	err := e.Calibrate(context.Background(), 4, time.Microsecond)
	require.NoError(t, err)
	require.Equal(t, 4, src.reads, "bias must come from exactly N samples")

	off := e.Offsets()
	assert.InDelta(t, 0.03, float64(off.AccelBias.X), 1e-6)
	assert.InDelta(t, -0.03, float64(off.AccelBias.Y), 1e-6)
	assert.InDelta(t, 0.04, float64(off.AccelBias.Z), 1e-5, "vertical bias is the raw mean minus 1 g")
	assert.InDelta(t, 0.12, float64(off.GyroBias.X), 1e-6)
	assert.InDelta(t, -0.04, float64(off.GyroBias.Y), 1e-6)
	assert.InDelta(t, 0.01, float64(off.GyroBias.Z), 1e-6)
}

func TestCalibrateTimeoutDiscardsPartialState(t *testing.T) {
	src := &fakeSampleSource{samples: []imu.Sample{
		{Accel: imu.Vector3{Z: 1}},
	}}
	e := NewEstimator(src, testPeriod, testBeta)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := e.Calibrate(ctx, 1000, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, imu.Offsets{}, e.Offsets(), "no partial bias may be published")
	_, err = e.Next()
	assert.Error(t, err, "the estimator must stay unusable after a failed calibration")
}

func TestCalibrateBusErrorIsFatal(t *testing.T) {
	busErr := errors.New("spi: transfer failed")
	src := &fakeSampleSource{err: busErr}
	e := NewEstimator(src, testPeriod, testBeta)

	err := e.Calibrate(context.Background(), 10, time.Microsecond)
	assert.ErrorIs(t, err, busErr)
}

func TestNextSkipsDegenerateTick(t *testing.T) {
	level := imu.Sample{Accel: imu.Vector3{Z: 1}}
	src := &fakeSampleSource{samples: []imu.Sample{level}}
	e := NewEstimator(src, testPeriod, testBeta)
	require.NoError(t, e.Calibrate(context.Background(), 2, time.Microsecond))

	// The calibrated bias removes everything except gravity, so a level
	// sample is fine...
	first, err := e.Next()
	require.NoError(t, err)

	// ...but a sample equal to the bias itself normalizes to zero accel:
	// the tick is skipped and the previous pose retained.
	src.samples = []imu.Sample{{Accel: e.Offsets().AccelBias, Gyro: imu.Vector3{X: 99}}}
	src.reads = 0
	again, err := e.Next()
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestNextBeforeCalibrationFails(t *testing.T) {
	e := NewEstimator(&fakeSampleSource{samples: []imu.Sample{{}}}, testPeriod, testBeta)
	_, err := e.Next()
	assert.Error(t, err)
}
