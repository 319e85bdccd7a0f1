package orientation

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/attitude_clock/internal/imu"
)

const (
	testPeriod = 0.01 // 100 Hz
	testBeta   = 0.1
)

func TestMadgwickUnitNormInvariant(t *testing.T) {
	f := NewMadgwick(testPeriod, testBeta)

	// A mix of rotation rates and tilted gravity vectors; the estimate
	// must stay unit-norm through all of them.
	samples := []struct {
		gyro, accel imu.Vector3
	}{
		{imu.Vector3{X: 0.5}, imu.Vector3{Z: 1}},
		{imu.Vector3{Y: -1.2}, imu.Vector3{X: 0.2, Z: 0.98}},
		{imu.Vector3{Z: 2.0}, imu.Vector3{Y: -0.3, Z: 0.95}},
		{imu.Vector3{X: -0.1, Y: 0.1, Z: -0.1}, imu.Vector3{X: 0.1, Y: 0.1, Z: 1.02}},
	}

	for i := 0; i < 500; i++ {
		s := samples[i%len(samples)]
		require.NoError(t, f.UpdateIMU(s.gyro, s.accel))
		assert.InDelta(t, 1.0, float64(f.Quaternion().Norm()), 1e-5, "iteration %d", i)
	}
}

func TestMadgwickDegenerateAccelRejected(t *testing.T) {
	f := NewMadgwick(testPeriod, testBeta)
	before := f.Quaternion()

	err := f.UpdateIMU(imu.Vector3{X: 0.1}, imu.Vector3{})
	require.ErrorIs(t, err, ErrDegenerateSample)
	assert.Equal(t, before, f.Quaternion(), "failed update must not touch the state")
}

func TestMadgwickGyroIntegration(t *testing.T) {
	// One second of +1 rad/s about Z with gravity straight down should
	// yaw by roughly +1 rad. The gravity correction cannot oppose a pure
	// yaw, so the integration dominates.
	f := NewMadgwick(testPeriod, testBeta)

	for i := 0; i < 100; i++ {
		require.NoError(t, f.UpdateIMU(imu.Vector3{Z: 1}, imu.Vector3{Z: 1}))
	}

	pose := f.Quaternion().Euler()
	wantYaw := float32(1.0 * 180 / math32.Pi)
	assert.InDelta(t, float64(wantYaw), float64(pose.Yaw), 3.0)
	assert.InDelta(t, 0.0, float64(pose.Roll), 1.0)
	assert.InDelta(t, 0.0, float64(pose.Pitch), 1.0)
}

func TestMadgwickConvergesToGravity(t *testing.T) {
	// With no rotation and gravity along +Z, a filter started at a
	// perturbed orientation must settle back toward level.
	f := NewMadgwick(testPeriod, 0.5)
	f.q = Quaternion{W: 0.96, X: 0.2, Y: 0.2, Z: 0}

	for i := 0; i < 2000; i++ {
		require.NoError(t, f.UpdateIMU(imu.Vector3{}, imu.Vector3{Z: 1}))
	}

	pose := f.Quaternion().Euler()
	assert.InDelta(t, 0.0, float64(pose.Roll), 0.5)
	assert.InDelta(t, 0.0, float64(pose.Pitch), 0.5)
}

func TestQuaternionEulerClampsPitch(t *testing.T) {
	// A slightly denormalized quaternion pushes sinp past 1 (2*0.71*0.71
	// = 1.0082), the way accumulated rounding does near gimbal lock; the
	// clamp must yield exactly 90°, not NaN from Asin.
	q := Quaternion{W: 0.71, Y: 0.71}
	pose := q.Euler()
	assert.InDelta(t, 90.0, float64(pose.Pitch), 0.01)
	assert.False(t, math32.IsNaN(pose.Roll) || math32.IsNaN(pose.Pitch) || math32.IsNaN(pose.Yaw))
}
