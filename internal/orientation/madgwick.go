package orientation

import (
	"errors"

	"github.com/chewxy/math32"

	"github.com/relabs-tech/attitude_clock/internal/imu"
)

// ErrDegenerateSample is returned when a filter update is undefined,
// e.g. a near-zero accelerometer vector that cannot be normalized. The
// caller skips the tick and keeps the previous orientation; the filter
// state is untouched, so a NaN can never propagate downstream.
var ErrDegenerateSample = errors.New("orientation: degenerate accelerometer sample")

// accelNormFloor rejects accelerometer vectors too small to indicate
// the gravity direction (free fall, disconnected sensor).
const accelNormFloor = 1e-6

// Quaternion is a unit quaternion (w, x, y, z). The filter renormalizes
// it on every update.
type Quaternion struct {
	W, X, Y, Z float32
}

// Norm returns the quaternion's Euclidean norm.
func (q Quaternion) Norm() float32 {
	return math32.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Euler converts the quaternion to roll/pitch/yaw in degrees. Pitch is
// clamped to ±90° at the asin singularity.
func (q Quaternion) Euler() Pose {
	const radToDeg = 180 / math32.Pi

	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll := math32.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	var pitch float32
	if math32.Abs(sinp) >= 1 {
		pitch = math32.Copysign(math32.Pi/2, sinp)
	} else {
		pitch = math32.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw := math32.Atan2(sinyCosp, cosyCosp)

	return Pose{
		Roll:  roll * radToDeg,
		Pitch: pitch * radToDeg,
		Yaw:   yaw * radToDeg,
	}
}

// Madgwick is the gradient-descent orientation filter for a 6-axis IMU.
// It integrates gyroscope rates and corrects drift toward the gravity
// direction sensed by the accelerometer, at a fixed sample period with a
// fixed gain beta. Higher beta converges faster but is noisier.
type Madgwick struct {
	q            Quaternion
	samplePeriod float32 // seconds
	beta         float32
}

// NewMadgwick creates a filter at the identity orientation.
func NewMadgwick(samplePeriod, beta float32) *Madgwick {
	return &Madgwick{
		q:            Quaternion{W: 1},
		samplePeriod: samplePeriod,
		beta:         beta,
	}
}

// Quaternion returns the current orientation estimate.
func (f *Madgwick) Quaternion() Quaternion {
	return f.q
}

// UpdateIMU runs one filter step from a gyroscope reading in rad/s and
// an accelerometer reading in any consistent unit (it is normalized).
// On a degenerate accelerometer vector the state is left unchanged and
// ErrDegenerateSample is returned.
func (f *Madgwick) UpdateIMU(gyro, accel imu.Vector3) error {
	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z
	gx, gy, gz := gyro.X, gyro.Y, gyro.Z
	ax, ay, az := accel.X, accel.Y, accel.Z

	norm := math32.Sqrt(ax*ax + ay*ay + az*az)
	if norm < accelNormFloor {
		return ErrDegenerateSample
	}
	ax /= norm
	ay /= norm
	az /= norm

	// Rate of change of quaternion from gyroscope.
	qDot0 := 0.5 * (-q1*gx - q2*gy - q3*gz)
	qDot1 := 0.5 * (q0*gx + q2*gz - q3*gy)
	qDot2 := 0.5 * (q0*gy - q1*gz + q3*gx)
	qDot3 := 0.5 * (q0*gz + q1*gy - q2*gx)

	// Gradient-descent corrective step toward the measured gravity
	// direction (objective function and Jacobian per Madgwick).
	f1 := 2*(q1*q3-q0*q2) - ax
	f2 := 2*(q0*q1+q2*q3) - ay
	f3 := 2*(0.5-q1*q1-q2*q2) - az

	s0 := -2*q2*f1 + 2*q1*f2
	s1 := 2*q3*f1 + 2*q0*f2 - 4*q1*f3
	s2 := -2*q0*f1 + 2*q3*f2 - 4*q2*f3
	s3 := 2*q1*f1 + 2*q2*f2

	sNorm := math32.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3)
	if sNorm > 0 {
		s0 /= sNorm
		s1 /= sNorm
		s2 /= sNorm
		s3 /= sNorm
		qDot0 -= f.beta * s0
		qDot1 -= f.beta * s1
		qDot2 -= f.beta * s2
		qDot3 -= f.beta * s3
	}

	q0 += qDot0 * f.samplePeriod
	q1 += qDot1 * f.samplePeriod
	q2 += qDot2 * f.samplePeriod
	q3 += qDot3 * f.samplePeriod

	qNorm := math32.Sqrt(q0*q0 + q1*q1 + q2*q2 + q3*q3)
	f.q = Quaternion{W: q0 / qNorm, X: q1 / qNorm, Y: q2 / qNorm, Z: q3 / qNorm}
	return nil
}
