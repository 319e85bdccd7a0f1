package orientation

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/attitude_clock/internal/imu"
)

// SampleSource is the estimator's view of the motion sensor: one
// bias-uncorrected accelerometer+gyroscope sample per call. Bus-level
// failures surface as errors and are fatal to the acquisition task.
type SampleSource interface {
	ReadSample() (imu.Sample, error)
}

// Estimator owns sensor calibration and the continuous orientation
// filter. It is created uncalibrated; Calibrate must complete before
// Next produces valid poses.
type Estimator struct {
	src        SampleSource
	filter     *Madgwick
	offsets    imu.Offsets
	calibrated bool
	last       Pose
}

// NewEstimator creates an estimator over src. samplePeriod is the
// acquisition tick in seconds and beta the filter gain; the values that
// match the 100 Hz loop are 0.01 and 0.1.
func NewEstimator(src SampleSource, samplePeriod, beta float32) *Estimator {
	return &Estimator{
		src:    src,
		filter: NewMadgwick(samplePeriod, beta),
	}
}

// Calibrate estimates the sensor biases from samples readings taken at
// period intervals, assuming the device is level and stationary (this is
// a precondition, not checked at runtime). The vertical accelerometer
// axis has 1 g subtracted so that gravity survives bias removal. If ctx
// ends first — the caller bounds calibration with a timeout — the
// partial sums are discarded and the estimator stays uncalibrated.
func (e *Estimator) Calibrate(ctx context.Context, samples int, period time.Duration) error {
	if samples <= 0 {
		return fmt.Errorf("orientation: calibration sample count must be positive, got %d", samples)
	}

	var accelSum, gyroSum imu.Vector3

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i := 0; i < samples; i++ {
		s, err := e.src.ReadSample()
		if err != nil {
			return fmt.Errorf("orientation: calibration read: %w", err)
		}
		accelSum = accelSum.Add(s.Accel)
		gyroSum = gyroSum.Add(s.Gyro)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("orientation: calibration aborted: %w", ctx.Err())
		}
	}

	inv := 1 / float32(samples)
	e.offsets = imu.Offsets{
		AccelBias: accelSum.Scale(inv),
		GyroBias:  gyroSum.Scale(inv),
	}
	// The device sits level during calibration, so the Z axis mean
	// includes +1 g of gravity that must not be treated as bias.
	e.offsets.AccelBias.Z -= 1.0
	e.calibrated = true
	return nil
}

// Offsets returns the calibration result. Only meaningful after
// Calibrate has completed.
func (e *Estimator) Offsets() imu.Offsets {
	return e.offsets
}

// Next reads one sample, removes the calibration bias and advances the
// filter, returning the updated pose. A degenerate sample is recovered
// locally: the tick is skipped and the previous pose returned with a nil
// error. Bus errors and use before calibration are returned to the
// caller, which treats them as fatal.
func (e *Estimator) Next() (Pose, error) {
	if !e.calibrated {
		return Pose{}, fmt.Errorf("orientation: estimator used before calibration")
	}

	s, err := e.src.ReadSample()
	if err != nil {
		return Pose{}, fmt.Errorf("orientation: sample read: %w", err)
	}

	accel := s.Accel.Sub(e.offsets.AccelBias)
	gyro := s.Gyro.Sub(e.offsets.GyroBias)

	if err := e.filter.UpdateIMU(gyro, accel); err != nil {
		// Undefined update: keep the previous orientation.
		return e.last, nil
	}

	e.last = e.filter.Quaternion().Euler()
	return e.last, nil
}

// Quaternion exposes the filter's current unit quaternion.
func (e *Estimator) Quaternion() Quaternion {
	return e.filter.Quaternion()
}
