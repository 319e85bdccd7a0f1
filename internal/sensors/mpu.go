// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"github.com/chewxy/math32"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/devices/v3/mpu9250/reg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/attitude_clock/internal/config"
	"github.com/relabs-tech/attitude_clock/internal/imu"
	"github.com/relabs-tech/attitude_clock/internal/orientation"
)

// mpuSource reads calibration-uncorrected samples from an MPU-9250 over
// SPI and scales them to physical units. It implements
// orientation.SampleSource; the acquisition task owns it exclusively for
// its lifetime, so no locking is needed on the bus.
type mpuSource struct {
	imu        *mpu9250.MPU9250
	accelScale float32 // LSB per g
	gyroScale  float32 // LSB per rad/s
}

// NewMPUSource opens and configures the motion sensor per the loaded
// configuration: measurement ranges, a low-pass filter bandwidth chosen
// to match the sample rate, and accelerometer filtering. Any failure
// here means the sensor bus is non-functional and is fatal to the
// acquisition task.
func NewMPUSource() (orientation.SampleSource, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("imu: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("imu: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("imu: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("imu: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("imu: initialization: %w", err)
	}

	// SetAccelRange wants the value already shifted into ACCEL_FS_SEL
	// (bits 4:3), unlike SetGyroRange which shifts internally.
	if err := dev.SetAccelRange(cfg.IMUAccelRange << 3); err != nil {
		return nil, fmt.Errorf("imu: set accel range: %w", err)
	}
	log.Printf("imu: accelerometer range set to %d (±%dg)", cfg.IMUAccelRange, []int{2, 4, 8, 16}[cfg.IMUAccelRange])

	if err := dev.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, fmt.Errorf("imu: set gyro range: %w", err)
	}
	log.Printf("imu: gyroscope range set to %d (±%d°/s)", cfg.IMUGyroRange, []int{250, 500, 1000, 2000}[cfg.IMUGyroRange])

	// The gyro DLPF bandwidth has to match the acquisition rate: mode 2
	// (98 Hz) suits the 100 Hz loop. The driver exposes no setters for
	// these three registers, so they are written directly.
	if err := dev.WriteByteAddress(reg.MPU9250_CONFIG, cfg.IMUDLPFConfig); err != nil {
		return nil, fmt.Errorf("imu: set DLPF config: %w", err)
	}
	log.Printf("imu: DLPF config set to %d", cfg.IMUDLPFConfig)

	if err := dev.WriteByteAddress(reg.MPU9250_SMPLRT_DIV, cfg.IMUSampleRateDiv); err != nil {
		return nil, fmt.Errorf("imu: set sample rate divider: %w", err)
	}

	if err := dev.WriteByteAddress(reg.MPU9250_ACCEL_CONFIG2, cfg.IMUAccelDLPF); err != nil {
		return nil, fmt.Errorf("imu: set accel DLPF: %w", err)
	}
	log.Printf("imu: accelerometer DLPF set to %d", cfg.IMUAccelDLPF)

	// Datasheet sensitivities: 16384 LSB/g and 131 LSB/(°/s) at the
	// narrowest ranges, halved per range step. Gyro output is wanted in
	// rad/s, so the scale carries the degree conversion.
	return &mpuSource{
		imu:        dev,
		accelScale: float32(int(16384) >> int(cfg.IMUAccelRange)),
		gyroScale:  131.0 / float32(int(1)<<cfg.IMUGyroRange) * (180 / math32.Pi),
	}, nil
}

// ReadSample reads one accelerometer+gyroscope sample and converts it to
// g and rad/s. Any bus error is returned as-is; the caller decides that
// it is fatal.
func (s *mpuSource) ReadSample() (imu.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("imu accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("imu accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("imu accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("imu gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("imu gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("imu gyro Z: %w", err)
	}

	return imu.Sample{
		Accel: imu.Vector3{
			X: float32(ax) / s.accelScale,
			Y: float32(ay) / s.accelScale,
			Z: float32(az) / s.accelScale,
		},
		Gyro: imu.Vector3{
			X: float32(gx) / s.gyroScale,
			Y: float32(gy) / s.gyroScale,
			Z: float32(gz) / s.gyroScale,
		},
	}, nil
}
