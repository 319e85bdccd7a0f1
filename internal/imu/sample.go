package imu

// Vector3 is a three-axis float32 reading in physical units
// (g for the accelerometer, rad/s for the gyroscope).
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Add returns v + w.
func (v Vector3) Add(w Vector3) Vector3 {
	return Vector3{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

// Sub returns v − w.
func (v Vector3) Sub(w Vector3) Vector3 {
	return Vector3{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

// Scale returns v scaled by s.
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Sample is one accelerometer+gyroscope acquisition. It is transient:
// the estimator consumes it immediately and never shares it across tasks.
type Sample struct {
	Accel Vector3 `json:"accel"` // g
	Gyro  Vector3 `json:"gyro"`  // rad/s
}

// Offsets holds the constant sensor biases estimated once at startup by
// averaging N samples with the device level and stationary. The vertical
// accelerometer axis has one gravity unit subtracted from its raw mean.
type Offsets struct {
	AccelBias Vector3 `json:"accel_bias"`
	GyroBias  Vector3 `json:"gyro_bias"`
}
