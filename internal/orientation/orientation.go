package orientation

// Pose is the canonical representation of orientation for this app:
// Euler angles in degrees, derived from the filter's unit quaternion.
type Pose struct {
	Roll  float32 `json:"roll"`
	Pitch float32 `json:"pitch"`
	Yaw   float32 `json:"yaw"`
}

// Source is anything that can provide poses over time: the calibrated
// estimator, a mock source, maybe a replay source from file later.
type Source interface {
	Next() (Pose, error)
}
