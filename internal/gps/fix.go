package gps

import (
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Fix is the time-of-day part of an RMC sentence, which is all the
// drift checker needs from the receiver.
type Fix struct {
	Time     time.Time `json:"time"`     // UTC timestamp from the receiver
	Validity string    `json:"validity"` // "A" (valid) / "V" (void)
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool {
	return f.Validity == "A"
}

// FixFromRMC converts a parsed RMC sentence into a Fix. RMC carries a
// two-digit year; receivers in service today all mean 20xx.
func FixFromRMC(m nmea.RMC) Fix {
	return Fix{
		Time: time.Date(
			2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
			m.Time.Hour, m.Time.Minute, m.Time.Second,
			m.Time.Millisecond*int(time.Millisecond),
			time.UTC,
		),
		Validity: string(m.Validity),
	}
}
