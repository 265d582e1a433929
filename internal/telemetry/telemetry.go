// Package telemetry holds the outbound sample types and their wire encodings.
package telemetry

import (
	"encoding/json"
	"errors"
)

// ErrSourceClosed is returned by a sample source once it has been closed or
// has lost its device for good. Streams stop on it instead of retrying.
var ErrSourceClosed = errors.New("telemetry source closed")

// InertialSample is one IMU reading: accel in g, gyro in °/s, mag in µT and
// temp in °C.
type InertialSample struct {
	Accel [3]float64 `json:"accel"`
	Gyro  [3]float64 `json:"gyro"`
	Mag   [3]float64 `json:"mag"`
	Temp  float64    `json:"temp"`
}

// ScanPoint is a single range measurement. Angle is in degrees; Distance is
// in the source's native unit (mm for RPLidar).
type ScanPoint struct {
	Angle    float64 `json:"angle"`
	Distance float64 `json:"distance"`
}

// RangeScan is one full rotation in arrival order.
type RangeScan []ScanPoint

// Distances returns the distance column of the scan.
func (s RangeScan) Distances() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Distance
	}
	return out
}

// EncodeInertial returns the JSON datagram for an inertial sample.
func EncodeInertial(s InertialSample) ([]byte, error) {
	return json.Marshal(s)
}

// EncodeScan returns the JSON datagram for a range scan. An empty scan
// encodes as [] rather than null.
func EncodeScan(s RangeScan) ([]byte, error) {
	if s == nil {
		s = RangeScan{}
	}
	return json.Marshal(s)
}
