package journal

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rover.bridge/internal/telemetry"
)

// ScanSummary condenses one rotation for the journal.
type ScanSummary struct {
	Points int     `json:"points"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// SummariseScan computes distance statistics over scan.
func SummariseScan(scan telemetry.RangeScan) ScanSummary {
	if len(scan) == 0 {
		return ScanSummary{}
	}
	d := scan.Distances()
	s := ScanSummary{
		Points: len(d),
		Min:    floats.Min(d),
		Max:    floats.Max(d),
		Mean:   stat.Mean(d, nil),
	}
	if len(d) > 1 {
		s.StdDev = stat.StdDev(d, nil)
	}
	return s
}
