package calibrate

import (
	"fmt"
	"math"
	"time"

	"github.com/urbantwin/hybridsim/internal/ingest"
)

// Metrics summarizes how well simulated volumes reproduce observed counts.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// Calibrator scores a simulation run against ground-truth detector counts.
// The demand adjustment loop itself lives with the engines; this module
// only decides whether another iteration is needed.
type Calibrator struct {
	tolerance float64
}

func NewCalibrator(tolerance float64) *Calibrator {
	return &Calibrator{tolerance: tolerance}
}

type obsKey struct {
	detector string
	ts       time.Time
}

// Score computes RMSE and MAPE over observations matched by detector and
// timestamp. Zero-count observations are skipped in the MAPE term rather
// than producing an infinite error.
func (c *Calibrator) Score(observed, simulated []ingest.DetectorCount) (Metrics, error) {
	target := make(map[obsKey]float64, len(observed))
	for _, o := range observed {
		target[obsKey{o.DetectorID, o.Timestamp}] = o.Count
	}

	var sqSum, apeSum float64
	var n, apeN int
	for _, s := range simulated {
		obs, ok := target[obsKey{s.DetectorID, s.Timestamp}]
		if !ok {
			continue
		}
		diff := s.Count - obs
		sqSum += diff * diff
		n++
		if obs != 0 {
			apeSum += math.Abs(diff) / obs
			apeN++
		}
	}
	if n == 0 {
		return Metrics{}, fmt.Errorf("no simulated counts match the observed detectors")
	}

	m := Metrics{RMSE: math.Sqrt(sqSum / float64(n))}
	if apeN > 0 {
		m.MAPE = apeSum / float64(apeN)
	}
	return m, nil
}

// NeedsRecalibration reports whether the error still exceeds tolerance.
func (c *Calibrator) NeedsRecalibration(m Metrics) bool {
	return m.MAPE > c.tolerance
}
