package analytics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FlowSample is one detector aggregation interval: density in veh/km,
// flow in veh/h.
type FlowSample struct {
	Density float64
	Flow    float64
}

// FundamentalDiagramValidator persists per-detector density/flow tables so
// the microscopic model's realism can be checked against the expected
// fundamental diagram shape. The output is a CSV data product; plotting
// happens downstream.
type FundamentalDiagramValidator struct {
	OutputDir string
}

func (v FundamentalDiagramValidator) Write(detectorID string, samples []FlowSample) (string, error) {
	if err := os.MkdirAll(v.OutputDir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(v.OutputDir, fmt.Sprintf("fd_%s.csv", detectorID))
	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"density", "flow"}); err != nil {
		return "", err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Density, 'g', -1, 64),
			strconv.FormatFloat(s.Flow, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return target, nil
}
