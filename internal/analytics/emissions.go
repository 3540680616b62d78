package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urbantwin/hybridsim/internal/models"
)

// TimestepEmission is total CO2 in grams for one simulation timestep.
type TimestepEmission struct {
	Timestep float64 `json:"timestep"`
	TotalCO2 float64 `json:"total_co2_g"`
}

// AggregateEmissions sums per-vehicle CO2 output by timestep from the
// microscopic engine's emission CSV (timestep and CO2 columns required).
func AggregateEmissions(path string) ([]TimestepEmission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	tsCol, okTS := idx["timestep"]
	co2Col, okCO2 := idx["CO2"]
	if !okTS || !okCO2 {
		return nil, fmt.Errorf("emission file must carry timestep and CO2 columns")
	}

	totals := make(map[float64]float64)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := models.ParseField("timestep", row, record[tsCol])
		if err != nil {
			return nil, err
		}
		co2, err := models.ParseField("CO2", row, record[co2Col])
		if err != nil {
			return nil, err
		}
		totals[ts] += co2
	}

	out := make([]TimestepEmission, 0, len(totals))
	for ts, total := range totals {
		out = append(out, TimestepEmission{Timestep: ts, TotalCO2: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestep < out[j].Timestep })
	return out, nil
}
