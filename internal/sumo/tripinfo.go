package sumo

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/urbantwin/hybridsim/internal/models"
)

type tripinfo struct {
	ID          string  `xml:"id,attr"`
	WaitingTime float64 `xml:"waitingTime,attr"`
	TimeLoss    float64 `xml:"timeLoss,attr"`
}

type tripinfoFile struct {
	Trips []tripinfo `xml:"tripinfo"`
}

// ParseTripinfo aggregates the microscopic engine's tripinfo output into a
// single delay estimate: the mean waiting time over all completed trips,
// with the mean time loss carried alongside.
func ParseTripinfo(path string) (models.MicroResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.MicroResult{}, fmt.Errorf("opening tripinfo: %w", err)
	}
	defer f.Close()

	var file tripinfoFile
	if err := xml.NewDecoder(f).Decode(&file); err != nil {
		return models.MicroResult{}, fmt.Errorf("decoding tripinfo: %w", err)
	}
	if len(file.Trips) == 0 {
		return models.MicroResult{}, fmt.Errorf("%s: no completed trips", path)
	}

	var waiting, loss float64
	for _, t := range file.Trips {
		waiting += t.WaitingTime
		loss += t.TimeLoss
	}
	n := float64(len(file.Trips))
	return models.MicroResult{
		AvgDelay:    waiting / n,
		AvgTimeLoss: loss / n,
		Vehicles:    len(file.Trips),
	}, nil
}
