package matsim

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urbantwin/hybridsim/internal/models"
)

// ParseLinkStats reads the engine's link-statistics CSV. The table must
// carry a linkId column; time and delay are parsed strictly, so a malformed
// cell is a data-quality error rather than a silent zero.
func ParseLinkStats(path string) ([]models.LinkStat, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}
	linkCol, ok := idx["linkId"]
	if !ok {
		return nil, fmt.Errorf("%s: missing linkId column", filepath.Base(path))
	}
	timeCol, hasTime := idx["time"]
	delayCol, hasDelay := idx["delay"]

	var stats []models.LinkStat
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		stat := models.LinkStat{LinkID: record[linkCol]}
		if hasTime {
			if stat.Time, err = models.ParseField("time", row, record[timeCol]); err != nil {
				return nil, err
			}
		}
		if hasDelay {
			if stat.Delay, err = models.ParseField("delay", row, record[delayCol]); err != nil {
				return nil, err
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

type event struct {
	Type string `xml:"type,attr"`
}

// SummarizeEvents streams the engine's events file and counts occurrences
// per event type. The file can be huge, so it is never held in memory; a
// missing file yields an empty summary.
func SummarizeEvents(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]float64{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip events: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	summary := make(map[string]float64)
	decoder := xml.NewDecoder(reader)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "event" {
			continue
		}
		var ev event
		if err := decoder.DecodeElement(&ev, &start); err != nil {
			return nil, err
		}
		summary[ev.Type]++
	}
	return summary, nil
}
