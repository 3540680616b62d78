// Package datagen fabricates scenario inputs so the pipeline and analytics
// can be exercised without real administrative data.
package datagen

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
	"github.com/urbantwin/hybridsim/internal/ingest"
)

type Generator struct {
	fake faker.Faker
}

func NewGenerator() *Generator {
	return &Generator{fake: faker.New()}
}

// DetectorCounts produces a plausible count series per detector: a morning
// baseline with noisy peaks, one observation per interval.
func (g *Generator) DetectorCounts(detectorIDs []string, start time.Time, intervals int, step time.Duration) []ingest.DetectorCount {
	counts := make([]ingest.DetectorCount, 0, len(detectorIDs)*intervals)
	for _, id := range detectorIDs {
		base := g.fake.IntBetween(80, 400)
		for i := 0; i < intervals; i++ {
			jitter := g.fake.Float64(2, -20, 20)
			counts = append(counts, ingest.DetectorCount{
				DetectorID: id,
				Timestamp:  start.Add(time.Duration(i) * step),
				Count:      float64(base) + jitter,
			})
		}
	}
	return counts
}

// LinkStatsCSV writes a synthetic link-statistics table in the mesoscopic
// engine's output format, usable as a pipeline dry-run fixture.
func (g *Generator) LinkStatsCSV(dir string, links int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "linkstats.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "linkId,time,delay"); err != nil {
		return "", err
	}
	for i := 0; i < links; i++ {
		travel := g.fake.Float64(1, 30, 600)
		delay := g.fake.Float64(1, 0, 120)
		if _, err := fmt.Fprintf(f, "link_%s,%.1f,%.1f\n", cuid.Slug(), travel, delay); err != nil {
			return "", err
		}
	}
	return path, nil
}

// NetworkXML writes a small synthetic network around a city center: a chain
// of nodes with one link between each consecutive pair.
func (g *Generator) NetworkXML(dir string, links int, centerLat, centerLon float64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "network.xml")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fmt.Fprintln(f, `<network>`)
	fmt.Fprintln(f, `  <nodes>`)
	for i := 0; i <= links; i++ {
		lat := centerLat + g.fake.Float64(5, -2, 2)/100
		lon := centerLon + g.fake.Float64(5, -2, 2)/100
		fmt.Fprintf(f, "    <node id=\"n%d\" x=\"%.5f\" y=\"%.5f\"/>\n", i, lon, lat)
	}
	fmt.Fprintln(f, `  </nodes>`)
	fmt.Fprintln(f, `  <links>`)
	for i := 0; i < links; i++ {
		fmt.Fprintf(f, "    <link id=\"l%d\" from=\"n%d\" to=\"n%d\"/>\n", i, i, i+1)
	}
	fmt.Fprintln(f, `  </links>`)
	fmt.Fprintln(f, `</network>`)
	return path, nil
}
