package hybrid

import "github.com/urbantwin/hybridsim/internal/models"

// Reintegrate merges microscopic delay estimates back into the mesoscopic
// link travel times. Every mesoscopic link appears in the output: links with
// a micro result get corrected = original + avg delay and Applied=true, the
// rest pass through unchanged. Earlier revisions dropped unmatched links
// entirely, which lost their travel times; the pass-through keeps the
// correction map a complete picture of the network.
func Reintegrate(stats []models.LinkStat, micro map[string]models.MicroResult) map[string]models.Correction {
	corrections := make(map[string]models.Correction, len(stats))
	for _, link := range stats {
		c := models.Correction{
			Original:  link.Time,
			Corrected: link.Time,
		}
		if res, ok := micro[link.LinkID]; ok {
			c.Corrected = link.Time + res.AvgDelay
			c.Applied = true
		}
		corrections[link.LinkID] = c
	}
	return corrections
}
