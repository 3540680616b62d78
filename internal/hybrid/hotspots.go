package hybrid

import (
	"sort"

	"github.com/samber/lo"
	"github.com/urbantwin/hybridsim/internal/models"
)

// DetectHotspots returns the identifiers of the topN links with the highest
// delay, in descending order. The sort is stable, so ties keep their input
// order. Empty input yields an empty result.
func DetectHotspots(stats []models.LinkStat, topN int) []string {
	if topN <= 0 || len(stats) == 0 {
		return nil
	}

	ranked := make([]models.LinkStat, len(stats))
	copy(ranked, stats)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Delay > ranked[j].Delay
	})

	if topN > len(ranked) {
		topN = len(ranked)
	}
	return lo.Map(ranked[:topN], func(s models.LinkStat, _ int) string {
		return s.LinkID
	})
}
