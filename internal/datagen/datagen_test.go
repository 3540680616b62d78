package datagen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbantwin/hybridsim/internal/matsim"
	"github.com/urbantwin/hybridsim/internal/sumo"
)

func TestDetectorCounts(t *testing.T) {
	g := NewGenerator()
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	counts := g.DetectorCounts([]string{"D-1", "D-2"}, start, 4, 15*time.Minute)
	require.Len(t, counts, 8)

	assert.Equal(t, "D-1", counts[0].DetectorID)
	assert.Equal(t, start, counts[0].Timestamp)
	assert.Equal(t, start.Add(45*time.Minute), counts[3].Timestamp)
	for _, c := range counts {
		assert.Greater(t, c.Count, 0.0)
	}
}

func TestLinkStatsCSVParsesBack(t *testing.T) {
	g := NewGenerator()
	path, err := g.LinkStatsCSV(t.TempDir(), 20)
	require.NoError(t, err)

	stats, err := matsim.ParseLinkStats(path)
	require.NoError(t, err)
	require.Len(t, stats, 20)
	for _, s := range stats {
		assert.NotEmpty(t, s.LinkID)
		assert.GreaterOrEqual(t, s.Time, 30.0)
		assert.GreaterOrEqual(t, s.Delay, 0.0)
	}
}

func TestNetworkXMLLoadsBack(t *testing.T) {
	g := NewGenerator()
	path, err := g.NetworkXML(t.TempDir(), 10, 49.1427, 9.2109)
	require.NoError(t, err)

	idx, err := sumo.LoadNetworkIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 10, idx.LinkCount())

	box, ok := idx.BBoxFor("l0", 1)
	require.True(t, ok)
	assert.Greater(t, box.North, box.South)
	assert.Greater(t, box.East, box.West)
}
