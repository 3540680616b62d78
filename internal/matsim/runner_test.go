package matsim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

func testConfig() models.MATSimConfig {
	return models.MATSimConfig{
		Jar:        "matsim.jar",
		JavaBin:    "java",
		HeapMin:    "2g",
		HeapMax:    "6g",
		Iterations: 100,
		Network:    "network.xml",
		Plans:      "plans.xml",
	}
}

func TestBuildConfigBaseline(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(testConfig(), dir, dir, zap.NewNop())

	cfgPath, err := r.BuildConfig("")
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `<param name="lastIteration" value="100"/>`)
	assert.Contains(t, content, `<param name="inputNetworkFile" value="network.xml"/>`)
	assert.Contains(t, content, `<param name="inputPlansFile" value="plans.xml"/>`)
	assert.NotContains(t, content, "timeVariantNetwork")
}

func TestBuildConfigWithOverrides(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(testConfig(), dir, dir, zap.NewNop())

	cfgPath, err := r.BuildConfig("overrides.csv")
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<param name="timeVariantNetwork" value="true"/>`)
	assert.Contains(t, string(data), `<param name="inputChangeEventsFile" value="overrides.csv"/>`)
}

func TestRunBaselineInvokesJVM(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(testConfig(), dir, dir, zap.NewNop())

	var gotName string
	var gotArgs []string
	r.runCmd = func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		// the engine writes its outputs before exiting
		stats := "linkId,time,delay\nl1,100,30\n"
		return os.WriteFile(filepath.Join(dir, "linkstats.csv"), []byte(stats), 0o644)
	}

	res, err := r.RunBaseline(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "java", gotName)
	assert.Equal(t, []string{"-Xms2g", "-Xmx6g", "-jar", "matsim.jar", filepath.Join(dir, "matsim_config.xml")}, gotArgs)
	require.Len(t, res.LinkStats, 1)
	assert.Equal(t, "l1", res.LinkStats[0].LinkID)
	assert.Empty(t, res.EventSummary)
}

func TestRunBaselineEngineFailure(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(testConfig(), dir, dir, zap.NewNop())
	r.runCmd = func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1")
	}

	_, err := r.RunBaseline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mesoscopic engine failed")
}

func TestRunWithCorrectionsWritesAppliedOnly(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(testConfig(), dir, dir, zap.NewNop())
	r.runCmd = func(ctx context.Context, name string, args ...string) error { return nil }

	corrections := map[string]models.Correction{
		"l1": {Original: 100, Corrected: 107, Applied: true},
		"l2": {Original: 80, Corrected: 80},
	}
	_, err := r.RunWithCorrections(context.Background(), corrections)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "link_overrides.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"linkId,travelTime", "l1,107"}, lines)
}
