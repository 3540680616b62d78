package hybrid

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

type fakeMeso struct {
	baseline    *models.MesoResult
	baselineErr error
	final       *models.MesoResult
	finalErr    error

	gotCorrections map[string]models.Correction
}

func (f *fakeMeso) RunBaseline(ctx context.Context) (*models.MesoResult, error) {
	return f.baseline, f.baselineErr
}

func (f *fakeMeso) RunWithCorrections(ctx context.Context, corrections map[string]models.Correction) (*models.MesoResult, error) {
	f.gotCorrections = corrections
	return f.final, f.finalErr
}

type fakeMicro struct {
	results  map[string]models.MicroResult
	failures map[string]error
	err      error

	gotHotspots []string
	block       chan struct{}
}

func (f *fakeMicro) RunHotspots(ctx context.Context, hotspots []string) (map[string]models.MicroResult, map[string]error, error) {
	f.gotHotspots = hotspots
	if f.block != nil {
		<-f.block
	}
	return f.results, f.failures, f.err
}

type recordingSink struct {
	topics   []string
	messages [][]byte
}

func (r *recordingSink) WriteMessage(topic string, msg []byte) error {
	r.topics = append(r.topics, topic)
	r.messages = append(r.messages, msg)
	return nil
}

func baselineStats() []models.LinkStat {
	return []models.LinkStat{
		{LinkID: "l1", Time: 100, Delay: 30},
		{LinkID: "l2", Time: 80, Delay: 10},
		{LinkID: "l3", Time: 60, Delay: 2},
	}
}

func TestOrchestratorRunPersistsResults(t *testing.T) {
	dir := t.TempDir()
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		final:    &models.MesoResult{LinkStats: baselineStats()},
	}
	micro := &fakeMicro{
		results: map[string]models.MicroResult{
			"l1": {AvgDelay: 7, Vehicles: 50},
		},
	}
	sink := &recordingSink{}

	orc := NewOrchestrator(meso, micro, 2, dir, zap.NewNop(), WithEvents(sink, "pipeline_events"))
	result, err := orc.Run(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, []string{"l1", "l2"}, result.Hotspots)
	assert.Equal(t, []string{"l1", "l2"}, micro.gotHotspots)
	assert.Equal(t, 3, result.LinkCount)
	assert.Empty(t, result.FailedHotspots)

	// corrected run receives the reintegrated travel times
	require.NotNil(t, meso.gotCorrections)
	assert.Equal(t, models.Correction{Original: 100, Corrected: 107, Applied: true}, meso.gotCorrections["l1"])
	assert.Equal(t, models.Correction{Original: 60, Corrected: 60}, meso.gotCorrections["l3"])

	data, err := os.ReadFile(filepath.Join(dir, "final_results.json"))
	require.NoError(t, err)
	var persisted models.RunResult
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, result.RunID, persisted.RunID)
	assert.Equal(t, result.Hotspots, persisted.Hotspots)

	// lifecycle events: started, hotspots, complete
	require.Len(t, sink.messages, 3)
	for _, topic := range sink.topics {
		assert.Equal(t, "pipeline_events", topic)
	}
	var first map[string]any
	require.NoError(t, json.Unmarshal(sink.messages[0], &first))
	assert.Equal(t, "run_started", first["stage"])
}

func TestOrchestratorRunGeneratesRunID(t *testing.T) {
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		final:    &models.MesoResult{},
	}
	orc := NewOrchestrator(meso, &fakeMicro{}, 1, t.TempDir(), zap.NewNop())

	result, err := orc.Run(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

func TestOrchestratorBaselineFailureLeavesNoResults(t *testing.T) {
	dir := t.TempDir()
	meso := &fakeMeso{baselineErr: errors.New("exit status 1")}
	orc := NewOrchestrator(meso, &fakeMicro{}, 2, dir, zap.NewNop())

	_, err := orc.Run(context.Background(), "run-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline run")

	_, statErr := os.Stat(filepath.Join(dir, "final_results.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestratorMicroPhaseFailure(t *testing.T) {
	dir := t.TempDir()
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		final:    &models.MesoResult{LinkStats: baselineStats()},
	}
	micro := &fakeMicro{err: errors.New("loading network index: no such file")}
	orc := NewOrchestrator(meso, micro, 2, dir, zap.NewNop())

	_, err := orc.Run(context.Background(), "run-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "micro runs")

	_, statErr := os.Stat(filepath.Join(dir, "final_results.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestratorCorrectedRunFailure(t *testing.T) {
	dir := t.TempDir()
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		finalErr: errors.New("exit status 2"),
	}
	orc := NewOrchestrator(meso, &fakeMicro{}, 2, dir, zap.NewNop())

	_, err := orc.Run(context.Background(), "run-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrected run")

	_, statErr := os.Stat(filepath.Join(dir, "final_results.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestratorRecordsMicroFailures(t *testing.T) {
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		final:    &models.MesoResult{LinkStats: baselineStats()},
	}
	micro := &fakeMicro{
		results:  map[string]models.MicroResult{"l1": {AvgDelay: 3}},
		failures: map[string]error{"l2": errors.New("sumo: no trips completed")},
	}
	orc := NewOrchestrator(meso, micro, 2, t.TempDir(), zap.NewNop())

	result, err := orc.Run(context.Background(), "run-4")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"l2": "sumo: no trips completed"}, result.FailedHotspots)
	// the failed hotspot still passes through uncorrected
	assert.False(t, result.Corrections["l2"].Applied)
}

func TestManagerSerializesRuns(t *testing.T) {
	block := make(chan struct{})
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		final:    &models.MesoResult{LinkStats: baselineStats()},
	}
	micro := &fakeMicro{block: block}
	orc := NewOrchestrator(meso, micro, 1, t.TempDir(), zap.NewNop())
	m := NewManager(orc, zap.NewNop())

	runID, err := m.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, models.RunStateRunning, m.Status().State)

	_, err = m.Start()
	assert.ErrorIs(t, err, ErrRunActive)

	close(block)
	require.Eventually(t, func() bool {
		return m.Status().State == models.RunStateComplete
	}, 5*time.Second, 10*time.Millisecond)

	status := m.Status()
	assert.Equal(t, runID, status.RunID)
	require.NotNil(t, status.FinishedAt)

	// a finished run frees the slot for the next one
	micro.block = nil
	_, err = m.Start()
	assert.NoError(t, err)

	// let the second run finish before TempDir cleanup removes its output dir
	require.Eventually(t, func() bool {
		return m.Status().State != models.RunStateRunning
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManagerReportsMicroPhaseError(t *testing.T) {
	meso := &fakeMeso{
		baseline: &models.MesoResult{LinkStats: baselineStats()},
		final:    &models.MesoResult{LinkStats: baselineStats()},
	}
	micro := &fakeMicro{err: errors.New("loading network index: no such file")}
	orc := NewOrchestrator(meso, micro, 1, t.TempDir(), zap.NewNop())
	m := NewManager(orc, zap.NewNop())

	_, err := m.Start()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Status().State == models.RunStateError
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.Status().Error, "loading network index")
}

func TestManagerReportsRunError(t *testing.T) {
	meso := &fakeMeso{baselineErr: errors.New("jar not found")}
	orc := NewOrchestrator(meso, &fakeMicro{}, 1, t.TempDir(), zap.NewNop())
	m := NewManager(orc, zap.NewNop())

	_, err := m.Start()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Status().State == models.RunStateError
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.Status().Error, "jar not found")
}
