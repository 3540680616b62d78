package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

func TestConstructionEventAppliesAndReverts(t *testing.T) {
	rec := &RecordingController{}
	event := ConstructionEvent{TargetEdge: "e12", ReducedLanes: 1, ApplyStep: 10, RevertStep: 20}
	m := NewConstructionEventManager(event, rec, zap.NewNop())

	for step := 0; step <= 25; step++ {
		rec.SetStep(step)
		require.NoError(t, m.Update(step))
	}

	require.Len(t, rec.Actions, 2)
	assert.Equal(t, ControlAction{Step: 10, Action: "close_lanes", Target: "e12", Value: 1}, rec.Actions[0])
	assert.Equal(t, ControlAction{Step: 20, Action: "open_lanes", Target: "e12"}, rec.Actions[1])
	assert.False(t, m.Active())
}

func TestConstructionEventActiveWindow(t *testing.T) {
	rec := &RecordingController{}
	event := ConstructionEvent{TargetEdge: "e12", ReducedLanes: 1, ApplyStep: 5, RevertStep: 8}
	m := NewConstructionEventManager(event, rec, zap.NewNop())

	require.NoError(t, m.Update(5))
	assert.True(t, m.Active())

	// repeated apply steps do not double-fire
	require.NoError(t, m.Update(5))
	assert.Len(t, rec.Actions, 1)

	require.NoError(t, m.Update(8))
	assert.False(t, m.Active())
}

func TestConstructionEventRevertBeforeApplyIsNoop(t *testing.T) {
	rec := &RecordingController{}
	event := ConstructionEvent{TargetEdge: "e12", ApplyStep: 10, RevertStep: 20}
	m := NewConstructionEventManager(event, rec, zap.NewNop())

	require.NoError(t, m.Update(20))
	assert.Empty(t, rec.Actions)
}

func TestAdaptiveSignalControllerCyclesPhases(t *testing.T) {
	rec := &RecordingController{}
	c := NewAdaptiveSignalController(
		[]string{"tls1"},
		map[string][]int{"tls1": {0, 2}},
		30,
		rec,
	)

	for step := 0; step <= 90; step++ {
		rec.SetStep(step)
		require.NoError(t, c.Update(step))
	}

	require.Len(t, rec.Actions, 4)
	assert.Equal(t, ControlAction{Step: 0, Action: "set_phase", Target: "tls1", Value: 0}, rec.Actions[0])
	assert.Equal(t, ControlAction{Step: 30, Action: "set_phase", Target: "tls1", Value: 2}, rec.Actions[1])
	assert.Equal(t, ControlAction{Step: 60, Action: "set_phase", Target: "tls1", Value: 0}, rec.Actions[2])
	assert.Equal(t, ControlAction{Step: 90, Action: "set_phase", Target: "tls1", Value: 2}, rec.Actions[3])
}

func TestAdaptiveSignalControllerSkipsUnknownTLS(t *testing.T) {
	rec := &RecordingController{}
	c := NewAdaptiveSignalController([]string{"tls1"}, nil, 10, rec)

	require.NoError(t, c.Update(0))
	assert.Empty(t, rec.Actions)
}

func TestSandboxCommand(t *testing.T) {
	cfg := models.SUMOConfig{Binary: "sumo", Seed: 42}
	s := NewSandbox(cfg, "scenario.sumocfg", zap.NewNop())
	assert.Equal(t, []string{"sumo", "-S", "-Q", "--seed", "42", "-c", "scenario.sumocfg"}, s.Command())

	cfg.GUI = true
	s = NewSandbox(cfg, "", zap.NewNop())
	assert.Equal(t, []string{"sumo-gui", "-S", "-Q", "--seed", "42"}, s.Command())
}

type fakeStopper struct{ stopped bool }

func (f *fakeStopper) Stop() error { f.stopped = true; return nil }

func TestSandboxRunDrivesControllers(t *testing.T) {
	cfg := models.SUMOConfig{Binary: "sumo", Seed: 1}
	s := NewSandbox(cfg, "", zap.NewNop())

	proc := &fakeStopper{}
	s.startCmd = func(ctx context.Context, name string, args ...string) (stopper, error) {
		return proc, nil
	}

	rec := &RecordingController{}
	event := ConstructionEvent{TargetEdge: "e1", ReducedLanes: 1, ApplyStep: 2, RevertStep: 4}
	construction := NewConstructionEventManager(event, rec, zap.NewNop())
	signals := NewAdaptiveSignalController([]string{"tls1"}, map[string][]int{"tls1": {1}}, 3, rec)

	require.NoError(t, s.Run(context.Background(), 6, construction, signals, rec))
	assert.True(t, proc.stopped)

	// closure at step 2, reopen at step 4, signal phase at steps 0 and 3
	var kinds []string
	for _, a := range rec.Actions {
		kinds = append(kinds, a.Action)
	}
	assert.Equal(t, []string{"set_phase", "close_lanes", "set_phase", "open_lanes"}, kinds)
}

func TestSandboxRunCancelled(t *testing.T) {
	cfg := models.SUMOConfig{Binary: "sumo", Seed: 1}
	s := NewSandbox(cfg, "", zap.NewNop())
	s.startCmd = func(ctx context.Context, name string, args ...string) (stopper, error) {
		return &fakeStopper{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, 100, nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
