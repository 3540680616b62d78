package hybrid

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lucsky/cuid"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// ErrRunActive is returned when a run is requested while another is in
// flight. Runs share the results file, so they never overlap.
var ErrRunActive = errors.New("a pipeline run is already active")

// Manager serializes pipeline runs and tracks their externally visible
// state. It replaces the earlier pattern of firing the pipeline into the
// background with nothing but a result file to poll.
type Manager struct {
	orc    *Orchestrator
	logger *zap.Logger

	mu     sync.Mutex
	status models.RunStatus
}

func NewManager(orc *Orchestrator, logger *zap.Logger) *Manager {
	return &Manager{
		orc:    orc,
		logger: logger,
		status: models.RunStatus{State: models.RunStateIdle},
	}
}

// Start launches a pipeline run on a background goroutine and returns its
// identifier immediately. A second Start while a run is active fails with
// ErrRunActive. The run is detached from the caller's context: an HTTP
// request finishing must not cancel the pipeline it started.
func (m *Manager) Start() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State == models.RunStateRunning {
		return "", ErrRunActive
	}

	runID := cuid.New()
	now := time.Now().UTC()
	m.status = models.RunStatus{
		State:     models.RunStateRunning,
		RunID:     runID,
		StartedAt: &now,
	}

	go m.run(runID)
	return runID, nil
}

func (m *Manager) run(runID string) {
	result, err := m.orc.Run(context.Background(), runID)

	m.mu.Lock()
	defer m.mu.Unlock()
	finished := time.Now().UTC()
	m.status.FinishedAt = &finished
	if err != nil {
		m.logger.Error("pipeline run failed", zap.String("run_id", runID), zap.Error(err))
		m.status.State = models.RunStateError
		m.status.Error = err.Error()
		return
	}
	m.status.State = models.RunStateComplete
	m.status.FailedHotspots = result.FailedHotspots
}

// Status returns a snapshot of the current run state.
func (m *Manager) Status() models.RunStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ResultsPath exposes the orchestrator's results file location.
func (m *Manager) ResultsPath() string {
	return m.orc.ResultsPath()
}
