// Package scenario stages sandbox experiments against a running microscopic
// simulation: construction lane closures and adaptive signal control.
package scenario

import (
	"fmt"

	"go.uber.org/zap"
)

// StepController is the step-wise control surface of the microscopic
// engine. Implementations translate these calls into the engine's control
// protocol; the Recording implementation captures them for inspection.
type StepController interface {
	CloseLanes(edge string, reducedLanes int) error
	OpenLanes(edge string) error
	SetPhase(tlsID string, phase int) error
}

// ConstructionEvent models a works-induced lane closure with a staged
// apply/revert window.
type ConstructionEvent struct {
	TargetEdge   string
	ReducedLanes int
	ApplyStep    int
	RevertStep   int
}

// ConstructionEventManager applies and reverts lane closures at their
// configured steps.
type ConstructionEventManager struct {
	event  ConstructionEvent
	ctrl   StepController
	logger *zap.Logger
	active bool
}

func NewConstructionEventManager(event ConstructionEvent, ctrl StepController, logger *zap.Logger) *ConstructionEventManager {
	return &ConstructionEventManager{event: event, ctrl: ctrl, logger: logger}
}

// Update checks whether the closure window opens or closes at this step.
func (m *ConstructionEventManager) Update(step int) error {
	switch {
	case step == m.event.ApplyStep && !m.active:
		m.logger.Info("applying lane closure",
			zap.String("edge", m.event.TargetEdge),
			zap.Int("step", step),
		)
		if err := m.ctrl.CloseLanes(m.event.TargetEdge, m.event.ReducedLanes); err != nil {
			return fmt.Errorf("applying closure on %s: %w", m.event.TargetEdge, err)
		}
		m.active = true
	case step == m.event.RevertStep && m.active:
		m.logger.Info("reverting lane closure",
			zap.String("edge", m.event.TargetEdge),
			zap.Int("step", step),
		)
		if err := m.ctrl.OpenLanes(m.event.TargetEdge); err != nil {
			return fmt.Errorf("reverting closure on %s: %w", m.event.TargetEdge, err)
		}
		m.active = false
	}
	return nil
}

// Active reports whether the closure is currently in force.
func (m *ConstructionEventManager) Active() bool {
	return m.active
}

// AdaptiveSignalController cycles controlled junctions through their phase
// maps on a fixed interval. A queue-driven policy can replace pickPhase
// once detector state is wired through the control protocol.
type AdaptiveSignalController struct {
	controlledTLS []string
	phaseMap      map[string][]int
	interval      int
	ctrl          StepController
}

func NewAdaptiveSignalController(controlledTLS []string, phaseMap map[string][]int, interval int, ctrl StepController) *AdaptiveSignalController {
	if interval <= 0 {
		interval = 30
	}
	return &AdaptiveSignalController{
		controlledTLS: controlledTLS,
		phaseMap:      phaseMap,
		interval:      interval,
		ctrl:          ctrl,
	}
}

func (a *AdaptiveSignalController) Update(step int) error {
	if step%a.interval != 0 {
		return nil
	}
	for _, tls := range a.controlledTLS {
		phases := a.phaseMap[tls]
		if len(phases) == 0 {
			continue
		}
		phase := phases[(step/a.interval)%len(phases)]
		if err := a.ctrl.SetPhase(tls, phase); err != nil {
			return fmt.Errorf("setting phase on %s: %w", tls, err)
		}
	}
	return nil
}

// ControlAction is one recorded control-protocol call.
type ControlAction struct {
	Step   int
	Action string
	Target string
	Value  int
}

// RecordingController captures control calls instead of sending them to a
// live engine; used in sandbox dry runs and tests.
type RecordingController struct {
	step    int
	Actions []ControlAction
}

func (r *RecordingController) SetStep(step int) { r.step = step }

func (r *RecordingController) CloseLanes(edge string, reducedLanes int) error {
	r.Actions = append(r.Actions, ControlAction{Step: r.step, Action: "close_lanes", Target: edge, Value: reducedLanes})
	return nil
}

func (r *RecordingController) OpenLanes(edge string) error {
	r.Actions = append(r.Actions, ControlAction{Step: r.step, Action: "open_lanes", Target: edge})
	return nil
}

func (r *RecordingController) SetPhase(tlsID string, phase int) error {
	r.Actions = append(r.Actions, ControlAction{Step: r.step, Action: "set_phase", Target: tlsID, Value: phase})
	return nil
}
