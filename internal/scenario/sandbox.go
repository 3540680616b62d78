package scenario

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// Sandbox launches the microscopic engine for a fixed number of steps and
// drives the scenario hooks against it. The engine stays an external
// process; terminating it ends the experiment.
type Sandbox struct {
	cfg        models.SUMOConfig
	configPath string
	logger     *zap.Logger

	startCmd func(ctx context.Context, name string, args ...string) (stopper, error)
}

type stopper interface {
	Stop() error
}

func NewSandbox(cfg models.SUMOConfig, configPath string, logger *zap.Logger) *Sandbox {
	s := &Sandbox{cfg: cfg, configPath: configPath, logger: logger}
	s.startCmd = s.start
	return s
}

// Command composes the engine invocation: headless start (-S), no warnings
// on quit (-Q), deterministic seed, optional scenario config.
func (s *Sandbox) Command() []string {
	binary := s.cfg.Binary
	if s.cfg.GUI {
		binary += "-gui"
	}
	cmd := []string{binary, "-S", "-Q", "--seed", strconv.FormatInt(s.cfg.Seed, 10)}
	if s.configPath != "" {
		cmd = append(cmd, "-c", s.configPath)
	}
	return cmd
}

// Run executes the sandbox loop for durationSteps, updating the
// construction manager and signal controller each step.
func (s *Sandbox) Run(ctx context.Context, durationSteps int, construction *ConstructionEventManager, signals *AdaptiveSignalController, rec *RecordingController) error {
	cmdline := s.Command()
	s.logger.Info("launching sandbox", zap.Strings("command", cmdline))
	proc, err := s.startCmd(ctx, cmdline[0], cmdline[1:]...)
	if err != nil {
		return fmt.Errorf("launching microscopic engine: %w", err)
	}
	defer func() {
		if err := proc.Stop(); err != nil {
			s.logger.Warn("engine shutdown", zap.Error(err))
		} else {
			s.logger.Info("engine shutdown complete")
		}
	}()

	for step := 0; step < durationSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec != nil {
			rec.SetStep(step)
		}
		if construction != nil {
			if err := construction.Update(step); err != nil {
				return err
			}
		}
		if signals != nil {
			if err := signals.Update(step); err != nil {
				return err
			}
		}
	}
	return nil
}

type processStopper struct {
	cmd *exec.Cmd
}

func (p *processStopper) Stop() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}

func (s *Sandbox) start(ctx context.Context, name string, args ...string) (stopper, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processStopper{cmd: cmd}, nil
}
