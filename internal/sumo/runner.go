package sumo

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// Runner executes one microscopic simulation per hotspot link and turns the
// engine's tripinfo output into a scalar delay estimate.
type Runner struct {
	cfg         models.SUMOConfig
	networkPath string
	outputDir   string
	logger      *zap.Logger
	rng         *rand.Rand

	// the network index is loaded on first use, not at construction, so the
	// process can come up before any network has been uploaded.
	mu    sync.Mutex
	index *NetworkIndex

	runCmd func(ctx context.Context, name string, args ...string) error
}

func NewRunner(cfg models.SUMOConfig, networkPath, outputDir string, logger *zap.Logger) *Runner {
	r := &Runner{
		cfg:         cfg,
		networkPath: networkPath,
		outputDir:   outputDir,
		logger:      logger,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
	}
	r.runCmd = r.execute
	return r
}

func (r *Runner) networkIndex() (*NetworkIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		idx, err := LoadNetworkIndex(r.networkPath)
		if err != nil {
			return nil, fmt.Errorf("loading network index: %w", err)
		}
		r.logger.Info("network index loaded",
			zap.String("path", r.networkPath),
			zap.Int("links", idx.LinkCount()),
		)
		r.index = idx
	}
	return r.index, nil
}

// RunHotspots runs the hotspot links one after another. A failing hotspot
// does not abort the batch: it is logged and recorded in the failure map so
// callers can tell "no correction" apart from "micro run crashed". An
// unreadable network aborts the whole batch.
func (r *Runner) RunHotspots(ctx context.Context, hotspots []string) (map[string]models.MicroResult, map[string]error, error) {
	idx, err := r.networkIndex()
	if err != nil {
		return nil, nil, err
	}

	results := make(map[string]models.MicroResult, len(hotspots))
	failures := make(map[string]error)
	bar := progressbar.Default(int64(len(hotspots)), "micro runs")
	for _, linkID := range hotspots {
		res, err := r.runHotspot(ctx, idx, linkID)
		_ = bar.Add(1)
		if err != nil {
			r.logger.Warn("hotspot micro run failed",
				zap.String("link_id", linkID),
				zap.Error(err),
			)
			failures[linkID] = err
			continue
		}
		results[linkID] = res
	}
	return results, failures, nil
}

func (r *Runner) runHotspot(ctx context.Context, idx *NetworkIndex, linkID string) (models.MicroResult, error) {
	box, ok := idx.BBoxFor(linkID, r.cfg.BBoxPadKm)
	if !ok {
		return models.MicroResult{}, fmt.Errorf("link %s not present in network", linkID)
	}

	netFile := filepath.Join(r.outputDir, fmt.Sprintf("sumo_hotspot_%s.net.xml", linkID))
	routeFile := filepath.Join(r.outputDir, fmt.Sprintf("sumo_hotspot_%s.rou.xml", linkID))
	tripFile := filepath.Join(r.outputDir, fmt.Sprintf("sumo_hotspot_%s.tripinfo.xml", linkID))

	links, err := idx.WriteArea(netFile, box)
	if err != nil {
		return models.MicroResult{}, err
	}
	if err := r.writeRoutes(routeFile, linkID); err != nil {
		return models.MicroResult{}, err
	}

	seed := r.rng.Intn(10000)
	args := []string{
		"-n", netFile,
		"-r", routeFile,
		"--seed", strconv.Itoa(seed),
		"--duration-log.statistics",
		"--tripinfo-output", tripFile,
	}
	if r.cfg.StepLength > 0 {
		args = append(args, "--step-length", strconv.FormatFloat(r.cfg.StepLength, 'g', -1, 64))
	}
	r.logger.Info("launching microscopic engine",
		zap.String("link_id", linkID),
		zap.Float64("bbox_south", box.South),
		zap.Float64("bbox_north", box.North),
		zap.Int("area_links", links),
		zap.Int("seed", seed),
	)
	if err := r.runCmd(ctx, r.cfg.Binary, args...); err != nil {
		return models.MicroResult{}, fmt.Errorf("microscopic engine failed for %s: %w", linkID, err)
	}

	return ParseTripinfo(tripFile)
}

// writeRoutes emits a minimal demand file routing background traffic over
// the hotspot edge. Departures are spread deterministically from the
// configured seed so re-runs are reproducible.
func (r *Runner) writeRoutes(path, linkID string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating route file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, `<routes>`); err != nil {
		return err
	}
	const vehicles = 50
	depart := 0.0
	for i := 0; i < vehicles; i++ {
		depart += 1 + r.rng.Float64()*4
		if _, err := fmt.Fprintf(f,
			"    <vehicle id=\"bg_%s_%d\" depart=\"%.1f\"><route edges=\"%s\"/></vehicle>\n",
			linkID, i, depart, linkID,
		); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(f, `</routes>`); err != nil {
		return err
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Error("engine subprocess failed",
			zap.String("binary", name),
			zap.ByteString("output", out),
			zap.Error(err),
		)
		return err
	}
	return nil
}
