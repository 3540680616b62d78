package hybrid

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucsky/cuid"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// MesoEngine is the mesoscopic simulation boundary: a coarse network-wide
// run whose outputs are parsed from files.
type MesoEngine interface {
	RunBaseline(ctx context.Context) (*models.MesoResult, error)
	RunWithCorrections(ctx context.Context, corrections map[string]models.Correction) (*models.MesoResult, error)
}

// MicroEngine runs localized microscopic simulations for hotspot links. The
// two maps cover per-hotspot outcomes; the error is for failures that doom
// the whole batch, such as an unreadable network.
type MicroEngine interface {
	RunHotspots(ctx context.Context, hotspots []string) (map[string]models.MicroResult, map[string]error, error)
}

// EventSink receives pipeline lifecycle messages, one topic per run stream.
type EventSink interface {
	WriteMessage(topic string, msg []byte) error
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, result *models.RunResult) error
}

// Exporter writes the corrected link statistics as a columnar artifact.
type Exporter interface {
	ExportLinkStats(runID string, stats []models.LinkStat) error
}

// Uploader pushes the final results to cloud storage.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Orchestrator sequences the two-phase hybrid study: coarse baseline,
// hotspot detection, per-hotspot micro correction, reintegration and a
// corrected re-run. All collaborators are passed in explicitly; there is no
// process-wide instance.
type Orchestrator struct {
	meso      MesoEngine
	micro     MicroEngine
	topN      int
	outputDir string
	logger    *zap.Logger

	// optional collaborators, nil when disabled
	events   EventSink
	topic    string
	store    RunStore
	exporter Exporter
	uploader Uploader
}

type Option func(*Orchestrator)

func WithEvents(sink EventSink, topic string) Option {
	return func(o *Orchestrator) { o.events = sink; o.topic = topic }
}

func WithStore(store RunStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

func WithExporter(exporter Exporter) Option {
	return func(o *Orchestrator) { o.exporter = exporter }
}

func WithUploader(uploader Uploader) Option {
	return func(o *Orchestrator) { o.uploader = uploader }
}

func NewOrchestrator(meso MesoEngine, micro MicroEngine, topN int, outputDir string, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		meso:      meso,
		micro:     micro,
		topN:      topN,
		outputDir: outputDir,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResultsPath is where the final run artifact lands, overwritten per run.
func (o *Orchestrator) ResultsPath() string {
	return filepath.Join(o.outputDir, "final_results.json")
}

// Run executes the full pipeline. A mesoscopic failure aborts the run and
// leaves no partial results file; per-hotspot microscopic failures are
// recorded in the result but do not abort. An empty runID gets a fresh one.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*models.RunResult, error) {
	if runID == "" {
		runID = cuid.New()
	}
	started := time.Now().UTC()
	o.emit("run_started", map[string]any{"run_id": runID})

	o.logger.Info("running mesoscopic baseline", zap.String("run_id", runID))
	baseline, err := o.meso.RunBaseline(ctx)
	if err != nil {
		o.emit("run_failed", map[string]any{"run_id": runID, "stage": "baseline", "error": err.Error()})
		return nil, fmt.Errorf("baseline run: %w", err)
	}

	hotspots := DetectHotspots(baseline.LinkStats, o.topN)
	o.logger.Info("hotspots detected", zap.Strings("hotspots", hotspots))
	o.emit("hotspots_detected", map[string]any{"run_id": runID, "hotspots": hotspots})

	microResults, failures, err := o.micro.RunHotspots(ctx, hotspots)
	if err != nil {
		o.emit("run_failed", map[string]any{"run_id": runID, "stage": "micro", "error": err.Error()})
		return nil, fmt.Errorf("micro runs: %w", err)
	}

	corrections := Reintegrate(baseline.LinkStats, microResults)
	o.logger.Info("micro corrections reintegrated",
		zap.Int("corrected", len(microResults)),
		zap.Int("failed", len(failures)),
		zap.Int("links", len(corrections)),
	)

	final, err := o.meso.RunWithCorrections(ctx, corrections)
	if err != nil {
		o.emit("run_failed", map[string]any{"run_id": runID, "stage": "corrected", "error": err.Error()})
		return nil, fmt.Errorf("corrected run: %w", err)
	}

	result := &models.RunResult{
		RunID:          runID,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		Hotspots:       hotspots,
		FailedHotspots: failureMessages(failures),
		Corrections:    corrections,
		LinkCount:      len(final.LinkStats),
	}

	if err := o.persist(result); err != nil {
		return nil, err
	}
	o.finalize(ctx, result, final.LinkStats)
	o.emit("run_complete", map[string]any{"run_id": runID, "hotspots": len(hotspots)})
	return result, nil
}

// persist writes the results file atomically: a failed run must never leave
// a partial final_results.json behind.
func (o *Orchestrator) persist(result *models.RunResult) error {
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	tmp := o.ResultsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	if err := os.Rename(tmp, o.ResultsPath()); err != nil {
		return fmt.Errorf("publishing results: %w", err)
	}
	return nil
}

// finalize fans the completed run out to the optional sinks. Sink failures
// are logged, not fatal: the results file is already on disk.
func (o *Orchestrator) finalize(ctx context.Context, result *models.RunResult, stats []models.LinkStat) {
	if o.store != nil {
		if err := o.store.SaveRun(ctx, result); err != nil {
			o.logger.Error("persisting run record failed", zap.Error(err))
		}
	}
	if o.exporter != nil {
		if err := o.exporter.ExportLinkStats(result.RunID, stats); err != nil {
			o.logger.Error("link stats export failed", zap.Error(err))
		}
	}
	if o.uploader != nil {
		data, err := os.ReadFile(o.ResultsPath())
		if err == nil {
			key := fmt.Sprintf("runs/%s/final_results.json", result.RunID)
			err = o.uploader.Upload(ctx, key, data)
		}
		if err != nil {
			o.logger.Error("results upload failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) emit(stage string, payload map[string]any) {
	if o.events == nil {
		return
	}
	payload["stage"] = stage
	payload["at"] = time.Now().UTC().Format(time.RFC3339)
	msg, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := o.events.WriteMessage(o.topic, msg); err != nil {
		o.logger.Warn("event publish failed", zap.String("stage", stage), zap.Error(err))
	}
}

func failureMessages(failures map[string]error) map[string]string {
	if len(failures) == 0 {
		return nil
	}
	msgs := make(map[string]string, len(failures))
	for linkID, err := range failures {
		msgs[linkID] = err.Error()
	}
	return msgs
}
