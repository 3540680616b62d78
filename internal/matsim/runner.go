package matsim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// Runner invokes the mesoscopic Java engine as a subprocess and parses its
// file outputs. The engine itself is an opaque external collaborator; the
// integration contract is "config file in, events + link statistics out".
type Runner struct {
	cfg       models.MATSimConfig
	dataDir   string
	outputDir string
	logger    *zap.Logger

	// runCmd is swapped out in tests so no JVM is required.
	runCmd func(ctx context.Context, name string, args ...string) error
}

func NewRunner(cfg models.MATSimConfig, dataDir, outputDir string, logger *zap.Logger) *Runner {
	r := &Runner{
		cfg:       cfg,
		dataDir:   dataDir,
		outputDir: outputDir,
		logger:    logger,
	}
	r.runCmd = r.execute
	return r
}

const configTemplate = `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE config SYSTEM "http://www.matsim.org/files/dtd/config_v2.dtd">
<config>
	<module name="controler">
		<param name="outputDirectory" value="{{.OutputDir}}"/>
		<param name="lastIteration" value="{{.Iterations}}"/>
		<param name="overwriteFiles" value="deleteDirectoryIfExists"/>
	</module>
	<module name="network">
		<param name="inputNetworkFile" value="{{.Network}}"/>
		{{- if .OverridesFile}}
		<param name="timeVariantNetwork" value="true"/>
		<param name="inputChangeEventsFile" value="{{.OverridesFile}}"/>
		{{- end}}
	</module>
	<module name="plans">
		<param name="inputPlansFile" value="{{.Plans}}"/>
	</module>
</config>
`

type configParams struct {
	OutputDir     string
	Iterations    int
	Network       string
	Plans         string
	OverridesFile string
}

// BuildConfig renders the engine configuration file and returns its path.
func (r *Runner) BuildConfig(overridesFile string) (string, error) {
	params := configParams{
		OutputDir:     r.outputDir,
		Iterations:    r.cfg.Iterations,
		Network:       r.cfg.Network,
		Plans:         r.cfg.Plans,
		OverridesFile: overridesFile,
	}
	tmpl, err := template.New("matsim-config").Parse(configTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing config template: %w", err)
	}

	cfgPath := filepath.Join(r.outputDir, "matsim_config.xml")
	f, err := os.Create(cfgPath)
	if err != nil {
		return "", fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, params); err != nil {
		return "", fmt.Errorf("rendering config: %w", err)
	}
	return cfgPath, nil
}

// RunBaseline launches the engine against the baseline scenario and parses
// its outputs. A non-zero exit is fatal: the error propagates and no partial
// results are produced.
func (r *Runner) RunBaseline(ctx context.Context) (*models.MesoResult, error) {
	return r.run(ctx, "")
}

// RunWithCorrections writes the correction map as a network change events
// file and re-runs the engine against it.
func (r *Runner) RunWithCorrections(ctx context.Context, corrections map[string]models.Correction) (*models.MesoResult, error) {
	overrides, err := r.writeCorrections(corrections)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, overrides)
}

func (r *Runner) run(ctx context.Context, overridesFile string) (*models.MesoResult, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	cfgPath, err := r.BuildConfig(overridesFile)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-Xms" + r.cfg.HeapMin,
		"-Xmx" + r.cfg.HeapMax,
		"-jar", r.cfg.Jar,
		cfgPath,
	}
	r.logger.Info("launching mesoscopic engine",
		zap.String("jar", r.cfg.Jar),
		zap.Strings("args", args),
	)
	if err := r.runCmd(ctx, r.cfg.JavaBin, args...); err != nil {
		return nil, fmt.Errorf("mesoscopic engine failed: %w", err)
	}

	res := &models.MesoResult{}
	res.LinkStats, err = ParseLinkStats(filepath.Join(r.outputDir, "linkstats.csv"))
	if err != nil {
		return nil, fmt.Errorf("parsing link statistics: %w", err)
	}
	res.EventSummary, err = SummarizeEvents(eventsPath(r.outputDir))
	if err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}
	r.logger.Info("mesoscopic run complete",
		zap.Int("links", len(res.LinkStats)),
		zap.Int("event_types", len(res.EventSummary)),
	)
	return res, nil
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

// writeCorrections persists corrected link travel times so the re-run picks
// them up. Only entries with an applied micro correction are written; the
// rest already carry their baseline travel time in the network.
func (r *Runner) writeCorrections(corrections map[string]models.Correction) (string, error) {
	path := filepath.Join(r.outputDir, "link_overrides.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating overrides file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "linkId,travelTime"); err != nil {
		return "", err
	}
	for linkID, c := range corrections {
		if !c.Applied {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s,%g\n", linkID, c.Corrected); err != nil {
			return "", err
		}
	}
	return path, nil
}

// eventsPath prefers the gzipped events file the engine writes by default
// and falls back to the plain XML variant.
func eventsPath(outputDir string) string {
	gz := filepath.Join(outputDir, "events.xml.gz")
	if _, err := os.Stat(gz); err == nil {
		return gz
	}
	return filepath.Join(outputDir, "events.xml")
}
