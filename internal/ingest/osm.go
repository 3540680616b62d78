package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/urbantwin/hybridsim/internal/geo"
	"go.uber.org/zap"
)

// OSMDownloader pulls raw OpenStreetMap extracts from the Overpass API and
// converts them into a microscopic network via the external netconvert tool.
type OSMDownloader struct {
	overpassURL string
	cacheDir    string
	sumoHome    string
	client      *http.Client
	logger      *zap.Logger

	runCmd func(ctx context.Context, name string, args ...string) error
}

func NewOSMDownloader(overpassURL, cacheDir, sumoHome string, logger *zap.Logger) *OSMDownloader {
	d := &OSMDownloader{
		overpassURL: overpassURL,
		cacheDir:    cacheDir,
		sumoHome:    sumoHome,
		client:      &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
	d.runCmd = d.execute
	return d
}

// OverpassQuery renders the bbox query netconvert expects: all nodes, ways
// and relations in the box plus their referenced members.
func OverpassQuery(box geo.BBox) string {
	bbox := fmt.Sprintf("%g,%g,%g,%g", box.South, box.West, box.North, box.East)
	return fmt.Sprintf(`[out:xml][timeout:60];
(
  node(%s);
  way(%s);
  relation(%s);
);
(._;>;);
out;`, bbox, bbox, bbox)
}

// DownloadExtract fetches the raw OSM XML for the bounding box and writes
// it under the cache directory.
func (d *OSMDownloader) DownloadExtract(ctx context.Context, box geo.BBox, name string) (string, error) {
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	form := url.Values{"data": {OverpassQuery(box)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.overpassURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	d.logger.Info("downloading OSM extract",
		zap.Float64("south", box.South),
		zap.Float64("north", box.North),
	)
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("overpass returned %s", resp.Status)
	}

	target := filepath.Join(d.cacheDir, name+".osm.xml")
	out, err := os.Create(target)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("writing extract: %w", err)
	}
	return target, nil
}

// NetconvertArgs is the flag set handed to netconvert; exported so tests
// can pin the conversion contract.
func NetconvertArgs(osmFile, netPath string) []string {
	return []string{
		"--osm-files", osmFile,
		"--output-file", netPath,
		"--geometry.remove",
		"--roundabouts.guess",
		"--junctions.corner-detail", "5",
		"--ramps.guess",
		"--tls.join",
	}
}

// BuildNetwork converts a raw OSM extract into a SUMO-ready net file.
func (d *OSMDownloader) BuildNetwork(ctx context.Context, osmFile, outputDir, name string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	bin, err := d.resolveNetconvert()
	if err != nil {
		return "", err
	}

	netPath := filepath.Join(outputDir, name+".net.xml")
	d.logger.Info("running netconvert", zap.String("binary", bin), zap.String("output", netPath))
	if err := d.runCmd(ctx, bin, NetconvertArgs(osmFile, netPath)...); err != nil {
		return "", fmt.Errorf("netconvert failed: %w", err)
	}
	return netPath, nil
}

// resolveNetconvert looks on PATH first, then under SUMO_HOME/bin.
func (d *OSMDownloader) resolveNetconvert() (string, error) {
	if candidate, err := exec.LookPath("netconvert"); err == nil {
		return candidate, nil
	}
	for _, home := range []string{os.Getenv("SUMO_HOME"), d.sumoHome} {
		if home == "" {
			continue
		}
		candidate := filepath.Join(home, "bin", "netconvert")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("netconvert binary not found: ensure SUMO is installed and SUMO_HOME/bin is on PATH")
}

func (d *OSMDownloader) execute(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if d.sumoHome != "" {
		cmd.Env = append(os.Environ(), "SUMO_HOME="+d.sumoHome)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		d.logger.Error("netconvert subprocess failed", zap.ByteString("output", out), zap.Error(err))
		return err
	}
	return nil
}
