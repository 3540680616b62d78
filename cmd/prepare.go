package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/urbantwin/hybridsim/internal/geo"
	"github.com/urbantwin/hybridsim/internal/ingest"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// parseBBox parses a comma-separated "north,south,east,west" box.
func parseBBox(s string) (geo.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.BBox{}, fmt.Errorf("expected four comma-separated values: north,south,east,west")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BBox{}, fmt.Errorf("bbox component %d: %w", i+1, err)
		}
		vals[i] = v
	}
	north, south, east, west := vals[0], vals[1], vals[2], vals[3]
	return geo.BBox{
		South: min(north, south),
		North: max(north, south),
		West:  min(east, west),
		East:  max(east, west),
	}, nil
}

var downloadOSMCmd = &cobra.Command{
	Use:   "download-osm",
	Short: "Download an OSM extract and convert it to a micro-simulation network",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := models.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		bboxStr, _ := cmd.Flags().GetString("bbox")
		name, _ := cmd.Flags().GetString("name")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		sumoHome, _ := cmd.Flags().GetString("sumo-home")

		box, err := parseBBox(bboxStr)
		if err != nil {
			return err
		}

		downloader := ingest.NewOSMDownloader(cfg.Ingest.OverpassURL, cfg.Ingest.CacheDir, sumoHome, logger)
		extract, err := downloader.DownloadExtract(cmd.Context(), box, name)
		if err != nil {
			return err
		}
		netPath, err := downloader.BuildNetwork(cmd.Context(), extract, outputDir, name)
		if err != nil {
			return err
		}
		logger.Info("network generated", zap.String("path", netPath))
		return nil
	},
}

var fetchCountsCmd = &cobra.Command{
	Use:   "fetch-counts",
	Short: "Pull detector counts for a calibration window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := models.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		detectors, _ := cmd.Flags().GetStringSlice("detector")
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		if len(detectors) == 0 {
			return fmt.Errorf("at least one --detector is required")
		}

		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return fmt.Errorf("parsing start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return fmt.Errorf("parsing end: %w", err)
		}

		client := ingest.NewDetectorClient(cfg.Ingest.DetectorBaseURL, cfg.Ingest.DetectorAPIKey, cfg.Ingest.CacheDir, logger)
		payload := make(map[string][]ingest.DetectorCount, len(detectors))
		for _, id := range detectors {
			counts, err := client.FetchCounts(cmd.Context(), id, start, end, endpoint)
			if err != nil {
				return fmt.Errorf("fetching detector %s: %w", id, err)
			}
			payload[id] = counts
		}
		path, err := client.SaveCounts(payload, start, end)
		if err != nil {
			return err
		}
		logger.Info("counts saved", zap.String("path", path), zap.Int("detectors", len(detectors)))
		return nil
	},
}

func init() {
	downloadOSMCmd.Flags().String("bbox", "", "bounding box as 'north,south,east,west'")
	downloadOSMCmd.Flags().String("name", "study_area", "base name for the extract and network files")
	downloadOSMCmd.Flags().String("output-dir", "build", "directory for the generated network")
	downloadOSMCmd.Flags().String("sumo-home", "", "override $SUMO_HOME")
	_ = downloadOSMCmd.MarkFlagRequired("bbox")

	fetchCountsCmd.Flags().StringSlice("detector", nil, "detector IDs to fetch")
	fetchCountsCmd.Flags().String("start", "", "start timestamp (RFC 3339)")
	fetchCountsCmd.Flags().String("end", "", "end timestamp (RFC 3339)")
	fetchCountsCmd.Flags().String("endpoint", "traffic/counts", "endpoint appended to the base URL, supports {detector_id}")
	_ = fetchCountsCmd.MarkFlagRequired("start")
	_ = fetchCountsCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(downloadOSMCmd)
	rootCmd.AddCommand(fetchCountsCmd)
}
