package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/urbantwin/hybridsim/internal/datagen"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate-data",
	Short: "Generate synthetic scenario inputs for dry runs",
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

		links, _ := cmd.Flags().GetInt("links")
		detectors, _ := cmd.Flags().GetStringSlice("detector")
		lat, _ := cmd.Flags().GetFloat64("center-lat")
		lon, _ := cmd.Flags().GetFloat64("center-lon")

		gen := datagen.NewGenerator()
		netPath, err := gen.NetworkXML(cfg.DataDir, links, lat, lon)
		if err != nil {
			return err
		}
		statsPath, err := gen.LinkStatsCSV(cfg.OutputDir, links)
		if err != nil {
			return err
		}

		counts := gen.DetectorCounts(detectors, time.Now().UTC().Truncate(time.Hour), 12, 15*time.Minute)
		countsPath := filepath.Join(cfg.DataDir, "detector_counts.json")
		data, err := json.MarshalIndent(counts, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(countsPath, data, 0o644); err != nil {
			return err
		}

		logger.Info("synthetic scenario generated",
			zap.String("network", netPath),
			zap.String("link_stats", statsPath),
			zap.String("counts", countsPath),
		)
		return nil
	},
}

func init() {
	generateCmd.Flags().Int("links", 50, "number of network links to generate")
	generateCmd.Flags().StringSlice("detector", []string{"D1", "D2"}, "detector IDs for synthetic counts")
	generateCmd.Flags().Float64("center-lat", 49.1427, "latitude of the study-area center")
	generateCmd.Flags().Float64("center-lon", 9.2109, "longitude of the study-area center")

	rootCmd.AddCommand(generateCmd)
}
