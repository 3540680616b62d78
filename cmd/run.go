package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full hybrid pipeline once",
	Long: `Runs the mesoscopic baseline, detects the top-N delay hotspots,
re-simulates each hotspot microscopically, reintegrates the corrections and
re-runs the corrected scenario. Results land in <output_dir>/final_results.json.`,
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

		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.orc.Run(cmd.Context(), "")
		if err != nil {
			return err
		}
		logger.Info("pipeline complete",
			zap.String("run_id", result.RunID),
			zap.Int("hotspots", len(result.Hotspots)),
			zap.Int("failed_hotspots", len(result.FailedHotspots)),
			zap.String("results", a.orc.ResultsPath()),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().Int("top-n", 10, "number of hotspot links to re-simulate")
	_ = viper.BindPFlag("pipeline.hotspot_top_n", runCmd.Flags().Lookup("top-n"))

	rootCmd.AddCommand(runCmd)
}
