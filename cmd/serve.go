package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/urbantwin/hybridsim/internal/api"
	"github.com/urbantwin/hybridsim/internal/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload/run/query HTTP API",
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

		router := api.NewRouter(a.manager, cfg.DataDir, logger)
		server := api.NewServer(cfg.Server, router, logger)
		return server.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().Int("port", 8000, "HTTP listen port")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}
