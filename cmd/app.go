package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urbantwin/hybridsim/internal/cloud"
	"github.com/urbantwin/hybridsim/internal/hybrid"
	"github.com/urbantwin/hybridsim/internal/matsim"
	"github.com/urbantwin/hybridsim/internal/models"
	"github.com/urbantwin/hybridsim/internal/output"
	"github.com/urbantwin/hybridsim/internal/store"
	"github.com/urbantwin/hybridsim/internal/sumo"
	"go.uber.org/zap"
)

// app bundles the explicitly constructed collaborators for one process.
// There is no import-time singleton: cmd builds an app, uses it, closes it.
type app struct {
	cfg     *models.Config
	orc     *hybrid.Orchestrator
	manager *hybrid.Manager
	logger  *zap.Logger

	closers []func()
}

func buildApp(ctx context.Context, cfg *models.Config, logger *zap.Logger) (*app, error) {
	networkPath := cfg.MATSim.Network
	if networkPath == "" {
		networkPath = filepath.Join(cfg.DataDir, "network.xml")
	}

	// the network is referenced, not loaded: uploads may not have happened
	// yet, and a missing network should fail the run, not the process.
	meso := matsim.NewRunner(cfg.MATSim, cfg.DataDir, cfg.OutputDir, logger)
	micro := sumo.NewRunner(cfg.SUMO, networkPath, cfg.OutputDir, logger)

	a := &app{cfg: cfg, logger: logger}

	var opts []hybrid.Option
	if cfg.Kafka.Enabled {
		sink, err := output.NewKafkaSink(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("connecting Kafka sink: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := sink.Close(); err != nil {
				logger.Warn("closing Kafka sink", zap.Error(err))
			}
		})
		opts = append(opts, hybrid.WithEvents(sink, cfg.Kafka.Topic))
	}
	if cfg.Database.Enabled {
		st, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting run store: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		opts = append(opts, hybrid.WithStore(st))
	}
	if cfg.Export.LinkStatsParquet {
		opts = append(opts, hybrid.WithExporter(output.NewParquetExporter(cfg.OutputDir)))
	}
	if cfg.Cloud.Enabled {
		uploader, err := cloud.NewS3Uploader(ctx, cfg.Cloud.Region, cfg.Cloud.BucketName)
		if err != nil {
			return nil, fmt.Errorf("creating S3 uploader: %w", err)
		}
		opts = append(opts, hybrid.WithUploader(uploader))
	}

	a.orc = hybrid.NewOrchestrator(meso, micro, cfg.Pipeline.HotspotTopN, cfg.OutputDir, logger, opts...)
	a.manager = hybrid.NewManager(a.orc, logger)
	return a, nil
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
}
