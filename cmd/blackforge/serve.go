package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Praveen-2107/blackforge-ai/internal/assistant"
	"github.com/Praveen-2107/blackforge-ai/internal/config"
	"github.com/Praveen-2107/blackforge-ai/internal/logger"
	"github.com/Praveen-2107/blackforge-ai/internal/server"
	"github.com/Praveen-2107/blackforge-ai/internal/store"
	"github.com/Praveen-2107/blackforge-ai/pkg/analysis"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors/cluster"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors/influence"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors/spectral"
	"github.com/Praveen-2107/blackforge-ai/pkg/purify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log, err := logger.New(cfg.Env, pickLevel(cfg.Logging.Level))
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		st, err := store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := buildEngine(cfg, log)
		purifier := purify.New(purify.WithLogger(log))
		ai := assistant.New(assistant.Config{
			APIKey:  cfg.Assistant.APIKey,
			BaseURL: cfg.Assistant.BaseURL,
			Model:   cfg.Assistant.Model,
		}, log)

		srv := server.New(engine, purifier, st, ai,
			cfg.Storage.UploadDir, cfg.Storage.PurifiedDir, log)

		httpServer := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      srv.Router(),
			ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("HTTP server listening",
				zap.Int("port", cfg.HTTP.Port),
				zap.Bool("assistant_enabled", ai.Enabled()),
			)
			errCh <- httpServer.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			log.Info("shutting down", zap.String("signal", sig.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	},
}

// buildEngine wires configured detector tunables, keeping defaults for
// unset fields.
func buildEngine(cfg config.Config, log *zap.Logger) *analysis.Engine {
	det := cfg.Detection

	var spectralOpts []spectral.Option
	if det.SpectralComponents > 0 {
		spectralOpts = append(spectralOpts, spectral.WithComponents(det.SpectralComponents))
	}
	if det.SpectralPercentile > 0 {
		spectralOpts = append(spectralOpts, spectral.WithThresholdPercentile(det.SpectralPercentile))
	}

	var clusterOpts []cluster.Option
	if det.Clusters > 0 {
		clusterOpts = append(clusterOpts, cluster.WithClusters(det.Clusters))
	}
	if det.DBSCANEps > 0 {
		clusterOpts = append(clusterOpts, cluster.WithEps(det.DBSCANEps))
	}
	if det.DBSCANMinSamples > 0 {
		clusterOpts = append(clusterOpts, cluster.WithMinSamples(det.DBSCANMinSamples))
	}
	if det.Seed != 0 {
		clusterOpts = append(clusterOpts, cluster.WithSeed(det.Seed))
	}

	var influenceOpts []influence.Option
	if det.InfluenceSampleCap > 0 {
		influenceOpts = append(influenceOpts, influence.WithSampleCap(det.InfluenceSampleCap))
	}
	if det.InfluenceDamping > 0 {
		influenceOpts = append(influenceOpts, influence.WithDamping(det.InfluenceDamping))
	}
	if det.InfluencePercentile > 0 {
		influenceOpts = append(influenceOpts, influence.WithThresholdPercentile(det.InfluencePercentile))
	}

	return analysis.NewEngine(
		analysis.WithDetector(spectral.New(spectralOpts...)),
		analysis.WithDetector(cluster.New(clusterOpts...)),
		analysis.WithDetector(influence.New(influenceOpts...)),
		analysis.WithLogger(log),
	)
}

func pickLevel(configured string) string {
	if logLevel != "" {
		return logLevel
	}
	return configured
}
