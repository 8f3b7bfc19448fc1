package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Praveen-2107/blackforge-ai/internal/config"
	"github.com/Praveen-2107/blackforge-ai/internal/logger"
	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
)

var analyzeMethods []string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dataset>",
	Short: "Analyze a training dataset for poisoning",
	Long: `Analyze scores every sample of a dataset for poisoning. The loader is
picked by extension: .csv is read as a labeled tabular dataset, .pcap/.pcapng
as a packet capture, and .txt as one text record per line embedded through the
configured OpenAI-compatible API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Env, pickLevel(cfg.Logging.Level))
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		samples, labels, err := loadSamples(cmd.Context(), cfg, args[0])
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		log.Info("dataset loaded",
			zap.Int("samples", samples.Rows()),
			zap.Bool("labeled", labels != nil),
		)

		methods := make([]detectors.Method, 0, len(analyzeMethods))
		for _, name := range analyzeMethods {
			methods = append(methods, detectors.Method(name))
		}

		engine := buildEngine(cfg, log)
		verdict, results, err := engine.Run(cmd.Context(), samples, labels, methods)
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Threat grade:\t%s (score %.1f)\n", verdict.Grade, verdict.ThreatScore)
		fmt.Fprintf(w, "Poison type:\t%s\n", verdict.PoisonType)
		fmt.Fprintf(w, "Confidence:\t%.1f%%\n", verdict.Confidence)
		fmt.Fprintf(w, "Est. accuracy impact:\t-%.1f%%\n", verdict.AccuracyImpact)
		fmt.Fprintf(w, "Suspicious samples:\t%d / %d\n",
			len(verdict.SuspiciousIndices), samples.Rows())
		for _, r := range results {
			fmt.Fprintf(w, "  %s:\t%d flagged (confidence %.1f%%)\n",
				r.Method, len(r.SuspiciousIndices), r.Confidence)
		}
		return w.Flush()
	},
}

// loadSamples reads the dataset at path, choosing the loader by extension.
// Packet captures and text records are unlabeled; label-dependent detectors
// are skipped for them downstream.
func loadSamples(ctx context.Context, cfg config.Config, path string) (dataset.Matrix, dataset.Labels, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcap", ".pcapng":
		samples, err := dataset.LoadPCAP(path)
		return samples, nil, err
	case ".txt":
		if cfg.Assistant.APIKey == "" {
			return nil, nil, errors.New(
				"text datasets need an embedding provider; set OPENAI_API_KEY or assistant.api_key")
		}
		embedder := dataset.NewOpenAIEmbedder(dataset.OpenAIConfig{
			APIKey:  cfg.Assistant.APIKey,
			BaseURL: cfg.Assistant.BaseURL,
		})
		samples, err := dataset.LoadTextRecords(ctx, path, embedder)
		return samples, nil, err
	default:
		tab, err := dataset.LoadCSV(path)
		if err != nil {
			return nil, nil, err
		}
		return tab.Samples, tab.Labels, nil
	}
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeMethods, "methods", nil,
		"detection methods to run (spectral_signatures, activation_clustering, influence_functions); default all")
}
