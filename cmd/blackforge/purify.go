package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Praveen-2107/blackforge-ai/internal/config"
	"github.com/Praveen-2107/blackforge-ai/internal/logger"
	"github.com/Praveen-2107/blackforge-ai/pkg/purify"
)

var (
	purifyIndices []int
	purifyKind    string
	purifyOutput  string
)

var purifyCmd = &cobra.Command{
	Use:   "purify <dataset>",
	Short: "Remove flagged samples and write a clean dataset",
	Args:  cobra.ExactArgs(1),
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

		dest := purifyOutput
		if dest == "" {
			dest = args[0] + ".purified"
		}

		p := purify.New(purify.WithLogger(log))
		outcome, err := p.Purify(args[0], dest, purifyIndices, purify.Kind(purifyKind))
		if err != nil {
			return err
		}

		fmt.Printf("Clean dataset: %s\n", outcome.CleanPath)
		fmt.Printf("Removed: %d of %d samples\n", outcome.Removed, outcome.TotalSamples)
		fmt.Printf("Integrity score: %.2f%%\n", outcome.IntegrityScore)
		if outcome.Degraded {
			fmt.Printf("WARNING: degraded mode (%s), source could not be purified\n", outcome.Mode)
		}
		return nil
	},
}

func init() {
	purifyCmd.Flags().IntSliceVar(&purifyIndices, "indices", nil, "zero-based sample indices to remove")
	purifyCmd.Flags().StringVar(&purifyKind, "kind", string(purify.KindTabular),
		"dataset kind: tabular or image_folder")
	purifyCmd.Flags().StringVar(&purifyOutput, "output", "", "output path (default: <dataset>.purified)")
}
