// Command blackforge runs the adversarial ML defense platform: a detection
// and purification engine for poisoned training datasets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "blackforge",
	Short: "Detect and purge poisoned samples in ML training datasets",
	Long: `BlackForge AI analyzes machine-learning training datasets for
poisoning: spectral signatures, activation clustering, and influence
functions each score every sample, the verdicts are merged into a threat
grade, and flagged samples can be removed to produce a clean dataset.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(purifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
