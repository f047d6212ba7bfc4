// Command yieldctl inspects the yield model and the prediction history from
// the shell.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"arecayield/internal/cfg"
	"arecayield/internal/common"
	"arecayield/internal/ml"

	"github.com/spf13/cobra"
)

// Global flags
var (
	modelPath  string
	backend    string
	pythonPath string
	sidecarURL string
	dataPath   string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "yieldctl",
	Short: "Inspect the arecanut yield model and prediction history",
	Long: `yieldctl works with the same model artifact and history database as the
arecayield server.

  schema   list the model's feature columns and compare them with the encoder
  encode   turn an observation file into the aligned feature row
  predict  predict the yield for an observation file
  history  show or prune stored predictions`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.SetupLogging(logLevel, "console")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", envOr(common.EnvModelPath, common.DefaultModelPath), "model artifact path")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", envOr(common.EnvModelBackend, common.DefaultModelBackend), "model backend (native or python)")
	rootCmd.PersistentFlags().StringVar(&pythonPath, "python", os.Getenv(common.EnvPythonPath), "python interpreter for the python backend")
	rootCmd.PersistentFlags().StringVar(&sidecarURL, "sidecar-url", os.Getenv(common.EnvSidecarURL), "use an already running sidecar")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", os.Getenv(common.EnvDataPath), "directory holding the history database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(schemaCmd, encodeCmd, predictCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// openGateway loads the model selected by the global flags. Drift monitoring
// is left off; the CLI handles one observation at a time.
func openGateway(ctx context.Context) (*ml.Gateway, error) {
	startup, _ := time.ParseDuration(common.DefaultSidecarStartup)
	g, err := ml.Open(ctx, ml.Config{
		Backend:        backend,
		ModelPath:      modelPath,
		PythonPath:     pythonPath,
		SidecarURL:     sidecarURL,
		SidecarPort:    common.DefaultSidecarPort,
		StartupTimeout: startup,
		RequestTimeout: 10 * time.Second,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return g, nil
}
