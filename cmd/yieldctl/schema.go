package main

import (
	"encoding/json"
	"fmt"

	"arecayield/internal/features"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List the model's feature columns",
	Long: `Print the ordered columns the model was fitted on and compare them with
the columns the encoder produces. Columns the model expects but the encoder
never sets are always zero at prediction time.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

type schemaReport struct {
	Version string               `json:"version"`
	Columns []string             `json:"columns"`
	Drift   features.AlignReport `json:"drift"`
}

func runSchema(cmd *cobra.Command, args []string) error {
	g, err := openGateway(cmd.Context())
	if err != nil {
		return err
	}
	defer g.Close()

	report := schemaReport{
		Version: g.Info().Version,
		Columns: g.Schema(),
		Drift:   g.EncoderDrift(),
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Model %s expects %d columns:\n", report.Version, len(report.Columns))
	for i, col := range report.Columns {
		fmt.Fprintf(out, "  %2d  %s\n", i, col)
	}
	if len(report.Drift.Missing) == 0 && len(report.Drift.Extra) == 0 {
		fmt.Fprintln(out, "Encoder and model columns match.")
		return nil
	}
	for _, col := range report.Drift.Missing {
		fmt.Fprintf(out, "missing from encoder (always 0): %s\n", col)
	}
	for _, col := range report.Drift.Extra {
		fmt.Fprintf(out, "unknown to model (dropped):      %s\n", col)
	}
	return nil
}
