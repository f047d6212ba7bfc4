package main

import (
	"encoding/json"
	"fmt"

	"arecayield/internal/features"

	"github.com/spf13/cobra"
)

var encoderOnly bool

var encodeCmd = &cobra.Command{
	Use:   "encode <observation.yaml|observation.json>",
	Short: "Encode an observation into the aligned feature row",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

func init() {
	encodeCmd.Flags().BoolVar(&encoderOnly, "encoder-only", false, "align against the encoder's own columns instead of loading the model")
}

func runEncode(cmd *cobra.Command, args []string) error {
	obs, err := loadObservation(args[0])
	if err != nil {
		return err
	}

	schema := features.Columns()
	if !encoderOnly {
		g, err := openGateway(cmd.Context())
		if err != nil {
			return err
		}
		schema = g.Schema()
		g.Close()
	}

	row, report := features.Build(obs, schema)

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Row       features.FeatureRow  `json:"row"`
			Alignment features.AlignReport `json:"alignment"`
		}{row, report})
	}

	for i, col := range row.Columns {
		fmt.Fprintf(out, "%-32s %g\n", col, row.Values[i])
	}
	for _, col := range report.Missing {
		fmt.Fprintf(out, "zero-filled: %s\n", col)
	}
	return nil
}
