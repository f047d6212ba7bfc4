package main

import (
	"encoding/json"
	"fmt"

	"arecayield/internal/common"

	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict <observation.yaml|observation.json>",
	Short: "Predict the yield for an observation",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	obs, err := loadObservation(args[0])
	if err != nil {
		return err
	}

	g, err := openGateway(cmd.Context())
	if err != nil {
		return err
	}
	defer g.Close()

	pred, err := g.Predict(cmd.Context(), obs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pred)
	}

	fmt.Fprintf(out, common.YieldResultFormat+"\n", pred.YieldKg)
	if pred.Alignment.Drifted() {
		fmt.Fprintf(out, "warning: %d model columns were zero-filled\n", len(pred.Alignment.Missing))
	}
	return nil
}
