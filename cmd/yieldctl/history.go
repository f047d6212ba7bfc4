package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"arecayield/internal/common"
	"arecayield/internal/storage"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	pruneBefore  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent predictions from the history database",
	Long: `Read the most recent predictions from <data>/arecayield.db.

The database is opened read-only, but bbolt still takes a file lock: stop the
server first or point --data at a copy.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete predictions older than --before",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", common.DefaultHistoryLimit, "number of records to show")
	pruneCmd.Flags().DurationVar(&pruneBefore, "before", 90*24*time.Hour, "delete records older than this")
	historyCmd.AddCommand(pruneCmd)
}

func historyPath() (string, error) {
	if dataPath == "" {
		return "", errors.New("--data (or DATA_PATH) is required")
	}
	return filepath.Join(dataPath, common.HistoryDBFile), nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit <= 0 || historyLimit > common.MaxHistoryLimit {
		return fmt.Errorf("--limit must be between 1 and %d", common.MaxHistoryLimit)
	}
	path, err := historyPath()
	if err != nil {
		return err
	}

	store, err := storage.Open(path, true)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []storage.PredictionRecord{}
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No predictions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tVARIETY\tYIELD (kg/palm)\tMODEL\tREQUEST")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n",
			rec.Timestamp.Format(time.RFC3339),
			rec.Observation.Variety,
			rec.YieldKg,
			rec.ModelVersion,
			rec.RequestID,
		)
	}
	return tw.Flush()
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneBefore <= 0 {
		return errors.New("--before must be positive")
	}
	path, err := historyPath()
	if err != nil {
		return err
	}

	store, err := storage.Open(path, false)
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().Add(-pruneBefore)
	removed, err := store.DeleteBefore(cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d predictions recorded before %s.\n", removed, cutoff.UTC().Format(time.RFC3339))
	return nil
}
