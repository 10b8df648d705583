package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/storyscout/internal/storage"
)

var (
	savedDate   string
	savedFormat string
	savedOutput string
)

// savedCmd creates the "saved" subcommand.
func savedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "List saved stories, optionally for one day",
		RunE:  runSaved,
	}

	cmd.Flags().StringVar(&savedDate, "date", "", "only stories saved on this day (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&savedFormat, "format", "f", "json", "output format: json, jsonl, csv")
	cmd.Flags().StringVarP(&savedOutput, "output", "o", "-", "output file path (- for stdout)")

	return cmd
}

func runSaved(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog.Close()

	loc, err := cfg.Storage.Location()
	if err != nil {
		return err
	}

	var day *time.Time
	if savedDate != "" {
		d, err := time.ParseInLocation("2006-01-02", savedDate, loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", savedDate)
		}
		day = &d
	}

	ctx := cmd.Context()
	store, err := storage.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore(store, logger)

	entries, err := store.SavedEntries(ctx, day)
	if err != nil {
		return err
	}

	out, err := storage.CreateOutput(savedOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	exporter, err := storage.NewExporter(savedFormat, out, logger)
	if err != nil {
		return err
	}

	logger.Debug("exporting saved stories", "count", len(entries), "format", exporter.Name())
	return exporter.Export(entries)
}
