package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tubegate/tubegate/adapters/sqlite"
	"github.com/tubegate/tubegate/config"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent upload outcomes",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	db, err := sqlite.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return fmt.Errorf("error opening history database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("error migrating history database: %w", err)
	}

	ctx := context.Background()
	store := sqlite.NewHistoryStore(db)

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("Recorded outcomes: %d", total)
	if total > 0 {
		fmt.Print(" (")
		first := true
		for status, n := range counts {
			if !first {
				fmt.Print(", ")
			}
			fmt.Printf("%s: %d", status, n)
			first = false
		}
		fmt.Print(")")
	}
	fmt.Println()
	fmt.Println()

	records, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s  %-8s %s", rec.UploadedAt.Format("2006-01-02 15:04"), rec.Status, rec.Filename)
		if rec.VideoID != "" {
			line += "  video=" + rec.VideoID
		}
		if rec.Reason != "" {
			line += "  (" + rec.Reason + ")"
		}
		fmt.Println(line)
	}
	return nil
}
