package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tubegate/tubegate/adapters/clock"
	"github.com/tubegate/tubegate/adapters/ledgerfile"
	"github.com/tubegate/tubegate/config"
	"github.com/tubegate/tubegate/domain/quota"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current daily quota ledger",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	store := ledgerfile.New(cfg.Paths.LedgerFile)
	now := clock.Real{}.Now()

	state, found, err := store.Load(context.Background())
	if err != nil {
		return fmt.Errorf("error loading quota ledger: %w", err)
	}
	if !found {
		state = quota.NewState(cfg.API.DailyQuota, now)
	} else {
		state, _ = quota.Rollover(state, now)
	}

	s := quota.Summarize(state)
	fmt.Printf("Daily quota:  %d units\n", s.DailyQuota)
	fmt.Printf("Used:         %d units (%.1f%%)\n", s.Used, s.PercentUsed)
	fmt.Printf("Remaining:    %d units\n", s.Remaining)
	fmt.Printf("Next reset:   %s\n", s.ResetTime.Format("2006-01-02 15:04 MST"))

	uploadCost := quota.Cost(quota.OpVideoUpload)
	if uploadCost > 0 {
		fmt.Printf("Uploads left: %d\n", s.Remaining/uploadCost)
	}
	return nil
}
