package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tubegate/tubegate/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration valid")
		fmt.Printf("  Videos dir:    %s\n", cfg.Paths.VideosDir)
		fmt.Printf("  Daily quota:   %d units\n", cfg.API.DailyQuota)
		fmt.Printf("  Rate limit:    %d requests/minute\n", cfg.API.MaxRequestsPerMinute)
		fmt.Printf("  Chunk size:    %d MiB\n", cfg.Upload.ChunkSizeMB)
		fmt.Printf("  Max retries:   %d\n", cfg.Upload.MaxRetries)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
