package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tubegate",
	Short: "Quota-aware batch video uploader",
	Long: `Tubegate uploads a directory of videos to the platform while staying
inside its daily API quota and per-minute request rate limit.

Uploads are chunked and resumable: transient failures are retried with
exponential backoff and resume from the last acknowledged byte. Quota
usage is persisted between runs, and every processed file is recorded
so nothing is ever uploaded twice.

Quick start:
  tubegate auth       # Authorize against the platform
  tubegate upload     # Upload everything in the videos directory

Management:
  tubegate status     # Show remaining quota
  tubegate history    # Show recent upload outcomes
  tubegate validate   # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tubegate.yaml", "config file path")
}
