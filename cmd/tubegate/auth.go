package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tubegate/tubegate/adapters/youtube"
	"github.com/tubegate/tubegate/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize the uploader against the platform",
	Long: `Run the one-time OAuth authorization flow.

Prints an authorization URL, waits for the code, and caches the
resulting token next to the configuration. Subsequent runs refresh the
token automatically.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	conf, err := youtube.OAuthConfig(cfg.Paths.CredentialsFile)
	if err != nil {
		return err
	}

	fmt.Println("Visit the following URL to authorize tubegate:")
	fmt.Println()
	fmt.Println("  " + youtube.AuthURL(conf))
	fmt.Println()
	fmt.Print("Enter the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}

	if _, err := youtube.Exchange(context.Background(), conf, code, cfg.Paths.TokenFile); err != nil {
		return err
	}

	fmt.Printf("Token cached at %s\n", cfg.Paths.TokenFile)
	return nil
}
