package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlphonseHQ/console/internal/alphonse"
	"github.com/AlphonseHQ/console/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ Alphonse Console Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show console and agent link status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Alphonse Console Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		if path, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(path); err == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			return
		}
		fmt.Printf("Agent API: %s\n", cfg.Alphonse.BaseURL)
		if cfg.Alphonse.APIToken != "" {
			fmt.Println("API Token: ✓ Configured")
		} else {
			fmt.Println("API Token: ✗ Not set")
		}

		// Poll the agent link once
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap := alphonse.New(cfg.Alphonse).PresenceSnapshot(ctx)
		if snap.Status == "disconnected" {
			fmt.Printf("Agent Link: ✗ %s\n", snap.Note)
		} else {
			fmt.Printf("Agent Link: ✓ %s\n", snap.Status)
		}
	},
}
