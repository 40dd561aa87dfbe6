package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eaili5/eaili5/internal/api"
	"github.com/eaili5/eaili5/internal/config"
	"github.com/eaili5/eaili5/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show eaili5 status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("eaili5 %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("State:   %s\n", paths.State)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
					cfg = config.Defaults()
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
					return nil
				}
			}

			fmt.Printf("API:     %s (timeout %s)\n", cfg.API.BaseURL, cfg.API.Timeout())
			fmt.Printf("Chat:    %s\n", cfg.Chat.Endpoint)
			fmt.Printf("Feed:    %s (backoff %s..%s, max %d attempts)\n",
				cfg.Feed.Endpoint, cfg.Feed.InitialBackoff(), cfg.Feed.MaxBackoff(), cfg.Feed.MaxAttempts)
			fmt.Printf("Session: identity=%s level=%d\n", cfg.Session.Identity, cfg.Session.LearningLevel)
			if cfg.Wallet.Address != "" {
				fmt.Printf("Wallet:  %s (%s)\n", cfg.Wallet.Address, cfg.Wallet.Network)
			} else {
				fmt.Println("Wallet:  (not configured)")
			}

			// Backend health
			client := api.New(cfg.API, log)
			health, err := client.Health(cmd.Context())
			if err != nil {
				fmt.Printf("Backend: %s\n", downStyle.Render("unreachable: "+err.Error()))
			} else {
				fmt.Printf("Backend: %s", upStyle.Render(health.Status))
				if health.Version != "" {
					fmt.Printf(" (v%s)", health.Version)
				}
				fmt.Println()

				if overview, err := client.AnalyticsOverview(cmd.Context()); err == nil {
					fmt.Printf("Market:  %d tokens, %s 24h volume\n",
						overview.TotalTokens, formatCompact(overview.TotalVolume24h))
				}
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
