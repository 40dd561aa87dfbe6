package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eaili5/eaili5/internal/api"
)

func newTrendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trending",
		Short: "Show trending crypto topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			client := api.New(cfg.API, log)

			topics, err := client.TrendingTopics(cmd.Context())
			if err != nil {
				return err
			}

			for i, t := range topics {
				fmt.Printf("%2d. %-30s %s\n", i+1, t.Topic,
					dimStyle.Render(fmt.Sprintf("%d mentions", t.Mentions)))
			}
			return nil
		},
	}
}
