package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eaili5/eaili5/internal/api"
	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/pricefeed"
	"github.com/eaili5/eaili5/internal/ws"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Browse and watch token prices",
	}

	cmd.AddCommand(newTokensListCmd())
	cmd.AddCommand(newTokensShowCmd())
	cmd.AddCommand(newTokensWatchCmd())
	return cmd
}

func newTokensListCmd() *cobra.Command {
	var (
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tokens from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			client := api.New(cfg.API, log)

			tokens, err := client.Tokens(cmd.Context(), api.TokensParams{
				Category: category,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			fmt.Print(renderTokenTable(tokens))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by category (e.g. meme, defi)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max tokens to list")
	return cmd
}

func newTokensShowCmd() *cobra.Command {
	var candles int

	cmd := &cobra.Command{
		Use:   "show <address>",
		Short: "Show token detail and recent price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			client := api.New(cfg.API, log)

			tok, err := client.Token(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%s)", tok.Name, tok.Symbol)))
			fmt.Printf("Address:    %s\n", tok.Address)
			fmt.Printf("Price:      %s  (%s 24h)\n", formatPrice(tok.Price), formatChange(tok.Change24h))
			fmt.Printf("Volume 24h: %s\n", formatCompact(tok.Volume24h))
			fmt.Printf("Market cap: %s\n", formatCompact(tok.MarketCap))
			fmt.Printf("Safety:     %s/100\n", formatSafety(tok.SafetyScore))

			bars, err := client.TokenOHLC(cmd.Context(), args[0])
			if err != nil {
				log.Warn().Err(err).Msg("price history unavailable")
				return nil
			}
			if len(bars) > candles {
				bars = bars[len(bars)-candles:]
			}
			if len(bars) > 0 {
				fmt.Println()
				fmt.Println(dimStyle.Render("recent candles (open / high / low / close)"))
				for _, c := range bars {
					ts := time.Unix(c.Timestamp, 0).Format("01-02 15:04")
					fmt.Printf("  %s  %s / %s / %s / %s\n", dimStyle.Render(ts),
						formatPrice(c.Open), formatPrice(c.High),
						formatPrice(c.Low), formatPrice(c.Close))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&candles, "candles", 12, "how many recent candles to show")
	return cmd
}

func newTokensWatchCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "watch [address...]",
		Short: "Stream live price updates",
		Long:  "Seeds the token book from the REST API, then streams live updates over WebSocket until interrupted. With addresses, subscribes to just those tokens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			apiClient := api.New(cfg.API, log)
			seed, err := apiClient.Tokens(ctx, api.TokensParams{Category: category})
			if err != nil {
				return fmt.Errorf("seeding token book: %w", err)
			}

			terminal := make(chan error, 1)
			feed := pricefeed.NewClient(pricefeed.Config{
				Endpoint:       cfg.Feed.Endpoint,
				InitialBackoff: cfg.Feed.InitialBackoff(),
				MaxBackoff:     cfg.Feed.MaxBackoff(),
				MaxAttempts:    cfg.Feed.MaxAttempts,
			}, &ws.GorillaDialer{}, pricefeed.Callbacks{
				OnUpdate: func(snap domain.TokenSnapshot) {
					fmt.Printf("%s %-8s %14s %s\n",
						dimStyle.Render(time.Now().Format("15:04:05")),
						snap.Symbol, formatPrice(snap.Price),
						formatChange(snap.Change24h))
				},
				OnStateChange: func(state pricefeed.ConnState) {
					fmt.Println(dimStyle.Render("feed: " + string(state)))
				},
				OnTerminal: func(err error) {
					terminal <- err
				},
			}, log)
			for _, snap := range seed {
				feed.Book().Seed(snap)
			}

			if err := feed.Connect(ctx); err != nil {
				log.Warn().Err(err).Msg("initial connect failed, retrying")
			}
			defer feed.Close()

			if len(args) > 0 {
				if err := feed.Subscribe(args...); err != nil {
					log.Warn().Err(err).Msg("subscribe failed")
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case err := <-terminal:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "seed the book from one category only")
	return cmd
}
