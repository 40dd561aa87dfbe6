package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eaili5/eaili5/internal/api"
)

func newPortfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "View and simulate portfolios",
	}

	cmd.AddCommand(newPortfolioShowCmd())
	cmd.AddCommand(newPortfolioSimulateCmd())
	return cmd
}

func newPortfolioShowCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's simulated portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if user == "" {
				user = cfg.Session.Identity
			}

			client := api.New(cfg.API, log)
			pf, err := client.Portfolio(cmd.Context(), user)
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render("Portfolio: " + pf.UserID))
			for _, h := range pf.Holdings {
				sym := h.Symbol
				if sym == "" {
					sym = truncate(h.Address, 12)
				}
				fmt.Printf("  %-10s %s  (%s)\n", sym, h.Amount.String(),
					dimStyle.Render(formatCompact(h.ValueUSD)))
			}
			fmt.Printf("Total: %s", formatCompact(pf.TotalValue))
			if !pf.PnL24h.IsZero() {
				pct, _ := pf.PnL24h.Float64()
				fmt.Printf("  24h: %s", formatChange(pct))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (default from config identity)")
	return cmd
}

func newPortfolioSimulateCmd() *cobra.Command {
	var (
		holdings []string
		days     int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Project a hypothetical portfolio",
		Long:  "Simulates how a set of holdings would have performed. Holdings are given as --holding address=amount, repeatable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(holdings) == 0 {
				return fmt.Errorf("at least one --holding address=amount is required")
			}

			req := api.SimulationRequest{Days: days}
			for _, h := range holdings {
				addr, amountStr, ok := strings.Cut(h, "=")
				if !ok {
					return fmt.Errorf("invalid holding %q, expected address=amount", h)
				}
				amount, err := decimal.NewFromString(amountStr)
				if err != nil {
					return fmt.Errorf("invalid amount in %q: %w", h, err)
				}
				req.Holdings = append(req.Holdings, api.Holding{Address: addr, Amount: amount})
			}

			cfg := loadConfig()
			client := api.New(cfg.API, log)
			res, err := client.SimulatePortfolio(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render("Simulation"))
			fmt.Printf("Start: %s\n", formatCompact(res.StartValue))
			fmt.Printf("End:   %s  (%s)\n", formatCompact(res.EndValue), formatChange(res.ChangePct))
			for _, n := range res.Notes {
				fmt.Println(dimStyle.Render("  " + n))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&holdings, "holding", nil, "holding as address=amount (repeatable)")
	cmd.Flags().IntVar(&days, "days", 30, "days to simulate")
	return cmd
}
