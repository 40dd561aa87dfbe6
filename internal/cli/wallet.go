package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eaili5/eaili5/internal/api"
)

func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Connect or disconnect a wallet",
	}

	cmd.AddCommand(newWalletConnectCmd())
	cmd.AddCommand(newWalletDisconnectCmd())
	return cmd
}

func newWalletConnectCmd() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "connect [address]",
		Short: "Register a wallet with the backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			address := cfg.Wallet.Address
			if len(args) > 0 {
				address = args[0]
			}
			if address == "" {
				return fmt.Errorf("no wallet address given and none configured")
			}
			if network == "" {
				network = cfg.Wallet.Network
			}

			client := api.New(cfg.API, log)
			status, err := client.ConnectWallet(cmd.Context(), address, network)
			if err != nil {
				return err
			}

			if status.Connected {
				fmt.Printf("Connected %s on %s\n", status.Address, status.Network)
			} else {
				fmt.Println(warnStyle.Render("Backend did not confirm the connection."))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "wallet network (default from config)")
	return cmd
}

func newWalletDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect [address]",
		Short: "Remove a wallet from the backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			address := cfg.Wallet.Address
			if len(args) > 0 {
				address = args[0]
			}
			if address == "" {
				return fmt.Errorf("no wallet address given and none configured")
			}

			client := api.New(cfg.API, log)
			if err := client.DisconnectWallet(cmd.Context(), address); err != nil {
				return err
			}

			fmt.Printf("Disconnected %s\n", address)
			return nil
		},
	}
}
