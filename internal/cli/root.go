package cli

import (
	"os"

	"github.com/eaili5/eaili5/internal/config"
	"github.com/eaili5/eaili5/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eaili5",
		Short: "eaili5 — crypto explained like you're five",
		Long:  "eaili5 is a crypto education dashboard client: streaming AI chat, real-time token prices, and portfolio simulation against the eaili5 backend.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.eaili5/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newTokensCmd())
	cmd.AddCommand(newPortfolioCmd())
	cmd.AddCommand(newWalletCmd())
	cmd.AddCommand(newTrendingCmd())
	cmd.AddCommand(newLevelCmd())

	return cmd
}

// loadConfig reads the config file, falling back to defaults when it
// does not exist yet.
func loadConfig() config.Config {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", paths.Config).Msg("config load failed, using defaults")
		}
		return config.Defaults()
	}
	return cfg
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
