package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eaili5/eaili5/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// settableKeys is the client's config schema: every dot path that set
// and unset accept. Writes outside the schema are rejected so a typo
// like "feed.endpont" fails loudly instead of landing as dead YAML.
var settableKeys = map[string]bool{
	"api.baseUrl":           true,
	"api.timeoutSeconds":    true,
	"api.apiKey":            true,
	"chat.endpoint":         true,
	"feed.endpoint":         true,
	"feed.initialBackoffMs": true,
	"feed.maxBackoffMs":     true,
	"feed.maxAttempts":      true,
	"session.identity":      true,
	"session.learningLevel": true,
	"wallet.address":        true,
	"wallet.network":        true,
	"store.path":            true,
	"logging.level":         true,
	"logging.style":         true,
	"logging.file":          true,
}

func checkSettableKey(key string) error {
	if settableKeys[key] {
		return nil
	}
	known := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		known = append(known, k)
	}
	sort.Strings(known)
	return fmt.Errorf("unknown config key %q, valid keys:\n  %s", key, strings.Join(known, "\n  "))
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value or section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			val, ok := config.GetValueAtPath(raw, path)
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}

			return printValue(val)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSettableKey(args[0]); err != nil {
				return err
			}
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			value := parseValue(args[1])
			config.SetValueAtPath(raw, path, value)

			for _, issue := range validateRaw(raw) {
				fmt.Printf("warning: %s\n", issue)
			}

			if err := config.SaveRaw(paths.Config, raw); err != nil {
				return err
			}

			fmt.Printf("Set %s = %v\n", args[0], value)
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSettableKey(args[0]); err != nil {
				return err
			}
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			if !config.UnsetValueAtPath(raw, path) {
				return fmt.Errorf("key %q not found", args[0])
			}

			if err := config.SaveRaw(paths.Config, raw); err != nil {
				return err
			}

			fmt.Printf("Unset %s\n", args[0])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(paths.Config)
		},
	}
}

// validateRaw round-trips the raw tree through the typed config and
// reports semantic issues before they are written to disk.
func validateRaw(raw map[string]any) []config.ValidationIssue {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil
	}
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil
	}
	return config.Validate(&cfg)
}

// printValue outputs a scalar directly and nested sections as YAML.
func printValue(v any) error {
	switch val := v.(type) {
	case string:
		fmt.Println(val)
	case map[string]any, []any:
		data, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		fmt.Println(val)
	}
	return nil
}

// parseValue interprets a CLI argument as bool, int, float, or string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
