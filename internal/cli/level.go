package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eaili5/eaili5/internal/store"
)

// levelNames maps learning levels to how the dashboard labels them.
var levelNames = map[int]string{
	1: "complete newcomer",
	2: "curious beginner",
	3: "getting the hang of it",
	4: "comfortable",
	5: "degen",
}

func newLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level [1-5]",
		Short: "Get or set your learning level",
		Long:  "The learning level (1-5) controls how much the AI explainer simplifies its answers. Without an argument, prints the current level.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(storePath(cfg), log)
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 0 {
				level, err := db.LearningLevel(cfg.Session.LearningLevel)
				if err != nil {
					return err
				}
				fmt.Printf("Learning level: %d (%s)\n", level, levelNames[level])
				return nil
			}

			level, err := strconv.Atoi(args[0])
			if err != nil || level < 1 || level > 5 {
				return fmt.Errorf("learning level must be 1-5")
			}
			if err := db.SetLearningLevel(level); err != nil {
				return err
			}
			fmt.Printf("Learning level set to %d (%s)\n", level, levelNames[level])
			return nil
		},
	}
}
