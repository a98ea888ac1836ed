package setup

import (
	"errors"
	"fmt"
	"os"

	"ventwave/cmd/ventwave/app"
	"ventwave/internal/config"

	"github.com/spf13/cobra"
)

var force bool

var Cmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a default ventwave configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := app.ConfigPath
		if path == "" {
			path = config.Path()
		}

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := config.Save(path, config.Defaults()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "set %s in your environment or secrets dir before running analyze\n", config.Defaults().Agent.Credential)
		return nil
	},
}

func init() {
	Cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
}
