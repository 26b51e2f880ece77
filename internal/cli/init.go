package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipfetch/clipfetch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the clipfetch config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists() {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
		} else if err := config.Save(config.DefaultConfig()); err != nil {
			return err
		}

		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
