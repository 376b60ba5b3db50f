package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"inkpress/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize inkpress configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure your blog and writes a .inkpress.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		if err := cfg.Save(cfgFile); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
