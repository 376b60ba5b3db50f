package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "inkpress",
	Short: "A personal blogging platform with a synchronizing editor",
	Long: `inkpress is a single-binary personal blog: an HTTP server backed by
SQLite for articles, topics and uploaded images, plus a terminal
editor with autosave, inline-image offloading and as-you-type search.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".inkpress.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
