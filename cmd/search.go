package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inkpress/internal/client"
	"inkpress/internal/config"
	"inkpress/internal/typeahead"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search published articles by title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		api, err := client.New(cfg.Client.ServerURL)
		if err != nil {
			return fmt.Errorf("creating client: %w", err)
		}

		query := strings.Join(args, " ")
		results, err := api.SearchArticles(context.Background(), query)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		if len(results) == 0 {
			fmt.Printf("No published articles match %q.\n", query)
			return nil
		}
		for _, r := range results {
			fmt.Printf("%s\t%s\n", r.Title, typeahead.ArticleURL(r.Slug))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
