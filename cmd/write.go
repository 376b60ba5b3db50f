package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"inkpress/internal/client"
	"inkpress/internal/config"
	"inkpress/internal/offload"
	"inkpress/internal/tui"
)

var writeTitle string

var writeCmd = &cobra.Command{
	Use:   "write [slug]",
	Short: "Open the terminal editor",
	Long: `Opens the terminal editor on an article. With a slug argument the
existing article is loaded; otherwise a new draft is created. Edits
autosave after a short pause, inline images are uploaded to the server,
and ctrl+p publishes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		api, err := client.New(cfg.Client.ServerURL)
		if err != nil {
			return fmt.Errorf("creating client: %w", err)
		}

		ctx := context.Background()
		if _, err := api.EnsureCSRF(ctx); err != nil {
			return fmt.Errorf("connecting to %s: %w", cfg.Client.ServerURL, err)
		}

		var article *client.Article
		if len(args) == 1 {
			article, err = api.GetArticleBySlug(ctx, args[0])
			if err != nil {
				return err
			}
		} else {
			article, err = api.CreateDraft(ctx, writeTitle)
			if err != nil {
				return err
			}
		}

		offloader := offload.New(api, cfg.Editor.UploadConcurrency)
		ed := tui.NewEditor(api, offloader, api, article, tui.Config{
			AutosaveDelay: time.Duration(cfg.Editor.AutosaveDelayMS) * time.Millisecond,
			SearchDelay:   time.Duration(cfg.Editor.SearchDelayMS) * time.Millisecond,
			ExcerptLength: cfg.Editor.ExcerptLength,
		})
		return ed.Run()
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeTitle, "title", "", "Title for a new draft")
	rootCmd.AddCommand(writeCmd)
}
