package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"inkpress/internal/client"
	"inkpress/internal/config"
	"inkpress/internal/editor"
	"inkpress/internal/importers"
	"inkpress/internal/offload"
)

var (
	importPublish bool
	importTopic   string
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import markdown files as articles",
	Long: `Imports markdown files as draft articles. Directories are expanded
using the include/exclude patterns from the config. Inline data: images
are uploaded to the server before the article is saved.`,
	Args: cobra.MinimumNArgs(1),
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

		docs, err := collectDocuments(args, cfg.Import.Include, cfg.Import.Exclude)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no markdown files matched")
		}

		offloader := offload.New(api, cfg.Editor.UploadConcurrency)

		bar := progressbar.NewOptions(len(docs),
			progressbar.OptionSetDescription("Importing articles"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		var failed int
		for _, doc := range docs {
			bar.Describe(doc.Path)
			if err := importOne(ctx, api, offloader, doc, cfg.Editor.ExcerptLength); err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "\n%s: %v\n", doc.Path, err)
			}
			bar.Add(1)
		}

		fmt.Printf("Imported %d article(s)", len(docs)-failed)
		if failed > 0 {
			fmt.Printf(", %d failed", failed)
		}
		fmt.Println()
		if failed > 0 {
			return fmt.Errorf("%d import(s) failed", failed)
		}
		return nil
	},
}

// collectDocuments renders every markdown file named by the arguments,
// expanding directories with the configured glob patterns.
func collectDocuments(paths, include, exclude []string) ([]*importers.Document, error) {
	var docs []*importers.Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		if !info.IsDir() {
			source, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			doc, err := importers.Render(filepath.Base(path), source)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		matched, err := importers.Discover(path, include, exclude)
		if err != nil {
			return nil, err
		}
		for _, rel := range matched {
			doc, err := importers.Load(path, rel)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// importOne creates a draft, offloads its inline images and saves it,
// optionally assigning a topic and publishing.
func importOne(ctx context.Context, api *client.Client, offloader *offload.Offloader, doc *importers.Document, excerptLen int) error {
	article, err := api.CreateDraft(ctx, doc.Title)
	if err != nil {
		return err
	}

	result, err := offloader.Rewrite(ctx, doc.HTML, article.ID)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d image(s) failed to upload", result.Failed)
	}

	saved, err := api.AutosaveArticle(ctx, &client.ArticleDraft{
		ID:      article.ID,
		Title:   doc.Title,
		Content: result.HTML,
		Excerpt: editor.Excerpt(result.HTML, excerptLen),
	})
	if err != nil {
		return err
	}
	if saved.Error != "" {
		return fmt.Errorf("saving: %s", saved.Error)
	}

	if importTopic != "" {
		if _, err := api.CreateTopic(ctx, article.ID, importTopic); err != nil {
			return err
		}
	}

	if importPublish {
		now := time.Now()
		if _, err := api.PublishArticle(ctx, client.ArticleSubmission{
			ID:          article.ID,
			Title:       doc.Title,
			Content:     result.HTML,
			Excerpt:     editor.Excerpt(result.HTML, excerptLen),
			ImageIDs:    result.UploadedIDs,
			PublishedAt: &now,
		}); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	importCmd.Flags().BoolVar(&importPublish, "publish", false, "Publish articles after import")
	importCmd.Flags().StringVar(&importTopic, "topic", "", "Assign imported articles to this topic")
	rootCmd.AddCommand(importCmd)
}
