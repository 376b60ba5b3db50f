package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"inkpress/internal/articles"
	"inkpress/internal/config"
	"inkpress/internal/csrf"
	"inkpress/internal/db"
	"inkpress/internal/events"
	"inkpress/internal/images"
	"inkpress/internal/server"
	"inkpress/internal/topics"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the blog server",
	Long:  `Starts the inkpress blog server: JSON API, media file serving and the WebSocket event feed, backed by SQLite.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		if err := os.MkdirAll(cfg.Server.MediaDir, 0o755); err != nil {
			return fmt.Errorf("creating media dir: %w", err)
		}

		dbPath := filepath.Join(cfg.Server.DataDir, "inkpress.db")
		database, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			MediaDir: cfg.Server.MediaDir,
			AllowAll: cfg.Server.AllowAll,
		}, database)

		csrfStore := csrf.NewStore(24 * time.Hour)
		defer csrfStore.Close()
		hub := events.NewHub()

		registerAllRoutes(srv, database, csrfStore, hub, cfg.Server.MediaDir)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "inkpress server v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  Media: %s\n", cfg.Server.MediaDir)

		return srv.Start()
	},
}

// registerAllRoutes wires up all feature routes. Mutating endpoints sit
// behind the CSRF middleware; it passes GET/HEAD/OPTIONS through.
func registerAllRoutes(srv *server.Server, database *db.DB, csrfStore *csrf.Store, hub *events.Hub, mediaDir string) {
	r := srv.Router()

	csrf.RegisterRoutes(r, csrfStore)
	events.RegisterRoutes(r, hub)

	articleStore := articles.NewStore(database)
	imageStore := images.NewStore(database, mediaDir)
	topicStore := topics.NewStore(database)

	r.Group(func(r chi.Router) {
		r.Use(csrf.Require(csrfStore))
		articles.RegisterRoutes(r, articleStore, imageStore, hub)
		topics.RegisterRoutes(r, topicStore)
		images.RegisterRoutes(r, imageStore)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
