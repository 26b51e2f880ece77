package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/server"
)

var (
	servePort     int
	serveCacheDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP download server",
	Long: `Start an HTTP server that resolves and delivers media via API.

Examples:
  clipfetch serve          # Start server on port 8080
  clipfetch serve -p 9000  # Start server on port 9000

API Endpoints:
  GET /api/health          # Health check
  GET /api/resolve         # Resolve a URL to media metadata
  GET /api/download        # Resolve and deliver the media bytes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	serveCmd.Flags().StringVar(&serveCacheDir, "cache", "", "media cache directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.LoadOrDefault()
	if serveCacheDir != "" {
		cfg.CacheDir = serveCacheDir
	}
	log := newLogger(cfg)
	defer log.Sync()

	srv := server.New(cfg, servePort, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Infow("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
