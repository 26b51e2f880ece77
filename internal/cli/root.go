// Package cli implements the clipfetch command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/delivery"
	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/platform"
	"github.com/clipfetch/clipfetch/internal/resolver"
	"github.com/clipfetch/clipfetch/internal/version"
)

var (
	output  string
	quality string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "clipfetch [url]",
	Short:   "Download videos and images from YouTube, Instagram, and Facebook",
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			return
		}
		if err := runDownload(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	rootCmd.Flags().StringVarP(&quality, "quality", "q", "", "preferred quality (e.g., 1080p, 720p, itag)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. The level comes from the config file
// unless --verbose forces debug.
func newLogger(cfg *config.Config) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if parsed, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

func runDownload(rawURL string) error {
	cfg := config.LoadOrDefault()
	log := newLogger(cfg)
	defer log.Sync()

	if !config.Exists() {
		fmt.Fprintln(os.Stderr, color.YellowString("No config file found. Run 'clipfetch init' to create one."))
	}

	cls, err := platform.Classify(rawURL)
	if err != nil {
		return err
	}

	client := fetch.NewClient(time.Duration(cfg.FetchTimeoutSeconds)*time.Second, log)
	// The CLI always downloads locally, so Facebook resolves in stream mode.
	registry := resolver.BuildRegistry(client, resolver.ModeStream, log)
	res := registry.For(cls.Kind)
	if res == nil {
		return platform.ErrUnsupportedPlatform
	}

	q := quality
	if q == "" {
		q = cfg.Quality
	}

	fmt.Printf("  %s Resolving %s media...\n", color.CyanString("→"), cls.Kind)
	media, err := res.Resolve(context.Background(), resolver.Request{
		RawURL:   rawURL,
		Quality:  q,
		Kind:     cls.Kind,
		VideoID:  cls.VideoID,
		Username: cls.Username,
	})
	if err != nil {
		return err
	}
	if media.Title != "" {
		fmt.Printf("  %s %s\n", color.New(color.Bold).Sprint("Title:"), media.Title)
	}

	outPath := output
	if outPath == "" {
		outPath = filepath.Join(cfg.OutputDir, media.Filename)
	}

	pipeline := delivery.New(cfg.CacheDir, client, log)
	if err := pipeline.SaveTo(context.Background(), media, outPath); err != nil {
		return err
	}

	fmt.Printf("  %s Saved to %s\n", color.GreenString("✓"), outPath)
	return nil
}
