// Package server exposes the resolver and delivery pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipfetch/clipfetch/internal/config"
	"github.com/clipfetch/clipfetch/internal/delivery"
	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/platform"
	"github.com/clipfetch/clipfetch/internal/resolver"
	"github.com/clipfetch/clipfetch/internal/version"
)

// Envelope is the standard API response shape.
type Envelope struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Title       string `json:"title,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	// IsExternal marks a downloadUrl the client fetches directly from the
	// platform CDN instead of through this server.
	IsExternal bool   `json:"isExternal"`
	Error      string `json:"error,omitempty"`
}

// Server is the clipfetch HTTP server.
type Server struct {
	cfg      *config.Config
	port     int
	registry *resolver.Registry
	pipeline *delivery.Pipeline
	log      *zap.SugaredLogger
	engine   *gin.Engine
	server   *http.Server
}

// New creates a server from the given config. A zero port falls back to the
// configured one.
func New(cfg *config.Config, port int, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	client := fetch.NewClient(time.Duration(cfg.FetchTimeoutSeconds)*time.Second, log)
	mode := resolver.ModeRedirect
	if cfg.Facebook.DeliveryMode() == config.DeliveryStream {
		mode = resolver.ModeStream
	}

	return &Server{
		cfg:      cfg,
		port:     port,
		registry: resolver.BuildRegistry(client, mode, log),
		pipeline: delivery.New(cfg.CacheDir, client, log),
		log:      log.Named("server"),
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if err := os.MkdirAll(s.cfg.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	s.buildEngine()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
		// Proxied media streams can legitimately run for a long time.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infow("starting server", "port", s.port, "cache_dir", s.cfg.CacheDir)
	if s.cfg.Server.APIKey != "" {
		s.log.Infow("API key authentication enabled")
	}
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the routed engine, building it on first use.
func (s *Server) Handler() http.Handler {
	if s.engine == nil {
		gin.SetMode(gin.TestMode)
		s.buildEngine()
	}
	return s.engine
}

func (s *Server) buildEngine() {
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestIDMiddleware())
	s.engine.Use(s.loggingMiddleware())
	if s.cfg.Server.APIKey != "" {
		s.engine.Use(s.authMiddleware())
	}

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/resolve", s.handleResolve)
	api.GET("/download", s.handleDownload)
}

// Middleware

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != s.cfg.Server.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
				Success: false,
				Error:   "invalid or missing API key",
			})
			return
		}
		c.Next()
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleResolve classifies and resolves a URL but delivers nothing; the
// response tells the client where the media is and how to get it.
func (s *Server) handleResolve(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: "missing url parameter"})
		return
	}

	media, err := s.resolve(c, rawURL, c.Query("quality"))
	if err != nil {
		s.fail(c, err)
		return
	}
	// Resolution may pre-open the upstream stream; resolve is metadata-only.
	if media.Body != nil {
		media.Body.Close()
	}

	env := Envelope{
		Success:     true,
		FileName:    media.Filename,
		ContentType: media.ContentType,
		Title:       media.Title,
		Thumbnail:   media.Thumbnail,
	}
	if media.Mode == resolver.ModeRedirect {
		env.DownloadURL = media.SourceURL
		env.IsExternal = true
	} else {
		env.DownloadURL = "/api/download?url=" + url.QueryEscape(rawURL)
		if q := c.Query("quality"); q != "" {
			env.DownloadURL += "&quality=" + url.QueryEscape(q)
		}
	}
	c.JSON(http.StatusOK, env)
}

// handleDownload resolves a URL and delivers the media bytes in the same
// request. A media_url parameter bypasses platform extraction entirely.
func (s *Server) handleDownload(c *gin.Context) {
	var media *resolver.ResolvedMedia
	rawURL := c.Query("url")

	if mediaURL := c.Query("media_url"); mediaURL != "" {
		label := c.Query("type")
		if label == "" {
			label = "media"
		}
		media = resolver.FromMediaURL(mediaURL, label)
		if rawURL == "" {
			rawURL = mediaURL
		}
	} else {
		if rawURL == "" {
			c.JSON(http.StatusBadRequest, Envelope{Success: false, Error: "missing url parameter"})
			return
		}
		cls, err := platform.Classify(rawURL)
		if err != nil {
			s.fail(c, err)
			return
		}
		// A type hint, when present, must agree with what the URL classified as.
		if typ := c.Query("type"); typ != "" && typ != cls.Kind.String() {
			s.fail(c, fmt.Errorf("%w: url is %s, not %s", resolver.ErrInvalidURL, cls.Kind, typ))
			return
		}
		media, err = s.resolveClassified(c, cls, rawURL, c.Query("quality"))
		if err != nil {
			s.fail(c, err)
			return
		}
	}

	if err := s.pipeline.Serve(c.Writer, c.Request, media, rawURL); err != nil {
		if c.Writer.Written() {
			// Too late for a JSON error, the delivery already logged it.
			c.Abort()
			return
		}
		s.fail(c, err)
	}
}

func (s *Server) resolve(c *gin.Context, rawURL, quality string) (*resolver.ResolvedMedia, error) {
	cls, err := platform.Classify(rawURL)
	if err != nil {
		return nil, err
	}
	return s.resolveClassified(c, cls, rawURL, quality)
}

func (s *Server) resolveClassified(c *gin.Context, cls platform.Classification, rawURL, quality string) (*resolver.ResolvedMedia, error) {
	res := s.registry.For(cls.Kind)
	if res == nil {
		return nil, platform.ErrUnsupportedPlatform
	}

	if quality == "" {
		quality = s.cfg.Quality
	}
	return res.Resolve(c.Request.Context(), resolver.Request{
		RawURL:   rawURL,
		Quality:  quality,
		Kind:     cls.Kind,
		VideoID:  cls.VideoID,
		Username: cls.Username,
	})
}

// fail maps a resolution error to an HTTP status and writes the envelope.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, platform.ErrUnsupportedPlatform),
		errors.Is(err, platform.ErrInvalidVideoID),
		errors.Is(err, resolver.ErrInvalidURL):
		status = http.StatusBadRequest
	}
	s.log.Warnw("request failed",
		"status", status,
		"error", err,
		"request_id", c.GetString("request_id"),
	)
	c.JSON(status, Envelope{Success: false, Error: err.Error()})
}
