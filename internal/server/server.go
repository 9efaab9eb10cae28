// Package server exposes SyncService over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"modsync/internal/config"
	"modsync/internal/modsync"
)

const (
	// DefaultRequestTimeout bounds a single request, large uploads included.
	DefaultRequestTimeout = 10 * time.Minute

	// multipartOverhead is the slack on top of file_size_limit allowed for
	// multipart framing around an upload.
	multipartOverhead = 1 << 20

	shutdownTimeout = 30 * time.Second
)

// Options tunes a Server beyond what the config file holds.
type Options struct {
	Version        string        // reported by /hello
	RequestTimeout time.Duration // zero means DefaultRequestTimeout
}

// Server routes HTTP requests to a SyncService.
type Server struct {
	svc    *modsync.SyncService
	logger modsync.Logger
	cfg    config.ServerConfig
	opts   Options
	engine *gin.Engine
}

// New builds a Server and its routes.
func New(svc *modsync.SyncService, logger modsync.Logger, cfg config.ServerConfig, opts Options) *Server {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	s := &Server{svc: svc, logger: logger, cfg: cfg, opts: opts}
	s.engine = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.cfg.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Authorization", "Content-Type"},
			ExposeHeaders: []string{requestIDHeader},
		}))
	}
	r.Use(limitBody(s.cfg.FileSizeLimit + multipartOverhead))
	r.Use(timeout(s.opts.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/modpack", s.listModpacks)
	r.GET("/modpack/:modpack_id", s.getModpack)
	r.POST("/modpack/:modpack_id/sync", s.planSync)
	r.GET("/modpack/:modpack_id/changes", s.changes)
	r.GET("/modpack/:modpack_id/history", s.history)
	r.GET("/dl/hash/:hash", s.download)

	admin := r.Group("/", requireKey(s.cfg.MasterKey))
	{
		admin.POST("/hello", s.hello)
		admin.POST("/modpack/create", s.createModpack)
		admin.POST("/modpack/:modpack_id/update", s.updateModpack)
		admin.POST("/modpack/:modpack_id/delete", s.deleteModpack)
		admin.POST("/modpack/:modpack_id/publish", s.publish)
		admin.POST("/modpack/:modpack_id/upload", s.upload)
	}
	return r
}

// Run serves on the configured listen address until ctx is cancelled, then
// drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("server listening", "addr", s.cfg.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
