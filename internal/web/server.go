package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/g2commons/g2commons/internal/auth"
	"github.com/g2commons/g2commons/internal/config"
	"github.com/g2commons/g2commons/internal/fetch"
	"github.com/g2commons/g2commons/internal/limiter"
	"github.com/g2commons/g2commons/internal/logging"
	"github.com/g2commons/g2commons/internal/metrics"
	"github.com/g2commons/g2commons/internal/models"
	"github.com/g2commons/g2commons/internal/notify"
	"github.com/g2commons/g2commons/internal/proxy"
	"github.com/g2commons/g2commons/internal/session"
	"github.com/g2commons/g2commons/internal/upload"
)

// Server is the HTTP front of the application: authorization flows, gallery
// browsing, the image proxy and the upload pipeline, all keyed off the
// per-browser session.
type Server struct {
	router     *gin.Engine
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *metrics.Metrics
	creds      *auth.CredentialStore
	googleFlow *auth.GoogleFlow
	wikiFlow   *auth.WikiFlow
	bytes      *fetch.ByteFetcher
	imageProxy *proxy.Proxy
	notifier   *notify.Notifier
	uploads    *limiter.Limiter
	purger     *session.Purger
	httpServer *http.Server

	albumClient *fetch.RotatingClient

	// Fetcher and Commons construction is indirect so tests can point the
	// handlers at local servers.
	newPhotosFetcher func(client *http.Client) fetch.Fetcher
	newDriveFetcher  func(ctx context.Context, client *http.Client) (fetch.Fetcher, error)
	newAlbumFetcher  func(albumURL string) (fetch.Fetcher, error)
	newCommons       func(cred *models.WikiCredential) upload.Commons
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer wires the full handler stack.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	m := metrics.NewMetrics("g2commons")
	credStore := auth.NewCredentialStore()
	byteFetcher := fetch.NewByteFetcher(cfg.Upload.Timeout, 0)

	s := &Server{
		router:      gin.New(),
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		creds:       credStore,
		googleFlow:  auth.NewGoogleFlow(cfg.Google, credStore),
		wikiFlow:    auth.NewWikiFlow(cfg.Wiki, credStore),
		bytes:       byteFetcher,
		imageProxy:  proxy.New(byteFetcher, logger, m),
		notifier:    notify.New(cfg.Telegram),
		uploads:     limiter.New(cfg.Upload.MaxConcurrent, m),
		albumClient: fetch.NewRotatingClient(cfg.Fetch.BrowserTLS, cfg.Fetch.Timeout),
	}

	s.newPhotosFetcher = func(client *http.Client) fetch.Fetcher {
		return fetch.NewPhotosFetcher(client, cfg.Fetch.PageSize)
	}
	s.newDriveFetcher = func(ctx context.Context, client *http.Client) (fetch.Fetcher, error) {
		return fetch.NewDriveFetcher(ctx, client, cfg.Fetch.PageSize)
	}
	s.newAlbumFetcher = func(albumURL string) (fetch.Fetcher, error) {
		return fetch.NewAlbumFetcher(s.albumClient, albumURL)
	}
	s.newCommons = func(cred *models.WikiCredential) upload.Commons {
		return upload.NewClient(cfg.Wiki, cred, cfg.Upload.Timeout)
	}

	store, err := session.NewStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	if sqlStore, ok := store.(*session.SQLiteStore); ok {
		s.purger = session.NewPurger(sqlStore, cfg.Session.PurgeInterval, 0, logger, m)
		s.purger.Start()
	}
	sessionMW := session.Handler(cfg.Session.CookieName, store)

	s.router.Use(gin.Recovery())
	s.router.Use(metrics.Middleware(m, logger))
	s.router.Use(loggingMiddleware(logger))
	s.router.Use(sessionMW)

	s.setupRoutes()
	return s, nil
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.NewCorrelationID()
		}
		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoCtx(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHome)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.GET("/google/login", s.handleGoogleLogin)
	s.router.GET("/oauth2callback", s.handleGoogleCallback)
	s.router.GET("/wiki/login", s.handleWikiLogin)
	s.router.GET("/wiki/callback", s.handleWikiCallback)
	s.router.GET("/logout", s.handleLogout)

	gallery := s.router.Group("/gallery")
	{
		gallery.POST("/fetch", s.handleGalleryStart)
		gallery.GET("/fetch", s.handleGalleryMore)
		gallery.GET("/display", s.handleGalleryDisplay)
		gallery.GET("/image_proxy/:ref", s.handleImageProxy)
	}

	up := s.router.Group("/upload")
	{
		up.POST("/metadata", s.handleUploadSelect)
		up.POST("/save_metadata", s.handleSaveMetadata)
		up.POST("/run", s.handleUploadRun)
	}
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = NewHTTPServer(addr, s.router)

	s.logger.Info("server starting", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops background work.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.purger != nil {
		s.purger.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
