package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"docflow/internal/generate"
	"docflow/internal/ingest"
	"docflow/internal/metrics"
	"docflow/internal/rag"
	"docflow/internal/session"
)

// Resetter empties the shared vector index.
type Resetter interface {
	Reset(ctx context.Context) error
}

type Deps struct {
	QA        rag.Deps
	Generator *generate.Chain
	Pipeline  *ingest.Pipeline
	Sessions  session.Store
	Index     Resetter
	Metrics   *metrics.Metrics

	CookieName  string
	MaxUploadMB int
}

// Server is the HTTP surface over the document QA core
type Server struct {
	echo   *echo.Echo
	deps   Deps
	locker *session.Locker
}

func New(deps Deps) *Server {
	if deps.CookieName == "" {
		deps.CookieName = "docflow_session"
	}
	if deps.MaxUploadMB <= 0 {
		deps.MaxUploadMB = 32
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewMemoryStore(0)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, deps: deps, locker: session.NewLocker()}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	// session routes; unmatched paths never reach withSession
	e.POST("/upload", s.upload, middleware.BodyLimit(bodyLimit(deps.MaxUploadMB)), s.withSession)
	e.GET("/upload-meta", s.uploadMeta, s.withSession)
	e.POST("/chat", s.chat, s.withSession)
	e.GET("/chat/history", s.history, s.withSession)
	e.DELETE("/chat/history", s.clearHistory, s.withSession)
	e.POST("/generate", s.generate, s.withSession)
	e.POST("/reset", s.reset, s.withSession)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

func bodyLimit(mb int) string {
	return strconv.Itoa(mb) + "M"
}
