// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/divrinavyas/google-form-submitter/internal/config"
	"github.com/divrinavyas/google-form-submitter/internal/jobs"
	"github.com/divrinavyas/google-form-submitter/internal/submitter"
)

// Runner executes a full submission run. It is satisfied by
// *submitter.Submitter; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, formURL, datasetPath string, progress submitter.Progress) (*submitter.RunResult, error)
}

// Server exposes the submission pipeline over HTTP: asynchronous job
// submission with status polling, plus a synchronous variant.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	runner Runner
	store  *jobs.Store
	// jobSlots caps the number of background runs executing at once. Each run
	// owns a whole browser, so the default is one.
	jobSlots *semaphore.Weighted
}

// New builds a Server.
func New(cfg *config.Config, logger *zap.Logger, runner Runner, store *jobs.Store) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		runner:   runner,
		store:    store,
		jobSlots: semaphore.NewWeighted(int64(cfg.Server.MaxConcurrentJobs)),
	}
}

// Router assembles the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/api", s.handleHealth)
	router.POST("/submit-form", s.handleSubmitForm)
	router.GET("/status/:job_id", s.handleJobStatus)
	router.POST("/submit-form-sync", s.handleSubmitFormSync)

	return router
}

// Start serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled.",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
