package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/reelscore/internal/reviews"
)

const SHUTDOWN_TIMEOUT = 10 * time.Second

// ScoringEngine is the part of *sentiment.Engine the API uses.
type ScoringEngine interface {
	reviews.Scorer
	Loaded() bool
}

type Deps struct {
	Reviews *reviews.Service
	Engine  ScoringEngine
	// CacheHealthy is nil when no cache is configured.
	CacheHealthy *atomic.Bool
}

type Server struct {
	router *gin.Engine
	deps   Deps
}

func NewServer(deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(), cors())

	s := &Server{router: router, deps: deps}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	movies := s.router.Group("/movies")
	movies.GET("", s.listMovies)
	movies.POST("", s.createMovie)
	movies.GET("/:id", s.getMovie)
	movies.PUT("/:id", s.updateMovie)
	movies.DELETE("/:id", s.deleteMovie)
	movies.GET("/:id/reviews", s.movieReviews)
	movies.GET("/:id/sentiment", s.movieSentiment)

	reviewGroup := s.router.Group("/reviews")
	reviewGroup.GET("", s.listReviews)
	reviewGroup.POST("", s.createReview)
	reviewGroup.DELETE("/:id", s.deleteReview)

	scoring := s.router.Group("/sentiment")
	scoring.POST("/score", s.scoreText)
	scoring.POST("/batch", s.scoreBatch)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[Server] Listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
