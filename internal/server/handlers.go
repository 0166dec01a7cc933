package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/reelscore/internal/models"
	"github.com/spacesedan/reelscore/internal/sentiment"
)

type ScoreRequest struct {
	Text *string `json:"text"`
}

type ScoreResponse struct {
	Score float64 `json:"score"`
	Tier  string  `json:"tier"`
}

type BatchRequest struct {
	Texts []*string `json:"texts"`
}

type BatchResponse struct {
	Scores []float64 `json:"scores"`
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, fmt.Errorf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (s *Server) health(c *gin.Context) {
	cache := "disabled"
	if h := s.deps.CacheHealthy; h != nil {
		cache = "unhealthy"
		if h.Load() {
			cache = "healthy"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model":        sentiment.ModelName,
		"model_loaded": s.deps.Engine.Loaded(),
		"cache":        cache,
	})
}

func (s *Server) listMovies(c *gin.Context) {
	movies, err := s.deps.Reviews.ListMovies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movies)
}

func (s *Server) getMovie(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	movie, err := s.deps.Reviews.GetMovie(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movie)
}

func (s *Server) createMovie(c *gin.Context) {
	var movie models.Movie
	if err := c.ShouldBindJSON(&movie); err != nil {
		badRequest(c, err)
		return
	}
	created, err := s.deps.Reviews.CreateMovie(c.Request.Context(), movie)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateMovie(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var movie models.Movie
	if err := c.ShouldBindJSON(&movie); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := s.deps.Reviews.UpdateMovie(c.Request.Context(), id, movie)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteMovie(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deleted, err := s.deps.Reviews.DeleteMovie(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movie_id": id, "deleted_reviews": deleted})
}

func (s *Server) movieReviews(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reviews, err := s.deps.Reviews.ReviewsByMovie(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (s *Server) movieSentiment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	summary, err := s.deps.Reviews.MovieSentiment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) listReviews(c *gin.Context) {
	reviews, err := s.deps.Reviews.ListReviews(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (s *Server) createReview(c *gin.Context) {
	var review models.Review
	if err := c.ShouldBindJSON(&review); err != nil {
		badRequest(c, err)
		return
	}
	// Scores are computed here, never accepted from clients.
	review.SentimentScore = nil

	created, err := s.deps.Reviews.CreateReview(c.Request.Context(), review)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deleteReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.deps.Reviews.DeleteReview(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) scoreText(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Text == nil {
		writeError(c, fmt.Errorf("%w: text is required", sentiment.ErrInvalidInput))
		return
	}

	score, err := s.deps.Engine.Score(c.Request.Context(), *req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScoreResponse{Score: score, Tier: string(sentiment.TierFor(score))})
}

func (s *Server) scoreBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Texts == nil {
		writeError(c, fmt.Errorf("%w: texts is required", sentiment.ErrInvalidInput))
		return
	}

	texts, err := sentiment.Texts(req.Texts)
	if err != nil {
		writeError(c, err)
		return
	}

	scores, err := s.deps.Engine.ScoreBatch(c.Request.Context(), texts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Scores: scores})
}
