package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spacesedan/reelscore/internal/db"
	"github.com/spacesedan/reelscore/internal/models"
	"github.com/spacesedan/reelscore/internal/sentiment"
)

const NO_REVIEWS_MESSAGE = "No reviews yet"

// Scorer is satisfied by *sentiment.Engine.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
	ScoreBatch(ctx context.Context, texts []string) ([]float64, error)
}

// SummaryCache stores derived per-movie summaries.
type SummaryCache interface {
	GetSummary(ctx context.Context, movieID int) (models.MovieSentiment, bool, error)
	SetSummary(ctx context.Context, summary models.MovieSentiment) error
	Invalidate(ctx context.Context, movieID int) error
}

type EventPublisher interface {
	PublishReviewScored(ctx context.Context, event models.ReviewScored) error
}

type Option func(*Service)

// WithCache enables the summary cache. While healthy is non-nil and false
// the cache is bypassed.
func WithCache(cache SummaryCache, healthy *atomic.Bool) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheHealthy = healthy
	}
}

func WithEvents(events EventPublisher) Option {
	return func(s *Service) {
		s.events = events
	}
}

// Service ties the store to the scoring engine. Every review is scored
// exactly once, when it is created.
type Service struct {
	store  db.Store
	scorer Scorer

	cache        SummaryCache
	cacheHealthy *atomic.Bool
	events       EventPublisher
	now          func() time.Time

	// generations counts invalidations per movie. A summary computed from a
	// read that started before an invalidation is never cached.
	genMu       sync.Mutex
	generations map[int]uint64
}

func NewService(store db.Store, scorer Scorer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		scorer:      scorer,
		now:         time.Now,
		generations: make(map[int]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListMovies(ctx context.Context) ([]models.Movie, error) {
	return s.store.ListMovies(ctx)
}

func (s *Service) GetMovie(ctx context.Context, id int) (models.Movie, error) {
	return s.store.GetMovie(ctx, id)
}

func (s *Service) CreateMovie(ctx context.Context, movie models.Movie) (models.Movie, error) {
	return s.store.CreateMovie(ctx, movie)
}

func (s *Service) UpdateMovie(ctx context.Context, id int, movie models.Movie) (models.Movie, error) {
	return s.store.UpdateMovie(ctx, id, movie)
}

// DeleteMovie removes the movie with its reviews and drops its summary.
func (s *Service) DeleteMovie(ctx context.Context, id int) (int, error) {
	deleted, err := s.store.DeleteMovie(ctx, id)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, id)
	return deleted, nil
}

func (s *Service) ListReviews(ctx context.Context) ([]models.Review, error) {
	return s.store.ListReviews(ctx)
}

func (s *Service) ReviewsByMovie(ctx context.Context, movieID int) ([]models.Review, error) {
	if _, err := s.store.GetMovie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.store.ReviewsByMovie(ctx, movieID)
}

// CreateReview scores the review content as given and persists it. A scoring
// failure aborts the create; the review is never stored with a stand-in score.
func (s *Service) CreateReview(ctx context.Context, review models.Review) (models.Review, error) {
	if err := review.Validate(); err != nil {
		return models.Review{}, err
	}
	if _, err := s.store.GetMovie(ctx, review.MovieID); err != nil {
		return models.Review{}, err
	}

	score, err := s.scorer.Score(ctx, review.Content)
	if err != nil {
		return models.Review{}, fmt.Errorf("[ReviewService] failed to score review: %w", err)
	}
	review.SentimentScore = &score

	created, err := s.store.CreateReview(ctx, review)
	if err != nil {
		return models.Review{}, err
	}

	s.invalidate(ctx, created.MovieID)
	s.publish(ctx, created)
	return created, nil
}

// ImportReviews creates reviews in bulk with one batched scoring pass. All
// records are validated and their movies checked before anything is stored.
// If a write fails midway, summaries of movies that already gained reviews
// are still invalidated.
func (s *Service) ImportReviews(ctx context.Context, batch []models.Review) ([]models.Review, error) {
	if len(batch) == 0 {
		return []models.Review{}, nil
	}

	known := make(map[int]bool)
	texts := make([]string, len(batch))
	for i, review := range batch {
		if err := review.Validate(); err != nil {
			return nil, fmt.Errorf("review %d: %w", i, err)
		}
		if !known[review.MovieID] {
			if _, err := s.store.GetMovie(ctx, review.MovieID); err != nil {
				return nil, fmt.Errorf("review %d: %w", i, err)
			}
			known[review.MovieID] = true
		}
		texts[i] = review.Content
	}

	scores, err := s.scorer.ScoreBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("[ReviewService] failed to score batch: %w", err)
	}

	touched := make(map[int]bool)
	defer func() {
		for movieID := range touched {
			s.invalidate(ctx, movieID)
		}
	}()

	created := make([]models.Review, 0, len(batch))
	for i, review := range batch {
		score := scores[i]
		review.SentimentScore = &score

		stored, err := s.store.CreateReview(ctx, review)
		if err != nil {
			return created, fmt.Errorf("review %d: %w", i, err)
		}
		touched[stored.MovieID] = true
		created = append(created, stored)
		s.publish(ctx, stored)
	}

	slog.Info("[ReviewService] Imported reviews",
		slog.Int("count", len(created)),
		slog.Int("movies", len(known)))
	return created, nil
}

func (s *Service) DeleteReview(ctx context.Context, id int) error {
	removed, err := s.store.DeleteReview(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate(ctx, removed.MovieID)
	return nil
}

// AverageSentiment is the mean stored score of the movie's reviews, or nil
// when none of them carries a score.
func (s *Service) AverageSentiment(ctx context.Context, movieID int) (*float64, error) {
	summary, err := s.MovieSentiment(ctx, movieID)
	if err != nil {
		return nil, err
	}
	return summary.AverageSentiment, nil
}

// MovieSentiment summarizes the stored scores of a movie's reviews. Reviews
// are never rescored here.
func (s *Service) MovieSentiment(ctx context.Context, movieID int) (models.MovieSentiment, error) {
	if _, err := s.store.GetMovie(ctx, movieID); err != nil {
		return models.MovieSentiment{}, err
	}

	if s.cacheUsable() {
		summary, ok, err := s.cache.GetSummary(ctx, movieID)
		if err != nil {
			slog.Warn("[ReviewService] Summary cache read failed",
				slog.Int("movie_id", movieID),
				slog.String("error", err.Error()))
		} else if ok {
			return summary, nil
		}
	}

	gen := s.generation(movieID)
	reviews, err := s.store.ReviewsByMovie(ctx, movieID)
	if err != nil {
		return models.MovieSentiment{}, err
	}

	scores := make([]*float64, len(reviews))
	scored := 0
	for i := range reviews {
		scores[i] = reviews[i].SentimentScore
		if scores[i] != nil {
			scored++
		}
	}

	summary := models.MovieSentiment{MovieID: movieID, ScoredReviews: scored}
	if avg, ok := sentiment.Average(scores); ok {
		summary.AverageSentiment = &avg
		summary.Tier = string(sentiment.TierFor(avg))
	} else {
		summary.Message = NO_REVIEWS_MESSAGE
	}

	if s.cacheUsable() {
		s.storeSummary(ctx, summary, gen)
	}
	return summary, nil
}

func (s *Service) generation(movieID int) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[movieID]
}

// storeSummary caches summary unless the movie was invalidated after gen was
// read. The check and the write share genMu with the counter bump in
// invalidate, so an invalidation either prevents the write or deletes it.
func (s *Service) storeSummary(ctx context.Context, summary models.MovieSentiment, gen uint64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	if s.generations[summary.MovieID] != gen {
		slog.Debug("[ReviewService] Skipping stale summary",
			slog.Int("movie_id", summary.MovieID))
		return
	}
	if err := s.cache.SetSummary(ctx, summary); err != nil {
		slog.Warn("[ReviewService] Summary cache write failed",
			slog.Int("movie_id", summary.MovieID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) cacheUsable() bool {
	return s.cache != nil && (s.cacheHealthy == nil || s.cacheHealthy.Load())
}

// invalidate ignores cache health: a stale summary must not survive a write.
func (s *Service) invalidate(ctx context.Context, movieID int) {
	if s.cache == nil {
		return
	}

	s.genMu.Lock()
	s.generations[movieID]++
	s.genMu.Unlock()

	if err := s.cache.Invalidate(ctx, movieID); err != nil {
		slog.Warn("[ReviewService] Summary cache invalidation failed",
			slog.Int("movie_id", movieID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) publish(ctx context.Context, review models.Review) {
	if s.events == nil || review.SentimentScore == nil {
		return
	}

	event := models.ReviewScored{
		ReviewID:       review.ID,
		MovieID:        review.MovieID,
		SentimentScore: *review.SentimentScore,
		SentimentTier:  string(sentiment.TierFor(*review.SentimentScore)),
		Timestamp:      s.now().UTC(),
	}
	if err := s.events.PublishReviewScored(ctx, event); err != nil {
		slog.Warn("[ReviewService] Failed to publish scored review",
			slog.Int("review_id", review.ID),
			slog.String("error", err.Error()))
	}
}
