package reviews

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacesedan/reelscore/internal/db"
	"github.com/spacesedan/reelscore/internal/models"
	"github.com/spacesedan/reelscore/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lengthScorer scores by text length so results are easy to predict.
type lengthScorer struct {
	mu      sync.Mutex
	singles []string
	batches [][]string
	err     error
}

func scoreOf(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return sentiment.NeutralScore
	}
	return float64(len([]rune(text))%10) / 10
}

func (f *lengthScorer) Score(_ context.Context, text string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, text)
	if f.err != nil {
		return 0, f.err
	}
	return scoreOf(text), nil
}

func (f *lengthScorer) ScoreBatch(_ context.Context, texts []string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = scoreOf(t)
	}
	return out, nil
}

type memoryCache struct {
	mu          sync.Mutex
	summaries   map[int]models.MovieSentiment
	gets        int
	invalidated []int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{summaries: map[int]models.MovieSentiment{}}
}

func (c *memoryCache) GetSummary(_ context.Context, movieID int) (models.MovieSentiment, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	s, ok := c.summaries[movieID]
	return s, ok, nil
}

func (c *memoryCache) SetSummary(_ context.Context, summary models.MovieSentiment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries[summary.MovieID] = summary
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, movieID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.summaries, movieID)
	c.invalidated = append(c.invalidated, movieID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ReviewScored
	err    error
}

func (p *recordingPublisher) PublishReviewScored(_ context.Context, e models.ReviewScored) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	svc     *Service
	store   *db.FileStore
	scorer  *lengthScorer
	cache   *memoryCache
	events  *recordingPublisher
	healthy *atomic.Bool
	movie   models.Movie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.NewFileStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store:   store,
		scorer:  &lengthScorer{},
		cache:   newMemoryCache(),
		events:  &recordingPublisher{},
		healthy: &atomic.Bool{},
	}
	f.healthy.Store(true)
	f.svc = NewService(store, f.scorer, WithCache(f.cache, f.healthy), WithEvents(f.events))
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	f.movie, err = store.CreateMovie(context.Background(), models.Movie{
		Title: "기생충", ReleaseDate: "2019-05-30", Director: "봉준호", Genre: "드라마",
		PosterURL: "https://example.com/p.jpg",
	})
	require.NoError(t, err)
	return f
}

func TestCreateReviewScoresRawContentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	content := "**정말** [최고](https://example.com) ㅋㅋㅋ"
	created, err := f.svc.CreateReview(ctx, models.Review{
		MovieID: f.movie.ID,
		Author:  "관객",
		Content: content,
	})
	require.NoError(t, err)

	require.Len(t, f.scorer.singles, 1)
	assert.Equal(t, content, f.scorer.singles[0])
	require.NotNil(t, created.SentimentScore)
	assert.InDelta(t, scoreOf(content), *created.SentimentScore, 1e-12)
	assert.Equal(t, content, created.Content)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, created.ID, f.events.events[0].ReviewID)
	assert.Equal(t, string(sentiment.TierFor(*created.SentimentScore)), f.events.events[0].SentimentTier)
	assert.Contains(t, f.cache.invalidated, f.movie.ID)
}

func TestCreateReviewErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "a"})
	assert.ErrorIs(t, err, models.ErrInvalidRecord)

	_, err = f.svc.CreateReview(ctx, models.Review{MovieID: 99, Author: "a", Content: "좋다"})
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, f.scorer.singles)

	f.scorer.err = sentiment.ErrModelUnavailable
	_, err = f.svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "a", Content: "좋다"})
	assert.ErrorIs(t, err, sentiment.ErrModelUnavailable)

	stored, err := f.store.ListReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	_, err := f.svc.CreateReview(context.Background(), models.Review{MovieID: f.movie.ID, Author: "a", Content: "좋다"})
	assert.NoError(t, err)
}

func TestImportReviewsUsesOneBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.ImportReviews(ctx, []models.Review{
		{MovieID: f.movie.ID, Author: "a", Content: "재밌다"},
		{MovieID: f.movie.ID, Author: "b", Content: "   "},
		{MovieID: f.movie.ID, Author: "c", Content: "_지루했다_ ㅠㅠ"},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	assert.Empty(t, f.scorer.singles)
	require.Len(t, f.scorer.batches, 1)
	assert.Equal(t, []string{"재밌다", "   ", "_지루했다_ ㅠㅠ"}, f.scorer.batches[0])

	assert.InDelta(t, scoreOf("재밌다"), *created[0].SentimentScore, 1e-12)
	assert.InDelta(t, sentiment.NeutralScore, *created[1].SentimentScore, 1e-12)
	assert.InDelta(t, scoreOf("_지루했다_ ㅠㅠ"), *created[2].SentimentScore, 1e-12)
	assert.Equal(t, []int{1, 2, 3}, []int{created[0].ID, created[1].ID, created[2].ID})
	assert.Len(t, f.events.events, 3)
}

func TestImportReviewsValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportReviews(ctx, []models.Review{
		{MovieID: f.movie.ID, Author: "a", Content: "좋다"},
		{MovieID: 42, Author: "b", Content: "좋다"},
	})
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, f.scorer.batches)

	stored, err := f.store.ListReviews(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	created, err := f.svc.ImportReviews(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestMovieSentiment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.svc.MovieSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.Nil(t, summary.AverageSentiment)
	assert.Equal(t, NO_REVIEWS_MESSAGE, summary.Message)
	assert.Empty(t, summary.Tier)

	high, low := 0.9, 0.6
	for _, r := range []models.Review{
		{MovieID: f.movie.ID, Author: "a", Content: "x", SentimentScore: &high},
		{MovieID: f.movie.ID, Author: "b", Content: "y", SentimentScore: &low},
		{MovieID: f.movie.ID, Author: "c", Content: "z"},
	} {
		_, err := f.store.CreateReview(ctx, r)
		require.NoError(t, err)
	}
	require.NoError(t, f.cache.Invalidate(ctx, f.movie.ID))

	avg, err := f.svc.AverageSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 0.75, *avg, 1e-12)

	summary, err = f.svc.MovieSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ScoredReviews)
	assert.Equal(t, string(sentiment.TierPositive), summary.Tier)
	assert.Empty(t, f.scorer.singles)
	assert.Empty(t, f.scorer.batches)

	_, err = f.svc.MovieSentiment(ctx, 404)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestMovieSentimentReadThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cached := 0.1
	f.cache.summaries[f.movie.ID] = models.MovieSentiment{MovieID: f.movie.ID, AverageSentiment: &cached, ScoredReviews: 1}

	avg, err := f.svc.AverageSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, *avg, 1e-12)

	f.healthy.Store(false)
	avg, err = f.svc.AverageSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.Nil(t, avg)
	assert.InDelta(t, 0.1, *f.cache.summaries[f.movie.ID].AverageSentiment, 1e-12)

	f.healthy.Store(true)
	_, err = f.svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "a", Content: "좋다"})
	require.NoError(t, err)
	_, ok := f.cache.summaries[f.movie.ID]
	assert.False(t, ok)

	avg, err = f.svc.AverageSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.InDelta(t, scoreOf("좋다"), *avg, 1e-12)
	assert.InDelta(t, scoreOf("좋다"), *f.cache.summaries[f.movie.ID].AverageSentiment, 1e-12)
}

func TestDeletesInvalidateSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	review, err := f.svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "a", Content: "좋다"})
	require.NoError(t, err)

	f.cache.invalidated = nil
	require.NoError(t, f.svc.DeleteReview(ctx, review.ID))
	assert.Equal(t, []int{f.movie.ID}, f.cache.invalidated)

	assert.ErrorIs(t, f.svc.DeleteReview(ctx, review.ID), db.ErrNotFound)

	_, err = f.svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "b", Content: "별로"})
	require.NoError(t, err)

	f.cache.invalidated = nil
	deleted, err := f.svc.DeleteMovie(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []int{f.movie.ID}, f.cache.invalidated)

	_, err = f.svc.ReviewsByMovie(ctx, f.movie.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestScoredReviewMatchesDirectScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, content := range []string{"재밌어요ㅋㅋㅋ", "https://youtu.be/x", "1. 최고\n2. 별로", "#1 영화"} {
		created, err := f.svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "a", Content: content})
		require.NoError(t, err)

		direct, err := f.scorer.Score(ctx, content)
		require.NoError(t, err)
		assert.Equal(t, direct, *created.SentimentScore, content)
	}
}

// flakyStore fails CreateReview once failOn writes have been attempted and
// runs beforeList ahead of the first ReviewsByMovie.
type flakyStore struct {
	db.Store
	mu         sync.Mutex
	creates    int
	failOn     int
	beforeList func()
}

func (s *flakyStore) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	s.mu.Lock()
	s.creates++
	fail := s.failOn > 0 && s.creates == s.failOn
	s.mu.Unlock()
	if fail {
		return models.Review{}, errors.New("disk full")
	}
	return s.Store.CreateReview(ctx, r)
}

func (s *flakyStore) ReviewsByMovie(ctx context.Context, movieID int) ([]models.Review, error) {
	s.mu.Lock()
	hook := s.beforeList
	s.beforeList = nil
	s.mu.Unlock()

	reviews, err := s.Store.ReviewsByMovie(ctx, movieID)
	if hook != nil {
		hook()
	}
	return reviews, err
}

func TestImportFailureStillInvalidatesWrittenMovies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := &flakyStore{Store: f.store, failOn: 2}
	svc := NewService(store, f.scorer, WithCache(f.cache, f.healthy))

	before, err := svc.MovieSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.Nil(t, before.AverageSentiment)
	require.Contains(t, f.cache.summaries, f.movie.ID)

	created, err := svc.ImportReviews(ctx, []models.Review{
		{MovieID: f.movie.ID, Author: "a", Content: "재밌다"},
		{MovieID: f.movie.ID, Author: "b", Content: "별로"},
	})
	require.Error(t, err)
	require.Len(t, created, 1)

	assert.Contains(t, f.cache.invalidated, f.movie.ID)
	assert.NotContains(t, f.cache.summaries, f.movie.ID)

	after, err := svc.MovieSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	require.NotNil(t, after.AverageSentiment)
	assert.Equal(t, 1, after.ScoredReviews)
}

func TestSummaryComputedBeforeInvalidationIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := &flakyStore{Store: f.store}
	svc := NewService(store, f.scorer, WithCache(f.cache, f.healthy))

	// A review lands between the summary's store read and its cache write.
	store.beforeList = func() {
		_, err := svc.CreateReview(ctx, models.Review{MovieID: f.movie.ID, Author: "a", Content: "좋다"})
		require.NoError(t, err)
	}

	stale, err := svc.MovieSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	assert.Nil(t, stale.AverageSentiment)
	assert.NotContains(t, f.cache.summaries, f.movie.ID)

	fresh, err := svc.MovieSentiment(ctx, f.movie.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.AverageSentiment)
	assert.InDelta(t, scoreOf("좋다"), *fresh.AverageSentiment, 1e-12)
	require.Contains(t, f.cache.summaries, f.movie.ID)
	assert.Equal(t, 1, f.cache.summaries[f.movie.ID].ScoredReviews)
}
