package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spacesedan/reelscore/internal/models"
)

const (
	MOVIES_FILE  = "movies.json"
	REVIEWS_FILE = "reviews.json"
)

// FileStore keeps movies and reviews in two indented JSON files. Every
// operation reads the files fresh and writes through a temp file + rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("[FileStore] failed to create data dir: %w", err)
	}
	slog.Info("[FileStore] Using flat-file storage", slog.String("dir", dir))
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) ListMovies(_ context.Context) ([]models.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var movies []models.Movie
	err := s.load(MOVIES_FILE, &movies)
	return movies, err
}

func (s *FileStore) GetMovie(_ context.Context, id int) (models.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var movies []models.Movie
	if err := s.load(MOVIES_FILE, &movies); err != nil {
		return models.Movie{}, err
	}
	for _, m := range movies {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Movie{}, fmt.Errorf("movie %d: %w", id, ErrNotFound)
}

func (s *FileStore) CreateMovie(_ context.Context, movie models.Movie) (models.Movie, error) {
	if err := movie.Validate(); err != nil {
		return models.Movie{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var movies []models.Movie
	if err := s.load(MOVIES_FILE, &movies); err != nil {
		return models.Movie{}, err
	}

	movie.ID = 1
	for _, m := range movies {
		if m.ID >= movie.ID {
			movie.ID = m.ID + 1
		}
	}

	movies = append(movies, movie)
	if err := s.save(MOVIES_FILE, movies); err != nil {
		return models.Movie{}, err
	}
	return movie, nil
}

func (s *FileStore) UpdateMovie(_ context.Context, id int, movie models.Movie) (models.Movie, error) {
	if err := movie.Validate(); err != nil {
		return models.Movie{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var movies []models.Movie
	if err := s.load(MOVIES_FILE, &movies); err != nil {
		return models.Movie{}, err
	}

	movie.ID = id
	for i, m := range movies {
		if m.ID == id {
			movies[i] = movie
			if err := s.save(MOVIES_FILE, movies); err != nil {
				return models.Movie{}, err
			}
			return movie, nil
		}
	}
	return models.Movie{}, fmt.Errorf("movie %d: %w", id, ErrNotFound)
}

func (s *FileStore) DeleteMovie(_ context.Context, id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var movies []models.Movie
	if err := s.load(MOVIES_FILE, &movies); err != nil {
		return 0, err
	}

	kept := movies[:0]
	for _, m := range movies {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(movies) {
		return 0, fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}
	if err := s.save(MOVIES_FILE, kept); err != nil {
		return 0, err
	}

	var reviews []models.Review
	if err := s.load(REVIEWS_FILE, &reviews); err != nil {
		return 0, err
	}
	keptReviews := reviews[:0]
	for _, r := range reviews {
		if r.MovieID != id {
			keptReviews = append(keptReviews, r)
		}
	}
	deleted := len(reviews) - len(keptReviews)
	if deleted > 0 {
		if err := s.save(REVIEWS_FILE, keptReviews); err != nil {
			return 0, err
		}
	}

	slog.Info("[FileStore] Deleted movie",
		slog.Int("movie_id", id),
		slog.Int("deleted_reviews", deleted))
	return deleted, nil
}

func (s *FileStore) ListReviews(_ context.Context) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reviews []models.Review
	err := s.load(REVIEWS_FILE, &reviews)
	return reviews, err
}

func (s *FileStore) ReviewsByMovie(_ context.Context, movieID int) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reviews []models.Review
	if err := s.load(REVIEWS_FILE, &reviews); err != nil {
		return nil, err
	}

	out := make([]models.Review, 0)
	for _, r := range reviews {
		if r.MovieID == movieID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileStore) CreateReview(_ context.Context, review models.Review) (models.Review, error) {
	if err := review.Validate(); err != nil {
		return models.Review{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var movies []models.Movie
	if err := s.load(MOVIES_FILE, &movies); err != nil {
		return models.Review{}, err
	}
	if !slices.ContainsFunc(movies, func(m models.Movie) bool { return m.ID == review.MovieID }) {
		return models.Review{}, fmt.Errorf("movie %d: %w", review.MovieID, ErrNotFound)
	}

	var reviews []models.Review
	if err := s.load(REVIEWS_FILE, &reviews); err != nil {
		return models.Review{}, err
	}

	review.ID = 1
	for _, r := range reviews {
		if r.ID >= review.ID {
			review.ID = r.ID + 1
		}
	}
	review.Stamp(s.now())

	reviews = append(reviews, review)
	if err := s.save(REVIEWS_FILE, reviews); err != nil {
		return models.Review{}, err
	}
	return review, nil
}

func (s *FileStore) DeleteReview(_ context.Context, id int) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reviews []models.Review
	if err := s.load(REVIEWS_FILE, &reviews); err != nil {
		return models.Review{}, err
	}

	for i, r := range reviews {
		if r.ID == id {
			reviews = append(reviews[:i], reviews[i+1:]...)
			if err := s.save(REVIEWS_FILE, reviews); err != nil {
				return models.Review{}, err
			}
			return r, nil
		}
	}
	return models.Review{}, fmt.Errorf("review %d: %w", id, ErrNotFound)
}

// load decodes name into v; a missing file leaves v empty.
func (s *FileStore) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("[FileStore] read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("[FileStore] decode %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("[FileStore] encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("[FileStore] write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("[FileStore] rename %s: %w", name, err)
	}
	return nil
}
