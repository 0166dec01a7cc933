package db

import (
	"context"
	"errors"

	"github.com/spacesedan/reelscore/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store persists movies and reviews. Implementations validate records at
// this boundary and assign ids as max(existing)+1.
type Store interface {
	ListMovies(ctx context.Context) ([]models.Movie, error)
	GetMovie(ctx context.Context, id int) (models.Movie, error)
	CreateMovie(ctx context.Context, movie models.Movie) (models.Movie, error)
	UpdateMovie(ctx context.Context, id int, movie models.Movie) (models.Movie, error)
	// DeleteMovie removes the movie and its reviews, returning how many
	// reviews went with it.
	DeleteMovie(ctx context.Context, id int) (int, error)

	ListReviews(ctx context.Context) ([]models.Review, error)
	ReviewsByMovie(ctx context.Context, movieID int) ([]models.Review, error)
	CreateReview(ctx context.Context, review models.Review) (models.Review, error)
	// DeleteReview returns the review it removed.
	DeleteReview(ctx context.Context, id int) (models.Review, error)
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*DynamoStore)(nil)
)
