package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CreatedAtLayout is the timestamp format stored on reviews.
const CreatedAtLayout = "2006-01-02 15:04:05"

type Review struct {
	ID       int    `json:"id" dynamodbav:"id"`
	MovieID  int    `json:"movie_id" binding:"required" dynamodbav:"movie_id"`
	Author   string `json:"author" binding:"required" dynamodbav:"author"`
	Content  string `json:"content" binding:"required" dynamodbav:"content"`
	// SentimentScore is set once when the review is created and never recomputed.
	SentimentScore *float64 `json:"sentiment_score" dynamodbav:"sentiment_score,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty" dynamodbav:"created_at"`
}

func (r Review) Validate() error {
	var missing []string
	if r.MovieID <= 0 {
		missing = append(missing, "movie_id")
	}
	if strings.TrimSpace(r.Author) == "" {
		missing = append(missing, "author")
	}
	if r.Content == "" {
		missing = append(missing, "content")
	}
	return missingFields(missing)
}

// Stamp sets CreatedAt from t.
func (r *Review) Stamp(t time.Time) {
	r.CreatedAt = t.Format(CreatedAtLayout)
}

// ReviewScored is published after a review has been scored and stored.
type ReviewScored struct {
	ReviewID       int       `json:"review_id"`
	MovieID        int       `json:"movie_id"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentTier  string    `json:"sentiment_tier"`
	Timestamp      time.Time `json:"timestamp"`
}

// MovieSentiment is the derived per-movie summary; AverageSentiment is nil
// when no review of the movie carries a score.
type MovieSentiment struct {
	MovieID          int      `json:"movie_id"`
	AverageSentiment *float64 `json:"average_sentiment"`
	Tier             string   `json:"tier,omitempty"`
	ScoredReviews    int      `json:"scored_reviews"`
	Message          string   `json:"message,omitempty"`
}

func missingFields(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
}
