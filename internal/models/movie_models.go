package models

import (
	"errors"
	"strings"
)

var ErrInvalidRecord = errors.New("invalid record")

type Movie struct {
	ID          int    `json:"id" dynamodbav:"id"`
	Title       string `json:"title" binding:"required" dynamodbav:"title"`
	ReleaseDate string `json:"release_date" binding:"required" dynamodbav:"release_date"`
	Director    string `json:"director" binding:"required" dynamodbav:"director"`
	Genre       string `json:"genre" binding:"required" dynamodbav:"genre"`
	PosterURL   string `json:"poster_url" binding:"required" dynamodbav:"poster_url"`
}

// Validate checks the required fields before a movie is persisted.
func (m Movie) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"title":        m.Title,
		"release_date": m.ReleaseDate,
		"director":     m.Director,
		"genre":        m.Genre,
		"poster_url":   m.PosterURL,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	return missingFields(missing)
}
