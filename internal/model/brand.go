// Package model defines the record types shared across the prediction pipeline.
package model

import "time"

// Brand is a retailer whose promotional emails are tracked.
type Brand struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	Active             bool      `json:"active"`
	ExcludedCategories []string  `json:"excluded_categories,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Day truncates t to a UTC calendar date. All sale and prediction dates are
// stored midnight-UTC so day arithmetic is exact.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from a to b (negative when b is earlier).
// Both arguments are expected to be midnight-UTC dates.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
