package models

import "time"

// Reference is a named entity selectable from a form field: artists,
// collections, exhibitions, tags and the global catalogue kinds.
type Reference struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Scope     string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Artist struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	BirthYear   *int      `json:"birth_year,omitempty"`
	DeathYear   *int      `json:"death_year,omitempty"`
	Nationality string    `json:"nationality,omitempty"`
	Biography   string    `json:"biography,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Collection struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exhibition dates are YYYY-MM-DD strings, like the artwork dates.
type Exhibition struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	StartDate *string   `json:"start_date,omitempty"`
	EndDate   *string   `json:"end_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
