package models

import "time"

type WishlistItem struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Title          string    `json:"title"`
	ArtistName     string    `json:"artist_name,omitempty"`
	EstimatedPrice *float64  `json:"estimated_price,omitempty"`
	SourceURL      string    `json:"source_url,omitempty"`
	Priority       int       `json:"priority"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
