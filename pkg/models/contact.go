package models

import "time"

var ContactTypes = []string{
	"galerie", "musee", "collectionneur", "expert",
	"restaurateur", "transporteur", "assureur", "autre",
}

type Contact struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Name        string    `json:"name"`
	ContactType string    `json:"contact_type"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Website     string    `json:"website,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
