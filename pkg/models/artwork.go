package models

import "time"

// Locations an artwork can currently be at.
var Locations = []string{
	"domicile", "stockage", "pretee", "restauration", "encadrement",
	"restitution", "vente", "vendue", "perdue", "volee", "autre",
}

type Artwork struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"-"`
	Title                string    `json:"title"`
	CreationYear         *int      `json:"creation_year,omitempty"`
	OriginCountry        string    `json:"origin_country,omitempty"`
	ArtTypeID            *int64    `json:"art_type_id,omitempty"`
	SupportID            *int64    `json:"support_id,omitempty"`
	TechniqueID          *int64    `json:"technique_id,omitempty"`
	Height               *float64  `json:"height,omitempty"`
	Width                *float64  `json:"width,omitempty"`
	Depth                *float64  `json:"depth,omitempty"`
	Weight               *float64  `json:"weight,omitempty"`
	AcquisitionDate      *string   `json:"acquisition_date,omitempty"`
	AcquisitionPlace     string    `json:"acquisition_place,omitempty"`
	Price                *float64  `json:"price,omitempty"`
	Provenance           string    `json:"provenance,omitempty"`
	IsFramed             bool      `json:"is_framed"`
	IsBorrowed           bool      `json:"is_borrowed"`
	IsSigned             bool      `json:"is_signed"`
	IsAcquired           bool      `json:"is_acquired"`
	CurrentLocation      string    `json:"current_location"`
	Owners               string    `json:"owners,omitempty"`
	ContextualReferences string    `json:"contextual_references,omitempty"`
	Notes                string    `json:"notes,omitempty"`
	LastExhibited        *string   `json:"last_exhibited,omitempty"`
	ArtistIDs            []int64   `json:"artist_ids"`
	CollectionIDs        []int64   `json:"collection_ids"`
	ExhibitionIDs        []int64   `json:"exhibition_ids"`
	Tags                 []string  `json:"tags"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DisplayTitle falls back to a placeholder for untitled works.
func (a *Artwork) DisplayTitle() string {
	if a.Title == "" {
		return "Sans titre"
	}
	return a.Title
}
