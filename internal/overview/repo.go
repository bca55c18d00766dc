package overview

import (
	"context"
	"fmt"

	"aura/pkg/database"
)

// Counts are the per-user totals shown on the dashboard.
type Counts struct {
	Artworks int `json:"artworks"`
	Contacts int `json:"contacts"`
	Notes    int `json:"notes"`
	Wishlist int `json:"wishlist"`
}

// Stat is one bucket of a grouped count.
type Stat struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Counts(ctx context.Context, userID string) (Counts, error) {
	var c Counts
	err := r.DB.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM artworks WHERE user_id = ?),
		(SELECT COUNT(*) FROM contacts WHERE user_id = ?),
		(SELECT COUNT(*) FROM notes WHERE user_id = ?),
		(SELECT COUNT(*) FROM wishlist_items WHERE user_id = ?)`,
		userID, userID, userID, userID).Scan(&c.Artworks, &c.Contacts, &c.Notes, &c.Wishlist)
	if err != nil {
		return Counts{}, fmt.Errorf("count user data: %w", err)
	}
	return c, nil
}

// LocationStats groups artworks by current location, largest first.
func (r *Repo) LocationStats(ctx context.Context, userID string) ([]Stat, error) {
	return r.stats(ctx, `SELECT current_location, COUNT(*) AS n FROM artworks
		WHERE user_id = ? GROUP BY current_location ORDER BY n DESC, current_location`, userID)
}

// ArtTypeStats returns the five most common art types. Untyped artworks are
// left out.
func (r *Repo) ArtTypeStats(ctx context.Context, userID string) ([]Stat, error) {
	return r.stats(ctx, `SELECT t.name, COUNT(*) AS n FROM artworks a
		JOIN art_types t ON t.id = a.art_type_id
		WHERE a.user_id = ? GROUP BY t.name ORDER BY n DESC, t.name LIMIT 5`, userID)
}

func (r *Repo) stats(ctx context.Context, query string, args ...any) ([]Stat, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	out := []Stat{}
	for rows.Next() {
		var s Stat
		if err := rows.Scan(&s.Label, &s.Count); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
