package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"aura/pkg/database"
	"aura/pkg/models"
)

var ErrNotFound = errors.New("note not found")

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const columns = `id, user_id, title, content, is_favorite, created_at, updated_at`

func scan(row interface{ Scan(...any) error }) (*models.Note, error) {
	var n models.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.IsFavorite, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) Create(ctx context.Context, n *models.Note) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notes (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Content, n.IsFavorite, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, n *models.Note) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, is_favorite = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, n.Title, n.Content, n.IsFavorite, n.UpdatedAt, n.ID, n.UserID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if c, _ := res.RowsAffected(); c == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFavorite flips the flag and returns the new value.
func (r *Repo) ToggleFavorite(ctx context.Context, userID, id string, now time.Time) (bool, error) {
	var fav bool
	err := r.DB.QueryRowContext(ctx, `
		UPDATE notes SET is_favorite = NOT is_favorite, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING is_favorite
	`, now, id, userID).Scan(&fav)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return fav, nil
}

func (r *Repo) Get(ctx context.Context, userID, id string) (*models.Note, error) {
	n, err := scan(r.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

type ListQuery struct {
	Q         string
	Favorites bool
}

// List returns favorites first, then most recently updated.
func (r *Repo) List(ctx context.Context, userID string, q ListQuery) ([]models.Note, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if s := strings.ToLower(strings.TrimSpace(q.Q)); s != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(content) LIKE ?)")
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	if q.Favorites {
		where = append(where, "is_favorite = ?")
		args = append(args, true)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM notes WHERE `+strings.Join(where, " AND ")+
			` ORDER BY is_favorite DESC, updated_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if c, _ := res.RowsAffected(); c == 0 {
		return ErrNotFound
	}
	return nil
}
