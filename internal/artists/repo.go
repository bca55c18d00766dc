package artists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aura/internal/references"
	"aura/pkg/database"
	"aura/pkg/models"
)

// Summary is an artist row with how many artworks reference it.
type Summary struct {
	models.Artist
	Artworks int `json:"artworks"`
}

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const columns = `a.id, a.name, a.birth_year, a.death_year, a.nationality, a.biography, a.created_at,
	(SELECT COUNT(*) FROM artwork_artists aa WHERE aa.artist_id = a.id)`

func scan(row interface{ Scan(...any) error }) (*Summary, error) {
	var s Summary
	var birth, death sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &birth, &death, &s.Nationality, &s.Biography, &s.CreatedAt, &s.Artworks); err != nil {
		return nil, err
	}
	if birth.Valid {
		v := int(birth.Int64)
		s.BirthYear = &v
	}
	if death.Valid {
		v := int(death.Int64)
		s.DeathYear = &v
	}
	return &s, nil
}

func (r *Repo) Get(ctx context.Context, userID string, id int64) (*Summary, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM artists a WHERE a.scope = ? AND a.id = ?`, userID, id)
	s, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get artist: %w", err)
	}
	return s, nil
}

func (r *Repo) List(ctx context.Context, userID, q string, limit, offset int) ([]Summary, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := `a.scope = ?`
	args := []any{userID}
	if key := references.NameKey(q); key != "" {
		where += ` AND (a.name_key LIKE ? OR LOWER(a.nationality) LIKE ?)`
		args = append(args, "%"+key+"%", "%"+key+"%")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count artists: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM artists a WHERE `+where+` ORDER BY a.name_key LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan artist: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// Update renames the artist when a.Name is set and writes the
// biographical fields, both in one transaction. The rename goes through
// references.Repo so the uniqueness rules stay in one place.
func (r *Repo) Update(ctx context.Context, refs *references.Repo, userID string, a models.Artist) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update artist: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if a.Name != "" {
		if err = refs.Rename(ctx, tx, artistKind, userID, a.ID, a.Name); err != nil {
			return err
		}
	}
	if err = r.UpdateDetails(ctx, tx, userID, a); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update artist: %w", err)
	}
	return nil
}

// UpdateDetails writes the biographical fields only.
func (r *Repo) UpdateDetails(ctx context.Context, q database.Queryer, userID string, a models.Artist) error {
	res, err := q.ExecContext(ctx, `
		UPDATE artists SET birth_year = ?, death_year = ?, nationality = ?, biography = ?
		WHERE scope = ? AND id = ?
	`, a.BirthYear, a.DeathYear, a.Nationality, a.Biography, userID, a.ID)
	if err != nil {
		return fmt.Errorf("update artist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update artist rows: %w", err)
	}
	if n == 0 {
		return references.ErrNotFound
	}
	return nil
}
