package exhibitions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aura/internal/references"
	"aura/pkg/database"
	"aura/pkg/models"
)

var exhibitionKind = references.MustKind("exhibition")

// Summary is an exhibition with how many artworks were shown there.
type Summary struct {
	models.Exhibition
	Artworks int `json:"artworks"`
}

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const columns = `e.id, e.name, e.location, e.start_date, e.end_date, e.created_at,
	(SELECT COUNT(*) FROM artwork_exhibitions ae WHERE ae.exhibition_id = e.id)`

func scan(row interface{ Scan(...any) error }) (*Summary, error) {
	var s Summary
	var start, end sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &s.Location, &start, &end, &s.CreatedAt, &s.Artworks); err != nil {
		return nil, err
	}
	if start.Valid {
		s.StartDate = &start.String
	}
	if end.Valid {
		s.EndDate = &end.String
	}
	return &s, nil
}

func (r *Repo) Get(ctx context.Context, userID string, id int64) (*Summary, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM exhibitions e WHERE e.scope = ? AND e.id = ?`, userID, id)
	s, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exhibition: %w", err)
	}
	return s, nil
}

// List returns the most recent exhibitions first; undated ones come last.
func (r *Repo) List(ctx context.Context, userID, q string, limit, offset int) ([]Summary, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	where := `e.scope = ?`
	args := []any{userID}
	if key := references.NameKey(q); key != "" {
		where += ` AND (e.name_key LIKE ? OR LOWER(e.location) LIKE ?)`
		args = append(args, "%"+key+"%", "%"+key+"%")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM exhibitions e WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count exhibitions: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+columns+` FROM exhibitions e WHERE `+where+`
		ORDER BY CASE WHEN e.start_date IS NULL THEN 1 ELSE 0 END, e.start_date DESC, e.name_key
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list exhibitions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan exhibition: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// Update renames (when e.Name is set) and writes location and dates in one
// transaction.
func (r *Repo) Update(ctx context.Context, refs *references.Repo, userID string, e models.Exhibition) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update exhibition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if e.Name != "" {
		if err = refs.Rename(ctx, tx, exhibitionKind, userID, e.ID, e.Name); err != nil {
			return err
		}
	}
	if err = r.UpdateDetails(ctx, tx, userID, e); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update exhibition: %w", err)
	}
	return nil
}

func (r *Repo) UpdateDetails(ctx context.Context, q database.Queryer, userID string, e models.Exhibition) error {
	res, err := q.ExecContext(ctx,
		`UPDATE exhibitions SET location = ?, start_date = ?, end_date = ? WHERE scope = ? AND id = ?`,
		e.Location, e.StartDate, e.EndDate, userID, e.ID)
	if err != nil {
		return fmt.Errorf("update exhibition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update exhibition rows: %w", err)
	}
	if n == 0 {
		return references.ErrNotFound
	}
	return nil
}
