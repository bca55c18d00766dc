package collections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aura/internal/references"
	"aura/pkg/database"
	"aura/pkg/models"
)

var collectionKind = references.MustKind("collection")

// Summary is a collection row with how many artworks belong to it.
type Summary struct {
	models.Collection
	Artworks int `json:"artworks"`
}

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const columns = `c.id, c.name, c.description, c.created_at,
	(SELECT COUNT(*) FROM artwork_collections ac WHERE ac.collection_id = c.id)`

func scan(row interface{ Scan(...any) error }) (*Summary, error) {
	var s Summary
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.Artworks); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Get(ctx context.Context, userID string, id int64) (*Summary, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM collections c WHERE c.scope = ? AND c.id = ?`, userID, id)
	s, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return s, nil
}

// List matches q against the name and the description.
func (r *Repo) List(ctx context.Context, userID, q string, limit, offset int) ([]Summary, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	where := `c.scope = ?`
	args := []any{userID}
	if key := references.NameKey(q); key != "" {
		where += ` AND (c.name_key LIKE ? OR LOWER(c.description) LIKE ?)`
		args = append(args, "%"+key+"%", "%"+key+"%")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections c WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count collections: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM collections c WHERE `+where+` ORDER BY c.name_key LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// Update renames (when c.Name is set) and rewrites the description in one
// transaction.
func (r *Repo) Update(ctx context.Context, refs *references.Repo, userID string, c models.Collection) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update collection: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if c.Name != "" {
		if err = refs.Rename(ctx, tx, collectionKind, userID, c.ID, c.Name); err != nil {
			return err
		}
	}
	if err = r.setDescription(ctx, tx, userID, c.ID, c.Description); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update collection: %w", err)
	}
	return nil
}

func (r *Repo) setDescription(ctx context.Context, q database.Queryer, userID string, id int64, desc string) error {
	res, err := q.ExecContext(ctx, `UPDATE collections SET description = ? WHERE scope = ? AND id = ?`, desc, userID, id)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collection rows: %w", err)
	}
	if n == 0 {
		return references.ErrNotFound
	}
	return nil
}
