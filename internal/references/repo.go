package references

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

var (
	ErrNotFound = errors.New("reference not found")
	ErrConflict = errors.New("a reference with this name already exists")
)

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

// Table names come from the fixed kind registry, never from input.
const refColumns = `id, scope, name, created_at`

func scanRef(k Kind, row interface{ Scan(...any) error }) (*models.Reference, error) {
	ref := models.Reference{Kind: k.Name}
	if err := row.Scan(&ref.ID, &ref.Scope, &ref.Name, &ref.CreatedAt); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *Repo) FindByKey(ctx context.Context, k Kind, scope, key string) (*models.Reference, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+refColumns+` FROM `+k.Table+` WHERE scope = ? AND name_key = ?`, scope, key)
	ref, err := scanRef(k, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s: %w", k.Name, err)
	}
	return ref, nil
}

// Insert returns the raw driver error on constraint violations so callers
// can tell a lost race from a real failure.
func (r *Repo) Insert(ctx context.Context, k Kind, scope, name string) (*models.Reference, error) {
	now := time.Now().UTC()
	var id int64
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO `+k.Table+` (scope, name, name_key, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		scope, name, NameKey(name), now).Scan(&id)
	if err != nil {
		return nil, err
	}
	return &models.Reference{ID: id, Kind: k.Name, Scope: scope, Name: name, CreatedAt: now}, nil
}

func (r *Repo) Get(ctx context.Context, k Kind, scope string, id int64) (*models.Reference, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+refColumns+` FROM `+k.Table+` WHERE scope = ? AND id = ?`, scope, id)
	ref, err := scanRef(k, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", k.Name, err)
	}
	return ref, nil
}

type ListQuery struct {
	Q     string
	Limit int
}

func (r *Repo) List(ctx context.Context, k Kind, scope string, q ListQuery) ([]models.Reference, error) {
	limit := clampLimit(q.Limit, 50, 500)
	where := []string{"scope = ?"}
	args := []any{scope}
	if term := NameKey(q.Q); term != "" {
		where = append(where, `name_key LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(term)+"%")
	}
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+refColumns+` FROM `+k.Table+` WHERE `+strings.Join(where, " AND ")+` ORDER BY name_key LIMIT ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k.Name, err)
	}
	defer rows.Close()

	out := []models.Reference{}
	for rows.Next() {
		ref, err := scanRef(k, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", k.Name, err)
		}
		out = append(out, *ref)
	}
	return out, rows.Err()
}

// SuggestTags returns tag names containing term, prefix matches first.
func (r *Repo) SuggestTags(ctx context.Context, scope, term string, limit int) ([]string, error) {
	key := escapeLike(NameKey(term))
	rows, err := r.DB.QueryContext(ctx, `
		SELECT name FROM tags
		WHERE scope = ? AND name_key LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN name_key LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, name_key
		LIMIT ?
	`, scope, "%"+key+"%", key+"%", clampLimit(limit, 20, 100))
	if err != nil {
		return nil, fmt.Errorf("suggest tags: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Rename changes a reference's display name; ErrConflict when another
// reference in the same scope already uses it. q lets callers rename inside
// their own transaction.
func (r *Repo) Rename(ctx context.Context, q database.Queryer, k Kind, scope string, id int64, name string) error {
	if q == nil {
		q = r.DB
	}
	res, err := q.ExecContext(ctx,
		`UPDATE `+k.Table+` SET name = ?, name_key = ? WHERE scope = ? AND id = ?`,
		name, NameKey(name), scope, id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("rename %s: %w", k.Name, err)
	}
	return affected(res, k)
}

func (r *Repo) Delete(ctx context.Context, k Kind, scope string, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM `+k.Table+` WHERE scope = ? AND id = ?`, scope, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", k.Name, err)
	}
	return affected(res, k)
}

// CountOwned reports how many of ids exist in scope.
func (r *Repo) CountOwned(ctx context.Context, q database.Queryer, k Kind, scope string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, scope)
	for _, id := range ids {
		args = append(args, id)
	}
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+k.Table+` WHERE scope = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", k.Name, err)
	}
	return n, nil
}

func affected(res sql.Result, k Kind) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", k.Name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
