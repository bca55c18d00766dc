package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"aura/pkg/database"
	"aura/pkg/models"
)

var ErrNotFound = errors.New("contact not found")

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const columns = `id, user_id, name, contact_type, email, phone, address, website, notes, created_at, updated_at`

func scan(row interface{ Scan(...any) error }) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.ContactType, &c.Email, &c.Phone,
		&c.Address, &c.Website, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Create(ctx context.Context, c *models.Contact) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO contacts (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Name, c.ContactType, c.Email, c.Phone, c.Address, c.Website, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, c *models.Contact) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE contacts SET name = ?, contact_type = ?, email = ?, phone = ?, address = ?,
			website = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, c.Name, c.ContactType, c.Email, c.Phone, c.Address, c.Website, c.Notes, c.UpdatedAt, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, userID, id string) (*models.Contact, error) {
	c, err := scan(r.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM contacts WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// List filters by contact type and a case-insensitive search over name,
// email and notes.
func (r *Repo) List(ctx context.Context, userID, contactType, q string) ([]models.Contact, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if contactType != "" {
		where = append(where, "contact_type = ?")
		args = append(args, contactType)
	}
	if s := strings.ToLower(strings.TrimSpace(q)); s != "" {
		like := "%" + s + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(notes) LIKE ?)")
		args = append(args, like, like, like)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+columns+` FROM contacts WHERE `+strings.Join(where, " AND ")+` ORDER BY LOWER(name), id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
