package artworks

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

var ErrNotFound = errors.New("artwork not found")

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const artworkColumns = `id, user_id, title, creation_year, origin_country, art_type_id, support_id, technique_id,
	height, width, depth, weight, acquisition_date, acquisition_place, price, provenance,
	is_framed, is_borrowed, is_signed, is_acquired, current_location, owners,
	contextual_references, notes, last_exhibited, created_at, updated_at`

func scanArtwork(row interface{ Scan(...any) error }) (*models.Artwork, error) {
	var a models.Artwork
	var (
		year                        sql.NullInt64
		artType, support, technique sql.NullInt64
		h, w, d, wt, price          sql.NullFloat64
		acqDate, lastExhibited      sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &year, &a.OriginCountry, &artType, &support, &technique,
		&h, &w, &d, &wt, &acqDate, &a.AcquisitionPlace, &price, &a.Provenance,
		&a.IsFramed, &a.IsBorrowed, &a.IsSigned, &a.IsAcquired, &a.CurrentLocation, &a.Owners,
		&a.ContextualReferences, &a.Notes, &lastExhibited, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		a.CreationYear = &y
	}
	a.ArtTypeID = nullInt(artType)
	a.SupportID = nullInt(support)
	a.TechniqueID = nullInt(technique)
	a.Height, a.Width, a.Depth, a.Weight = nullFloat(h), nullFloat(w), nullFloat(d), nullFloat(wt)
	a.Price = nullFloat(price)
	a.AcquisitionDate = nullString(acqDate)
	a.LastExhibited = nullString(lastExhibited)
	a.ArtistIDs, a.CollectionIDs, a.ExhibitionIDs, a.Tags = []int64{}, []int64{}, []int64{}, []string{}
	return &a, nil
}

// Create stores a and its links in one transaction. tagIDs are already
// resolved tag references.
func (r *Repo) Create(ctx context.Context, a *models.Artwork, tagIDs []int64) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create artwork: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artworks (`+artworkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Title, a.CreationYear, a.OriginCountry, a.ArtTypeID, a.SupportID, a.TechniqueID,
		a.Height, a.Width, a.Depth, a.Weight, a.AcquisitionDate, a.AcquisitionPlace, a.Price, a.Provenance,
		a.IsFramed, a.IsBorrowed, a.IsSigned, a.IsAcquired, a.CurrentLocation, a.Owners,
		a.ContextualReferences, a.Notes, a.LastExhibited, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert artwork: %w", err)
	}
	if err = writeLinks(ctx, tx, a.ID, a, tagIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create artwork: %w", err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, a *models.Artwork, tagIDs []int64) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update artwork: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE artworks SET
			title = ?, creation_year = ?, origin_country = ?, art_type_id = ?, support_id = ?, technique_id = ?,
			height = ?, width = ?, depth = ?, weight = ?, acquisition_date = ?, acquisition_place = ?,
			price = ?, provenance = ?, is_framed = ?, is_borrowed = ?, is_signed = ?, is_acquired = ?,
			current_location = ?, owners = ?, contextual_references = ?, notes = ?, last_exhibited = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`, a.Title, a.CreationYear, a.OriginCountry, a.ArtTypeID, a.SupportID, a.TechniqueID,
		a.Height, a.Width, a.Depth, a.Weight, a.AcquisitionDate, a.AcquisitionPlace,
		a.Price, a.Provenance, a.IsFramed, a.IsBorrowed, a.IsSigned, a.IsAcquired,
		a.CurrentLocation, a.Owners, a.ContextualReferences, a.Notes, a.LastExhibited,
		a.UpdatedAt, a.ID, a.UserID)
	if err != nil {
		return fmt.Errorf("update artwork: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update artwork rows: %w", err)
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}

	for _, l := range links {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+l.table+` WHERE artwork_id = ?`, a.ID); err != nil {
			return fmt.Errorf("clear %s: %w", l.table, err)
		}
	}
	if err = writeLinks(ctx, tx, a.ID, a, tagIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update artwork: %w", err)
	}
	return nil
}

type link struct {
	table  string
	column string
}

var (
	artistLink     = link{"artwork_artists", "artist_id"}
	collectionLink = link{"artwork_collections", "collection_id"}
	exhibitionLink = link{"artwork_exhibitions", "exhibition_id"}
	tagLink        = link{"artwork_tags", "tag_id"}
	links          = []link{artistLink, collectionLink, exhibitionLink, tagLink}
)

func writeLinks(ctx context.Context, tx *database.Tx, artworkID string, a *models.Artwork, tagIDs []int64) error {
	sets := []struct {
		l   link
		ids []int64
	}{
		{artistLink, a.ArtistIDs},
		{collectionLink, a.CollectionIDs},
		{exhibitionLink, a.ExhibitionIDs},
		{tagLink, tagIDs},
	}
	for _, s := range sets {
		for _, id := range uniqueIDs(s.ids) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+s.l.table+` (artwork_id, `+s.l.column+`) VALUES (?, ?)`, artworkID, id); err != nil {
				return fmt.Errorf("link %s: %w", s.l.table, err)
			}
		}
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, userID, id string) (*models.Artwork, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+artworkColumns+` FROM artworks WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanArtwork(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get artwork: %w", err)
	}
	if err := r.loadLinks(ctx, []*models.Artwork{a}); err != nil {
		return nil, err
	}
	return a, nil
}

type ListQuery struct {
	Q            string
	Location     string
	ArtistID     int64
	CollectionID int64
	ExhibitionID int64
	Tag          string
	Limit        int
	Offset       int
}

func buildListSQL(userID string, q ListQuery) (where string, args []any) {
	conds := []string{"a.user_id = ?"}
	args = append(args, userID)

	if s := strings.ToLower(strings.TrimSpace(q.Q)); s != "" {
		like := "%" + s + "%"
		conds = append(conds, `(LOWER(a.title) LIKE ? OR LOWER(a.notes) LIKE ? OR LOWER(a.provenance) LIKE ?
			OR EXISTS (SELECT 1 FROM artwork_artists aa JOIN artists ar ON ar.id = aa.artist_id
				WHERE aa.artwork_id = a.id AND ar.name_key LIKE ?))`)
		args = append(args, like, like, like, like)
	}
	if q.Location != "" {
		conds = append(conds, "a.current_location = ?")
		args = append(args, q.Location)
	}
	if q.ArtistID > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM artwork_artists aa WHERE aa.artwork_id = a.id AND aa.artist_id = ?)")
		args = append(args, q.ArtistID)
	}
	if q.CollectionID > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM artwork_collections ac WHERE ac.artwork_id = a.id AND ac.collection_id = ?)")
		args = append(args, q.CollectionID)
	}
	if q.ExhibitionID > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM artwork_exhibitions ae WHERE ae.artwork_id = a.id AND ae.exhibition_id = ?)")
		args = append(args, q.ExhibitionID)
	}
	if t := strings.ToLower(strings.TrimSpace(q.Tag)); t != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM artwork_tags awt JOIN tags t ON t.id = awt.tag_id
			WHERE awt.artwork_id = a.id AND t.name_key = ?)`)
		args = append(args, t)
	}
	return strings.Join(conds, " AND "), args
}

func (r *Repo) List(ctx context.Context, userID string, q ListQuery) ([]*models.Artwork, int, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	where, args := buildListSQL(userID, q)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count artworks: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+prefixed("a.", artworkColumns)+` FROM artworks a WHERE `+where+` ORDER BY a.created_at DESC, a.id LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list artworks: %w", err)
	}
	defer rows.Close()

	items := []*models.Artwork{}
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan artwork: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list artworks rows: %w", err)
	}
	if err := r.loadLinks(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// loadLinks fills the relation fields of items with one query per relation.
func (r *Repo) loadLinks(ctx context.Context, items []*models.Artwork) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*models.Artwork, len(items))
	args := make([]any, 0, len(items))
	for _, a := range items {
		byID[a.ID] = a
		args = append(args, a.ID)
	}
	in := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")

	idLinks := []struct {
		l   link
		set func(a *models.Artwork, id int64)
	}{
		{artistLink, func(a *models.Artwork, id int64) { a.ArtistIDs = append(a.ArtistIDs, id) }},
		{collectionLink, func(a *models.Artwork, id int64) { a.CollectionIDs = append(a.CollectionIDs, id) }},
		{exhibitionLink, func(a *models.Artwork, id int64) { a.ExhibitionIDs = append(a.ExhibitionIDs, id) }},
	}
	for _, il := range idLinks {
		rows, err := r.DB.QueryContext(ctx,
			`SELECT artwork_id, `+il.l.column+` FROM `+il.l.table+` WHERE artwork_id IN (`+in+`) ORDER BY `+il.l.column, args...)
		if err != nil {
			return fmt.Errorf("load %s: %w", il.l.table, err)
		}
		for rows.Next() {
			var aid string
			var id int64
			if err := rows.Scan(&aid, &id); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", il.l.table, err)
			}
			if a := byID[aid]; a != nil {
				il.set(a, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT awt.artwork_id, t.name FROM artwork_tags awt JOIN tags t ON t.id = awt.tag_id
		WHERE awt.artwork_id IN (`+in+`) ORDER BY t.name_key`, args...)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var aid, name string
		if err := rows.Scan(&aid, &name); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		if a := byID[aid]; a != nil {
			a.Tags = append(a.Tags, name)
		}
	}
	return rows.Err()
}

func (r *Repo) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM artworks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete artwork: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SuggestionWindow is how long an artwork must have rested since its last
// exhibition before it is suggested again.
const SuggestionWindow = 180 * 24 * time.Hour

// Suggest picks a random artwork at home or in storage that has not been
// exhibited within SuggestionWindow of now.
func (r *Repo) Suggest(ctx context.Context, userID string, now time.Time) (*models.Artwork, error) {
	cutoff := now.Add(-SuggestionWindow).Format("2006-01-02")
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+artworkColumns+` FROM artworks
		WHERE user_id = ?
		  AND current_location IN ('domicile', 'stockage')
		  AND (last_exhibited IS NULL OR last_exhibited < ?)
		ORDER BY RANDOM()
		LIMIT 1
	`, userID, cutoff)
	a, err := scanArtwork(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("suggest artwork: %w", err)
	}
	if err := r.loadLinks(ctx, []*models.Artwork{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// ForExport streams every artwork of userID to fn in creation order.
func (r *Repo) ForExport(ctx context.Context, userID string, fn func(*models.Artwork) error) error {
	offset := 0
	for {
		items, _, err := r.List(ctx, userID, ListQuery{Limit: 100, Offset: offset})
		if err != nil {
			return err
		}
		for _, a := range items {
			if err := fn(a); err != nil {
				return err
			}
		}
		if len(items) < 100 {
			return nil
		}
		offset += len(items)
	}
}

func prefixed(p, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = p + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
