// Package wishlist tracks artworks a collector would like to acquire.
package wishlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/validation"
	"aura/pkg/database"
	"aura/pkg/models"
)

const DefaultPriority = 2

var ErrNotFound = errors.New("wishlist item not found")

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Add(ctx context.Context, it *models.WishlistItem) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO wishlist_items (id, user_id, title, artist_name, estimated_price, source_url, priority, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.ID, it.UserID, it.Title, it.ArtistName, it.EstimatedPrice, it.SourceURL, it.Priority, it.Notes, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert wishlist item: %w", err)
	}
	return nil
}

// List orders by priority (1 is highest), then newest first.
func (r *Repo) List(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, title, artist_name, estimated_price, source_url, priority, notes, created_at
		FROM wishlist_items WHERE user_id = ?
		ORDER BY priority, created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	out := []models.WishlistItem{}
	for rows.Next() {
		var it models.WishlistItem
		var price sql.NullFloat64
		if err := rows.Scan(&it.ID, &it.UserID, &it.Title, &it.ArtistName, &price, &it.SourceURL,
			&it.Priority, &it.Notes, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		if price.Valid {
			p := price.Float64
			it.EstimatedPrice = &p
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Remove(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/wishlist", h.list)
	rg.POST("/wishlist", h.add)
	rg.DELETE("/wishlist/:id", h.remove)
}

type addReq struct {
	Title          string   `json:"title" validate:"required,max=300"`
	ArtistName     string   `json:"artist_name" validate:"max=200"`
	EstimatedPrice *float64 `json:"estimated_price" validate:"omitempty,gte=0"`
	SourceURL      string   `json:"source_url" validate:"omitempty,url"`
	Priority       int      `json:"priority" validate:"omitempty,min=1,max=3"`
	Notes          string   `json:"notes"`
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context(), auth.UserID(c))
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list wishlist failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) add(c *gin.Context) {
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Priority == 0 {
		req.Priority = DefaultPriority
	}
	it := &models.WishlistItem{
		ID:             uuid.NewString(),
		UserID:         auth.UserID(c),
		Title:          req.Title,
		ArtistName:     strings.TrimSpace(req.ArtistName),
		EstimatedPrice: req.EstimatedPrice,
		SourceURL:      strings.TrimSpace(req.SourceURL),
		Priority:       req.Priority,
		Notes:          req.Notes,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Repo.Add(c.Request.Context(), it); err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("add wishlist item failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *Handler) remove(c *gin.Context) {
	err := h.Repo.Remove(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "wishlist item not found"})
		return
	}
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("remove wishlist item failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
