package notes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/validation"
	"aura/pkg/models"
)

// DefaultTitle is used when a note is saved without a title.
const DefaultTitle = "Général"

type Handler struct {
	Repo *Repo
	// content allows basic formatting; titles are plain text
	content *bluemonday.Policy
	title   *bluemonday.Policy
	now     func() time.Time
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{
		Repo:    repo,
		content: bluemonday.UGCPolicy(),
		title:   bluemonday.StrictPolicy(),
		now:     time.Now,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notes", h.list)
	rg.POST("/notes", h.create)
	rg.GET("/notes/:id", h.get)
	rg.PUT("/notes/:id", h.update)
	rg.DELETE("/notes/:id", h.delete)
	rg.POST("/notes/:id/favorite", h.toggleFavorite)
}

type noteReq struct {
	Title      string `json:"title" validate:"max=200"`
	Content    string `json:"content" validate:"max=100000"`
	IsFavorite bool   `json:"is_favorite"`
}

func (h *Handler) bind(c *gin.Context) (*noteReq, bool) {
	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	req.Title = strings.TrimSpace(h.title.Sanitize(req.Title))
	if req.Title == "" {
		req.Title = DefaultTitle
	}
	req.Content = h.content.Sanitize(req.Content)
	if err := validation.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &req, true
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context(), auth.UserID(c), ListQuery{
		Q:         c.Query("q"),
		Favorites: c.Query("favorites") == "1" || c.Query("favorites") == "true",
	})
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list notes failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) get(c *gin.Context) {
	n, err := h.Repo.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if n == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) create(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	now := h.now().UTC()
	n := &models.Note{
		ID:         uuid.NewString(),
		UserID:     auth.UserID(c),
		Title:      req.Title,
		Content:    req.Content,
		IsFavorite: req.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Repo.Create(c.Request.Context(), n); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) update(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	n := &models.Note{
		ID:         c.Param("id"),
		UserID:     auth.UserID(c),
		Title:      req.Title,
		Content:    req.Content,
		IsFavorite: req.IsFavorite,
		UpdatedAt:  h.now().UTC(),
	}
	if err := h.Repo.Update(c.Request.Context(), n); err != nil {
		h.fail(c, err)
		return
	}
	got, err := h.Repo.Get(c.Request.Context(), n.UserID, n.ID)
	if err != nil || got == nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	fav, err := h.Repo.ToggleFavorite(c.Request.Context(), auth.UserID(c), c.Param("id"), h.now().UTC())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_favorite": fav})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Repo.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if err == nil || errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	logging.Ctx(c.Request.Context()).Error().Err(err).Msg("note request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
