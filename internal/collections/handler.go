// Package collections serves the per-user collection records behind the
// collection field of the artwork form.
package collections

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/references"
	"aura/internal/sync"
	"aura/internal/validation"
	"aura/pkg/models"
)

type Handler struct {
	Repo     *Repo
	Resolver *references.Resolver
	Events   sync.Publisher
}

func NewHandler(repo *Repo, resolver *references.Resolver, events sync.Publisher) *Handler {
	return &Handler{Repo: repo, Resolver: resolver, Events: events}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/collections", h.list)
	rg.POST("/collections", h.create)
	rg.GET("/collections/:id", h.get)
	rg.PUT("/collections/:id", h.update)
	rg.DELETE("/collections/:id", h.delete)
}

type collectionReq struct {
	Name        string `json:"name"`
	Description string `json:"description" validate:"max=5000"`
}

// GET /api/collections?q=&page=&page_size=
func (h *Handler) list(c *gin.Context) {
	userID := auth.UserID(c)
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.Query("page_size"))
	if size <= 0 || size > 100 {
		size = 20
	}
	items, total, err := h.Repo.List(c.Request.Context(), userID, c.Query("q"), size, (page-1)*size)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list collections failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "page": page, "page_size": size, "items": items})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	s, err := h.Repo.Get(c.Request.Context(), auth.UserID(c), id)
	if err != nil || s == nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// POST /api/collections shares the widget's find-or-create path; the
// description is only written for a new collection.
func (h *Handler) create(c *gin.Context) {
	userID := auth.UserID(c)
	var req collectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	res, err := h.Resolver.Resolve(ctx, collectionKind, userID, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Created && strings.TrimSpace(req.Description) != "" {
		if err := h.Repo.setDescription(ctx, h.Repo.DB, userID, res.Reference.ID, strings.TrimSpace(req.Description)); err != nil {
			h.fail(c, err)
			return
		}
	}
	s, err := h.Repo.Get(ctx, userID, res.Reference.ID)
	if err != nil || s == nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"collection": s, "created": res.Created})
}

func (h *Handler) update(c *gin.Context) {
	userID := auth.UserID(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req collectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		h.fail(c, err)
		return
	}
	upd := models.Collection{ID: id, Description: strings.TrimSpace(req.Description)}
	if strings.TrimSpace(req.Name) != "" {
		name, err := references.ValidateName(collectionKind, req.Name)
		if err != nil {
			h.fail(c, err)
			return
		}
		upd.Name = name
	}

	ctx := c.Request.Context()
	if err := h.Repo.Update(ctx, h.Resolver.Repo, userID, upd); err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.Repo.Get(ctx, userID, id)
	if err != nil || s == nil {
		h.fail(c, err)
		return
	}
	h.publish(userID, "collection.updated", s.ID, s.Name)
	c.JSON(http.StatusOK, s)
}

// Deleting a collection unlinks its artworks; the artworks stay.
func (h *Handler) delete(c *gin.Context) {
	userID := auth.UserID(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Resolver.Repo.Delete(c.Request.Context(), collectionKind, userID, id); err != nil {
		h.fail(c, err)
		return
	}
	h.publish(userID, "collection.deleted", id, "")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) publish(userID, typ string, id int64, name string) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(userID, sync.Event{Type: typ, Kind: collectionKind.Name, ID: id, Name: name})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ve *validation.RequestValidationError
	switch {
	case err == nil, errors.Is(err, references.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, references.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("collection request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
