package exhibitions

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
	rg.GET("/exhibitions", h.list)
	rg.POST("/exhibitions", h.create)
	rg.GET("/exhibitions/:id", h.get)
	rg.PUT("/exhibitions/:id", h.update)
	rg.DELETE("/exhibitions/:id", h.delete)
}

type exhibitionReq struct {
	Name      string  `json:"name"`
	Location  string  `json:"location" validate:"max=200"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (r exhibitionReq) validate() error {
	if err := validation.ValidateStruct(r); err != nil {
		return err
	}
	// ISO dates compare as strings
	if r.StartDate != nil && r.EndDate != nil && *r.EndDate < *r.StartDate {
		return &validation.RequestValidationError{Fields: []validation.FieldError{{
			Field: "end_date", Tag: "gtefield", Param: "start_date",
			Message: "end_date must not be before start_date",
		}}}
	}
	return nil
}

func (r exhibitionReq) details(id int64) models.Exhibition {
	return models.Exhibition{
		ID:        id,
		Location:  strings.TrimSpace(r.Location),
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}
}

func (h *Handler) list(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.Query("page_size"))
	if size <= 0 || size > 100 {
		size = 20
	}
	items, total, err := h.Repo.List(c.Request.Context(), auth.UserID(c), c.Query("q"), size, (page-1)*size)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list exhibitions failed")
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

func (h *Handler) create(c *gin.Context) {
	userID := auth.UserID(c)
	var req exhibitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	res, err := h.Resolver.Resolve(ctx, exhibitionKind, userID, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Created {
		if err := h.Repo.UpdateDetails(ctx, h.Repo.DB, userID, req.details(res.Reference.ID)); err != nil {
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
	c.JSON(status, gin.H{"exhibition": s, "created": res.Created})
}

func (h *Handler) update(c *gin.Context) {
	userID := auth.UserID(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req exhibitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		h.fail(c, err)
		return
	}
	upd := req.details(id)
	if strings.TrimSpace(req.Name) != "" {
		name, err := references.ValidateName(exhibitionKind, req.Name)
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
	if h.Events != nil {
		h.Events.Publish(userID, sync.Event{Type: "exhibition.updated", Kind: exhibitionKind.Name, ID: s.ID, Name: s.Name})
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) delete(c *gin.Context) {
	userID := auth.UserID(c)
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Resolver.Repo.Delete(c.Request.Context(), exhibitionKind, userID, id); err != nil {
		h.fail(c, err)
		return
	}
	if h.Events != nil {
		h.Events.Publish(userID, sync.Event{Type: "exhibition.deleted", Kind: exhibitionKind.Name, ID: id})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ve *validation.RequestValidationError
	switch {
	case err == nil, errors.Is(err, references.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "exhibition not found"})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, references.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("exhibition request failed")
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
