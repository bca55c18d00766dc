package artists

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

var artistKind = references.MustKind("artist")

type Handler struct {
	Repo     *Repo
	Resolver *references.Resolver
	Events   sync.Publisher
}

func NewHandler(repo *Repo, resolver *references.Resolver, events sync.Publisher) *Handler {
	return &Handler{Repo: repo, Resolver: resolver, Events: events}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/artists", h.list)
	rg.POST("/artists", h.create)
	rg.GET("/artists/:id", h.get)
	rg.PUT("/artists/:id", h.update)
	rg.DELETE("/artists/:id", h.delete)
}

type artistReq struct {
	Name        string `json:"name"`
	BirthYear   *int   `json:"birth_year" validate:"omitempty,min=-3000,max=2100"`
	DeathYear   *int   `json:"death_year" validate:"omitempty,min=-3000,max=2100"`
	Nationality string `json:"nationality" validate:"max=100"`
	Biography   string `json:"biography" validate:"max=10000"`
}

func (r artistReq) validate() error {
	if err := validation.ValidateStruct(r); err != nil {
		return err
	}
	if r.BirthYear != nil && r.DeathYear != nil && *r.DeathYear < *r.BirthYear {
		return &validation.RequestValidationError{Fields: []validation.FieldError{{
			Field: "death_year", Tag: "gtefield", Param: "birth_year",
			Message: "death_year must not be before birth_year",
		}}}
	}
	return nil
}

func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	items, total, err := h.Repo.List(c.Request.Context(), claims.UserID, c.Query("q"), limit, offset)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list artists failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": items})
}

func (h *Handler) get(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := h.Repo.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artist not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// POST /api/artists resolves the name like the form widget does, then
// fills the optional details.
func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req artistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	res, err := h.Resolver.Resolve(ctx, artistKind, claims.UserID, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Created {
		err = h.Repo.UpdateDetails(ctx, h.Repo.DB, claims.UserID, details(res.Reference.ID, req))
		if err != nil {
			h.fail(c, err)
			return
		}
	}
	a, err := h.Repo.Get(ctx, claims.UserID, res.Reference.ID)
	if err != nil || a == nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"artist": a, "created": res.Created})
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req artistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	upd := details(id, req)
	if strings.TrimSpace(req.Name) != "" {
		name, err := references.ValidateName(artistKind, req.Name)
		if err != nil {
			h.fail(c, err)
			return
		}
		upd.Name = name
	}
	if err := h.Repo.Update(ctx, h.Resolver.Repo, claims.UserID, upd); err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.Repo.Get(ctx, claims.UserID, id)
	if err != nil || a == nil {
		h.fail(c, err)
		return
	}
	h.publish(claims.UserID, "artist.updated", a)
	c.JSON(http.StatusOK, a)
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Resolver.Repo.Delete(c.Request.Context(), artistKind, claims.UserID, id); err != nil {
		h.fail(c, err)
		return
	}
	h.publish(claims.UserID, "artist.deleted", &Summary{Artist: models.Artist{ID: id}})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) publish(userID, typ string, a *Summary) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(userID, sync.Event{Type: typ, Kind: artistKind.Name, ID: a.ID, Name: a.Name})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ve *validation.RequestValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusNotFound, gin.H{"error": "artist not found"})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, references.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, references.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "artist not found"})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("artist request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func details(id int64, req artistReq) models.Artist {
	return models.Artist{
		ID:          id,
		BirthYear:   req.BirthYear,
		DeathYear:   req.DeathYear,
		Nationality: strings.TrimSpace(req.Nationality),
		Biography:   req.Biography,
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
