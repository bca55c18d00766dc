package contacts

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/validation"
	"aura/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/contacts", h.list)
	rg.POST("/contacts", h.create)
	rg.GET("/contacts/:id", h.get)
	rg.PUT("/contacts/:id", h.update)
	rg.DELETE("/contacts/:id", h.delete)
}

type contactReq struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactType string `json:"contact_type" validate:"omitempty,oneof=galerie musee collectionneur expert restaurateur transporteur assureur autre"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"max=50"`
	Address     string `json:"address" validate:"max=500"`
	Website     string `json:"website" validate:"omitempty,url,max=500"`
	Notes       string `json:"notes"`
}

func (r *contactReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Website = strings.TrimSpace(r.Website)
	if r.ContactType == "" {
		r.ContactType = "autre"
	}
}

func (r contactReq) apply(c *models.Contact) {
	c.Name, c.ContactType, c.Email = r.Name, r.ContactType, r.Email
	c.Phone, c.Address, c.Website, c.Notes = strings.TrimSpace(r.Phone), r.Address, r.Website, r.Notes
}

func (h *Handler) bind(c *gin.Context) (*contactReq, bool) {
	var req contactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, false
	}
	req.normalize()
	if err := validation.ValidateStruct(req); err != nil {
		var ve *validation.RequestValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return &req, true
}

func (h *Handler) list(c *gin.Context) {
	userID := auth.UserID(c)
	items, err := h.Repo.List(c.Request.Context(), userID, c.Query("type"), c.Query("q"))
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list contacts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "types": models.ContactTypes})
}

func (h *Handler) get(c *gin.Context) {
	ct, err := h.Repo.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if ct == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *Handler) create(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	now := time.Now().UTC()
	ct := &models.Contact{ID: uuid.NewString(), UserID: auth.UserID(c), CreatedAt: now, UpdatedAt: now}
	req.apply(ct)
	if err := h.Repo.Create(c.Request.Context(), ct); err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("create contact failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, ct)
}

func (h *Handler) update(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ct := &models.Contact{ID: c.Param("id"), UserID: auth.UserID(c), UpdatedAt: time.Now().UTC()}
	req.apply(ct)
	if err := h.Repo.Update(c.Request.Context(), ct); err != nil {
		h.fail(c, err)
		return
	}
	got, err := h.Repo.Get(c.Request.Context(), ct.UserID, ct.ID)
	if err != nil || got == nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
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
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}
	logging.Ctx(c.Request.Context()).Error().Err(err).Msg("contact request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
