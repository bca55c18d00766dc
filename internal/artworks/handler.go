package artworks

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/validation"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/artworks", h.list)
	rg.POST("/artworks", h.create)
	rg.GET("/artworks/suggestion", h.suggestion)
	rg.GET("/artworks/:id", h.get)
	rg.PUT("/artworks/:id", h.update)
	rg.DELETE("/artworks/:id", h.delete)
}

// GET /api/artworks?q=&location=&artist_id=&collection_id=&exhibition_id=&tag=&page=&page_size=
func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page := atoi(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	size := atoi(c.Query("page_size"), 20)
	if size <= 0 || size > 100 {
		size = 20
	}
	artistID, _ := strconv.ParseInt(c.Query("artist_id"), 10, 64)
	collectionID, _ := strconv.ParseInt(c.Query("collection_id"), 10, 64)
	exhibitionID, _ := strconv.ParseInt(c.Query("exhibition_id"), 10, 64)

	items, total, err := h.Service.Repo.List(c.Request.Context(), claims.UserID, ListQuery{
		Q:            c.Query("q"),
		Location:     c.Query("location"),
		ArtistID:     artistID,
		CollectionID: collectionID,
		ExhibitionID: exhibitionID,
		Tag:          c.Query("tag"),
		Limit:        size,
		Offset:       (page - 1) * size,
	})
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("list artworks failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": size,
		"items":     items,
	})
}

func (h *Handler) get(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	a, err := h.Service.Repo.Get(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artwork not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Service.Create(c.Request.Context(), claims.UserID, in)
	if err != nil {
		h.fail(c, err, "create artwork failed")
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Service.Update(c.Request.Context(), claims.UserID, c.Param("id"), in)
	if err != nil {
		h.fail(c, err, "update artwork failed")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) delete(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.Service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		h.fail(c, err, "delete artwork failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) suggestion(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	a, err := h.Service.Repo.Suggest(c.Request.Context(), claims.UserID, h.Service.Now())
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("artwork suggestion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// nothing eligible is not an error
	c.JSON(http.StatusOK, gin.H{"artwork": a})
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, ErrUnknownReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "artwork not found"})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
