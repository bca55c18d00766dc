package references

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/metrics"
	"aura/internal/validation"
)

const (
	MinSuggestTerm = 2
	suggestLimit   = 20
)

type Handler struct {
	Resolver *Resolver
	Repo     *Repo
	// Limit, when set, runs in front of the create endpoints.
	Limit gin.HandlerFunc
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{Resolver: resolver, Repo: resolver.Repo}
}

// RegisterAjaxRoutes mounts the widget endpoints. The group must already
// carry authentication and CSRF middleware.
func (h *Handler) RegisterAjaxRoutes(rg *gin.RouterGroup) {
	rg.POST("/:kind/create", h.chain(h.ajaxCreate)...)
	rg.GET("/:kind/autocomplete", h.autocomplete)
}

// RegisterAPIRoutes mounts the bearer-token REST surface.
func (h *Handler) RegisterAPIRoutes(rg *gin.RouterGroup) {
	rg.GET("/references", h.listKinds)
	rg.GET("/references/:kind", h.list)
	rg.POST("/references/:kind", h.chain(h.apiCreate)...)
	rg.GET("/references/:kind/:id", h.get)
	rg.PUT("/references/:kind/:id", h.rename)
	rg.DELETE("/references/:kind/:id", h.remove)
}

func (h *Handler) chain(fn gin.HandlerFunc) []gin.HandlerFunc {
	if h.Limit != nil {
		return []gin.HandlerFunc{h.Limit, fn}
	}
	return []gin.HandlerFunc{fn}
}

type createReq struct {
	Name string `json:"name"`
}

func (h *Handler) ajaxCreate(c *gin.Context) {
	k, ok := Lookup(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown entity type"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}

	res, err := h.Resolver.Resolve(c.Request.Context(), k, auth.UserID(c), req.Name)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= 500 {
			logging.Ctx(c.Request.Context()).Error().Err(err).Str("kind", k.Name).Msg("resolve reference failed")
		}
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      res.Reference.ID,
		"name":    res.Reference.Name,
		"created": res.Created,
	})
}

func (h *Handler) apiCreate(c *gin.Context) {
	k, ok := Lookup(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity type"})
		return
	}
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Resolver.Resolve(c.Request.Context(), k, auth.UserID(c), req.Name)
	if err != nil {
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"reference": res.Reference, "created": res.Created})
}

func errorStatus(err error) (int, string) {
	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not found"
	}
	return http.StatusInternalServerError, "internal error"
}

type suggestion struct {
	Text string `json:"text"`
}

func (h *Handler) autocomplete(c *gin.Context) {
	if c.Param("kind") != "tag" {
		c.JSON(http.StatusNotFound, gin.H{"results": []suggestion{}})
		return
	}
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		term = strings.TrimSpace(c.Query("term"))
	}
	if utf8.RuneCountInString(term) < MinSuggestTerm {
		metrics.AutocompleteRequests.WithLabelValues("short").Inc()
		c.JSON(http.StatusOK, gin.H{"results": []suggestion{}})
		return
	}

	names, err := h.Repo.SuggestTags(c.Request.Context(), auth.UserID(c), term, suggestLimit)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("tag autocomplete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"results": []suggestion{}, "error": "internal error"})
		return
	}

	results := make([]suggestion, 0, len(names))
	for _, n := range names {
		results = append(results, suggestion{Text: n})
	}
	outcome := "hit"
	if len(results) == 0 {
		outcome = "empty"
	}
	metrics.AutocompleteRequests.WithLabelValues(outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) listKinds(c *gin.Context) {
	type kindView struct {
		Name   string `json:"name"`
		Label  string `json:"label"`
		Global bool   `json:"global"`
		MaxLen int    `json:"max_length"`
	}
	out := []kindView{}
	for _, k := range Kinds() {
		out = append(out, kindView{Name: k.Name, Label: k.Label, Global: k.Scope == Global, MaxLen: k.MaxLen})
	}
	c.JSON(http.StatusOK, gin.H{"kinds": out})
}

func (h *Handler) list(c *gin.Context) {
	k, ok := Lookup(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity type"})
		return
	}
	items, err := h.Repo.List(c.Request.Context(), k, k.ScopeFor(auth.UserID(c)), ListQuery{
		Q:     c.Query("q"),
		Limit: parseInt(c.Query("limit"), 0),
	})
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("kind", k.Name).Msg("list references failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) get(c *gin.Context) {
	k, ok := Lookup(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity type"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ref, err := h.Repo.Get(c.Request.Context(), k, k.ScopeFor(auth.UserID(c)), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if ref == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, ref)
}

func kindAndID(c *gin.Context) (Kind, int64, bool) {
	k, ok := Lookup(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity type"})
		return Kind{}, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return Kind{}, 0, false
	}
	return k, id, true
}

// PUT /api/references/:kind/:id renames any kind, including the shared
// catalogue kinds.
func (h *Handler) rename(c *gin.Context) {
	k, id, ok := kindAndID(c)
	if !ok {
		return
	}
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ref, err := h.Resolver.Rename(c.Request.Context(), k, auth.UserID(c), id, req.Name)
	if err != nil {
		status, msg := errorStatus(err)
		if status >= 500 {
			logging.Ctx(c.Request.Context()).Error().Err(err).Str("kind", k.Name).Msg("rename reference failed")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (h *Handler) remove(c *gin.Context) {
	k, id, ok := kindAndID(c)
	if !ok {
		return
	}
	if err := h.Resolver.Delete(c.Request.Context(), k, auth.UserID(c), id); err != nil {
		status, msg := errorStatus(err)
		if status >= 500 {
			logging.Ctx(c.Request.Context()).Error().Err(err).Str("kind", k.Name).Msg("delete reference failed")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
