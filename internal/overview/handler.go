// Package overview serves the dashboard summary and the search that spans
// artworks, contacts and notes.
package overview

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/contacts"
	"aura/internal/logging"
	"aura/internal/notes"
	"aura/pkg/models"
)

const (
	recentLimit    = 5
	favoritesLimit = 3
	searchLimit    = 10
)

type Handler struct {
	Repo     *Repo
	Artworks *artworks.Repo
	Contacts *contacts.Repo
	Notes    *notes.Repo
	Now      func() time.Time
}

func NewHandler(repo *Repo, art *artworks.Repo, con *contacts.Repo, nts *notes.Repo) *Handler {
	return &Handler{Repo: repo, Artworks: art, Contacts: con, Notes: nts, Now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.dashboard)
	rg.GET("/search", h.search)
}

type Dashboard struct {
	Totals        Counts            `json:"totals"`
	Recent        []*models.Artwork `json:"recent_artworks"`
	Locations     []Stat            `json:"location_stats"`
	ArtTypes      []Stat            `json:"art_type_stats"`
	FavoriteNotes []models.Note     `json:"favorite_notes"`
	Suggested     *models.Artwork   `json:"suggested_artwork"`
}

func (h *Handler) dashboard(c *gin.Context) {
	userID := auth.UserID(c)
	var d Dashboard
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		d.Totals, err = h.Repo.Counts(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Recent, _, err = h.Artworks.List(ctx, userID, artworks.ListQuery{Limit: recentLimit})
		return err
	})
	g.Go(func() (err error) {
		d.Locations, err = h.Repo.LocationStats(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.ArtTypes, err = h.Repo.ArtTypeStats(ctx, userID)
		return err
	})
	g.Go(func() error {
		favs, err := h.Notes.List(ctx, userID, notes.ListQuery{Favorites: true})
		d.FavoriteNotes = head(favs, favoritesLimit)
		return err
	})
	g.Go(func() (err error) {
		d.Suggested, err = h.Artworks.Suggest(ctx, userID, h.Now())
		return err
	})
	if err := g.Wait(); err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("dashboard failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, d)
}

type Results struct {
	Query    string            `json:"q"`
	Artworks []*models.Artwork `json:"artworks"`
	Contacts []models.Contact  `json:"contacts"`
	Notes    []models.Note     `json:"notes"`
}

// search with an empty query returns empty result lists, not everything.
func (h *Handler) search(c *gin.Context) {
	userID := auth.UserID(c)
	res := Results{
		Query:    strings.TrimSpace(c.Query("q")),
		Artworks: []*models.Artwork{},
		Contacts: []models.Contact{},
		Notes:    []models.Note{},
	}
	if res.Query == "" {
		c.JSON(http.StatusOK, res)
		return
	}

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		res.Artworks, _, err = h.Artworks.List(ctx, userID, artworks.ListQuery{Q: res.Query, Limit: searchLimit})
		return err
	})
	g.Go(func() error {
		found, err := h.Contacts.List(ctx, userID, "", res.Query)
		res.Contacts = head(found, searchLimit)
		return err
	})
	g.Go(func() error {
		found, err := h.Notes.List(ctx, userID, notes.ListQuery{Q: res.Query})
		res.Notes = head(found, searchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
