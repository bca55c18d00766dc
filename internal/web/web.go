// Package web serves the server-rendered artwork form that hosts the
// select-or-create widget.
package web

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/logging"
	"aura/internal/references"
	"aura/internal/validation"
	"aura/internal/widget"
	"aura/pkg/models"
)

// Field is one select-or-create control on the form.
type Field struct {
	Name      string
	Label     string
	Kind      string
	Multiple  bool
	CreateURL string
	Options   []Option
}

type Option struct {
	ID       int64
	Label    string
	Selected bool
}

type formField struct {
	name     string
	kind     string
	multiple bool
}

// form order: single-select catalogue kinds, then per-user relations
var formFields = []formField{
	{"art_type_id", "arttype", false},
	{"support_id", "support", false},
	{"technique_id", "technique", false},
	{"artist_ids", "artist", true},
	{"collection_ids", "collection", true},
	{"exhibition_ids", "exhibition", true},
}

type pageData struct {
	CSRFToken  string
	CSRFHeader string
	CSRFField  string
	SuggestURL string
	Fields     []Field
	Locations  []string
	Input      artworks.Input
	TagsText   string
	Errors     []validation.FieldError
	Error      string
	SavedID    string
}

// DefaultOptionLimit caps how many options a control lists up front; the
// current selection is always included on top of it.
const DefaultOptionLimit = 500

type Handler struct {
	Refs        *references.Repo
	Artworks    *artworks.Service
	CSRF        *auth.CSRF
	OptionLimit int
	tmpl        *template.Template
}

func NewHandler(refs *references.Repo, svc *artworks.Service, csrf *auth.CSRF) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{Refs: refs, Artworks: svc, CSRF: csrf, OptionLimit: DefaultOptionLimit, tmpl: tmpl}, nil
}

// RegisterRoutes mounts the form pages; rg must carry session auth and CSRF.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/artworks/new", h.newForm)
	rg.POST("/artworks/new", h.submit)
}

// RegisterStatic serves the embedded assets without authentication.
func RegisterStatic(r gin.IRouter) {
	r.StaticFS("/static", http.FS(StaticFS()))
}

func (h *Handler) newForm(c *gin.Context) {
	data := pageData{SavedID: c.Query("saved")}
	h.render(c, http.StatusOK, &data)
}

func (h *Handler) submit(c *gin.Context) {
	in, err := parseForm(c)
	data := pageData{Input: in, TagsText: c.PostForm("tags")}
	if err != nil {
		data.Error = err.Error()
		h.render(c, http.StatusBadRequest, &data)
		return
	}

	a, err := h.Artworks.Create(c.Request.Context(), auth.UserID(c), in)
	if err != nil {
		var ve *validation.RequestValidationError
		switch {
		case errors.As(err, &ve):
			data.Errors = ve.Fields
		case errors.Is(err, artworks.ErrUnknownReference):
			data.Error = err.Error()
		default:
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("form create artwork failed")
			data.Error = "internal error"
			h.render(c, http.StatusInternalServerError, &data)
			return
		}
		h.render(c, http.StatusBadRequest, &data)
		return
	}
	c.Redirect(http.StatusSeeOther, "/artworks/new?saved="+a.ID)
}

func (h *Handler) render(c *gin.Context, status int, data *pageData) {
	token, err := h.CSRF.EnsureToken(c)
	if err != nil {
		c.String(http.StatusInternalServerError, "csrf token failed")
		return
	}
	data.CSRFToken = token
	data.CSRFHeader = h.CSRF.HeaderName()
	data.CSRFField = h.CSRF.FieldName()
	data.SuggestURL = widget.SuggestPath
	data.Locations = locations()

	fields, err := h.fields(c, data.Input)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("load form options failed")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	data.Fields = fields

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(c.Writer, "artwork_form.tmpl", data); err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("render artwork form failed")
	}
}

func (h *Handler) fields(c *gin.Context, in artworks.Input) ([]Field, error) {
	userID := auth.UserID(c)
	chosen := map[string][]int64{
		"art_type_id":    optionalID(in.ArtTypeID),
		"support_id":     optionalID(in.SupportID),
		"technique_id":   optionalID(in.TechniqueID),
		"artist_ids":     in.ArtistIDs,
		"collection_ids": in.CollectionIDs,
		"exhibition_ids": in.ExhibitionIDs,
	}

	ctx := c.Request.Context()
	out := make([]Field, 0, len(formFields))
	for _, ff := range formFields {
		k := references.MustKind(ff.kind)
		scope := k.ScopeFor(userID)
		refs, err := h.Refs.List(ctx, k, scope, references.ListQuery{Limit: h.OptionLimit})
		if err != nil {
			return nil, err
		}
		listed := make(map[int64]bool, len(refs))
		for _, r := range refs {
			listed[r.ID] = true
		}
		// a re-rendered form must keep selections that fall outside the window
		for _, id := range chosen[ff.name] {
			if listed[id] {
				continue
			}
			r, err := h.Refs.Get(ctx, k, scope, id)
			if err != nil {
				return nil, err
			}
			if r != nil {
				refs = append(refs, *r)
				listed[id] = true
			}
		}
		f := Field{
			Name:      ff.name,
			Label:     k.Label,
			Kind:      k.Name,
			Multiple:  ff.multiple,
			CreateURL: "/ajax/" + k.Name + "/create",
		}
		for _, r := range refs {
			f.Options = append(f.Options, Option{ID: r.ID, Label: r.Name, Selected: contains(chosen[ff.name], r.ID)})
		}
		out = append(out, f)
	}
	return out, nil
}

// parseForm maps the urlencoded form onto the same input the JSON API takes.
func parseForm(c *gin.Context) (artworks.Input, error) {
	in := artworks.Input{
		Title:                c.PostForm("title"),
		OriginCountry:        c.PostForm("origin_country"),
		AcquisitionPlace:     c.PostForm("acquisition_place"),
		Provenance:           c.PostForm("provenance"),
		CurrentLocation:      c.PostForm("current_location"),
		Owners:               c.PostForm("owners"),
		ContextualReferences: c.PostForm("contextual_references"),
		Notes:                c.PostForm("notes"),
		IsFramed:             c.PostForm("is_framed") != "",
		IsBorrowed:           c.PostForm("is_borrowed") != "",
		IsSigned:             c.PostForm("is_signed") != "",
		IsAcquired:           c.PostForm("is_acquired") != "",
		Tags:                 widget.SplitTags(c.PostForm("tags")),
		AcquisitionDate:      optionalString(c.PostForm("acquisition_date")),
		LastExhibited:        optionalString(c.PostForm("last_exhibited")),
	}

	var err error
	if in.CreationYear, err = optionalInt(c.PostForm("creation_year"), "creation_year"); err != nil {
		return in, err
	}
	for name, dst := range map[string]**int64{
		"art_type_id":  &in.ArtTypeID,
		"support_id":   &in.SupportID,
		"technique_id": &in.TechniqueID,
	} {
		if *dst, err = optionalInt64(c.PostForm(name), name); err != nil {
			return in, err
		}
	}
	for name, dst := range map[string]**float64{
		"height": &in.Height,
		"width":  &in.Width,
		"depth":  &in.Depth,
		"weight": &in.Weight,
		"price":  &in.Price,
	} {
		if *dst, err = optionalFloat(c.PostForm(name), name); err != nil {
			return in, err
		}
	}
	for name, dst := range map[string]*[]int64{
		"artist_ids":     &in.ArtistIDs,
		"collection_ids": &in.CollectionIDs,
		"exhibition_ids": &in.ExhibitionIDs,
	} {
		for _, v := range c.PostFormArray(name) {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return in, errors.New(name + ": invalid id")
			}
			*dst = append(*dst, id)
		}
	}
	return in, nil
}

func locations() []string {
	return models.Locations
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(s, field string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.New(field + ": not a number")
	}
	return &n, nil
}

func optionalInt64(s, field string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.New(field + ": invalid id")
	}
	return &n, nil
}

func optionalFloat(s, field string) (*float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New(field + ": not a number")
	}
	return &f, nil
}

func optionalID(p *int64) []int64 {
	if p == nil {
		return nil
	}
	return []int64{*p}
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
