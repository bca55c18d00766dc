package overview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/contacts"
	"aura/internal/notes"
	"aura/internal/references"
	"aura/pkg/database/dbtest"
	"aura/pkg/models"
)

type env struct {
	router *gin.Engine
	tok    string
	svc    *artworks.Service
	notes  *notes.Repo
	cons   *contacts.Repo
	types  *references.Resolver
}

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	resolver := references.NewResolver(references.NewRepo(db), nil)
	artRepo := artworks.NewRepo(db)
	e := &env{
		svc:   artworks.NewService(artRepo, resolver, nil),
		notes: notes.NewRepo(db),
		cons:  contacts.NewRepo(db),
		types: resolver,
	}

	h := NewHandler(NewRepo(db), artRepo, e.cons, e.notes)
	h.Now = func() time.Time { return now }
	tokens := auth.TokenService{Secret: []byte("overview-test-secret"), Issuer: "aura", Duration: time.Hour}
	r := gin.New()
	h.RegisterRoutes(r.Group("/api", auth.Middleware(tokens, nil)))
	e.router = r

	tok, _, err := tokens.Sign(&auth.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	e.tok = tok
	return e
}

func (e *env) get(t *testing.T, path string, out any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+e.tok)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: %d %s", path, rec.Code, rec.Body)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatal(err)
	}
}

func (e *env) artwork(t *testing.T, in artworks.Input) *models.Artwork {
	t.Helper()
	a, err := e.svc.Create(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("create %q: %v", in.Title, err)
	}
	return a
}

func (e *env) note(t *testing.T, title, content string, fav bool) {
	t.Helper()
	err := e.notes.Create(context.Background(), &models.Note{
		ID: uuid.NewString(), UserID: "u1", Title: title, Content: content,
		IsFavorite: fav, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func date(s string) *string { return &s }

func TestDashboard(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	painting, err := e.types.Resolve(ctx, references.MustKind("arttype"), "u1", "Peinture")
	if err != nil {
		t.Fatal(err)
	}
	ptype := painting.Reference.ID

	e.artwork(t, artworks.Input{Title: "Exposée cet été", ArtTypeID: &ptype, CurrentLocation: "domicile", LastExhibited: date("2026-08-01")})
	e.artwork(t, artworks.Input{Title: "Vendue", ArtTypeID: &ptype, CurrentLocation: "vendue"})
	rested := e.artwork(t, artworks.Input{Title: "Au repos", CurrentLocation: "stockage", LastExhibited: date("2025-01-10")})
	for i := 0; i < 4; i++ {
		e.note(t, "Favori", "", true)
	}
	e.note(t, "Ordinaire", "", false)

	var d Dashboard
	e.get(t, "/api/dashboard", &d)

	if diff := cmp.Diff(Counts{Artworks: 3, Notes: 5}, d.Totals); diff != "" {
		t.Fatalf("totals (-want +got):\n%s", diff)
	}
	if len(d.Recent) != 3 {
		t.Fatalf("recent: %d", len(d.Recent))
	}
	if len(d.FavoriteNotes) != favoritesLimit {
		t.Fatalf("favorites: %d", len(d.FavoriteNotes))
	}
	if diff := cmp.Diff([]Stat{{Label: "Peinture", Count: 2}}, d.ArtTypes); diff != "" {
		t.Fatalf("art types (-want +got):\n%s", diff)
	}
	if len(d.Locations) != 3 {
		t.Fatalf("locations: %+v", d.Locations)
	}
	if d.Suggested == nil || d.Suggested.ID != rested.ID {
		t.Fatalf("suggested: %+v", d.Suggested)
	}
}

func TestDashboardWithoutSuggestion(t *testing.T) {
	e := setup(t)
	e.artwork(t, artworks.Input{Title: "Prêtée", CurrentLocation: "pretee"})

	var d Dashboard
	e.get(t, "/api/dashboard", &d)
	if d.Suggested != nil {
		t.Fatalf("nothing at home should be suggested, got %q", d.Suggested.Title)
	}
	if d.Totals.Artworks != 1 || len(d.ArtTypes) != 0 {
		t.Fatalf("dashboard: %+v", d)
	}
}

func TestSearch(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.artwork(t, artworks.Input{Title: "Nymphéas bleus"})
	e.artwork(t, artworks.Input{Title: "Portrait", Notes: "fond bleu"})
	e.artwork(t, artworks.Input{Title: "Paysage"})
	e.note(t, "Bleu de Prusse", "", false)
	e.note(t, "Courses", "rien", false)
	err := e.cons.Create(ctx, &models.Contact{
		ID: uuid.NewString(), UserID: "u1", Name: "Galerie Bleue", ContactType: "galerie",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}

	var res Results
	e.get(t, "/api/search?q="+url.QueryEscape(" bleu "), &res)
	if res.Query != "bleu" || len(res.Artworks) != 2 || len(res.Contacts) != 1 || len(res.Notes) != 1 {
		t.Fatalf("search: %+v", res)
	}

	var empty Results
	e.get(t, "/api/search?q=", &empty)
	if len(empty.Artworks)+len(empty.Contacts)+len(empty.Notes) != 0 {
		t.Fatalf("blank query should find nothing: %+v", empty)
	}
}
