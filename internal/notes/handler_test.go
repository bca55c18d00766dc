package notes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
	"aura/pkg/database/dbtest"
	"aura/pkg/models"
)

func setup(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	tokens := auth.TokenService{Secret: []byte("notes-test-secret"), Issuer: "aura", Duration: time.Hour}

	h := NewHandler(NewRepo(db))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	r := gin.New()
	h.RegisterRoutes(r.Group("/api", auth.Middleware(tokens, nil)))
	tok, _, err := tokens.Sign(&auth.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	return r, tok
}

func do(r http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
	return v
}

func TestCreateDefaultsAndSanitizes(t *testing.T) {
	r, tok := setup(t)
	rec := do(r, http.MethodPost, "/api/notes", tok, map[string]any{
		"content": `<p>Appeler l'assureur</p><script>alert(1)</script>`,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	n := decode[models.Note](t, rec)
	if n.Title != DefaultTitle {
		t.Fatalf("expected default title, got %q", n.Title)
	}
	if strings.Contains(n.Content, "script") || !strings.Contains(n.Content, "<p>") {
		t.Fatalf("content not sanitized as expected: %q", n.Content)
	}
}

func TestFavoritesAndSearch(t *testing.T) {
	r, tok := setup(t)
	first := decode[models.Note](t, do(r, http.MethodPost, "/api/notes", tok, map[string]any{"title": "Restauration", "content": "devis cadre"}))
	do(r, http.MethodPost, "/api/notes", tok, map[string]any{"title": "Assurance", "content": "renouveler"})

	rec := do(r, http.MethodPost, "/api/notes/"+first.ID+"/favorite", tok, nil)
	if fav := decode[map[string]bool](t, rec); !fav["is_favorite"] {
		t.Fatalf("expected favorite after toggle: %s", rec.Body)
	}

	list := decode[struct {
		Items []models.Note `json:"items"`
	}](t, do(r, http.MethodGet, "/api/notes", tok, nil))
	if len(list.Items) != 2 || list.Items[0].ID != first.ID {
		t.Fatalf("expected favorite first, got %+v", list.Items)
	}

	favs := decode[struct {
		Items []models.Note `json:"items"`
	}](t, do(r, http.MethodGet, "/api/notes?favorites=1", tok, nil))
	if len(favs.Items) != 1 {
		t.Fatalf("favorites filter: %+v", favs.Items)
	}

	found := decode[struct {
		Items []models.Note `json:"items"`
	}](t, do(r, http.MethodGet, "/api/notes?q=DEVIS", tok, nil))
	if len(found.Items) != 1 || found.Items[0].Title != "Restauration" {
		t.Fatalf("search: %+v", found.Items)
	}

	if rec := do(r, http.MethodPost, "/api/notes/missing/favorite", tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 toggling unknown note, got %d", rec.Code)
	}
}
