package artworks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
)

func newRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	tokens := auth.TokenService{Secret: []byte("artworks-test-secret"), Issuer: "aura", Duration: time.Hour}
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api", auth.Middleware(tokens, nil)))
	tok, _, err := tokens.Sign(&auth.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	return r, tok
}

func call(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCRUD(t *testing.T) {
	r, tok := newRouter(t)

	rec := call(r, http.MethodPost, "/api/artworks", tok, map[string]any{"title": "Nymphéas", "tags": []string{"eau"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		ID   string   `json:"id"`
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = call(r, http.MethodGet, "/api/artworks?page=1&page_size=500", tok, nil)
	var page struct {
		Total    int `json:"total"`
		PageSize int `json:"page_size"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if rec.Code != http.StatusOK || page.Total != 1 || page.PageSize != 20 {
		t.Fatalf("list: %d %s", rec.Code, rec.Body)
	}

	rec = call(r, http.MethodPut, "/api/artworks/"+created.ID, tok, map[string]any{"title": "Nymphéas bleus"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", rec.Code, rec.Body)
	}

	rec = call(r, http.MethodDelete, "/api/artworks/"+created.ID, tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	rec = call(r, http.MethodGet, "/api/artworks/"+created.ID, tok, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status %d", rec.Code)
	}
}

func TestHandlerErrors(t *testing.T) {
	r, tok := newRouter(t)

	if rec := call(r, http.MethodGet, "/api/artworks", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := call(r, http.MethodPost, "/api/artworks", tok, map[string]any{"price": -1}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative price, got %d", rec.Code)
	}
	if rec := call(r, http.MethodPost, "/api/artworks", tok, map[string]any{"artist_ids": []int{999}}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown artist, got %d", rec.Code)
	}
	rec := call(r, http.MethodGet, "/api/artworks/suggestion", tok, nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"artwork":null`)) {
		t.Fatalf("suggestion on empty collection: %d %s", rec.Code, rec.Body)
	}
}
