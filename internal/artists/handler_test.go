package artists

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
	"aura/internal/references"
	"aura/pkg/database/dbtest"
)

func setup(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	resolver := references.NewResolver(references.NewRepo(db), nil)
	tokens := auth.TokenService{Secret: []byte("artists-test-secret"), Issuer: "aura", Duration: time.Hour}

	r := gin.New()
	NewHandler(NewRepo(db), resolver, nil).RegisterRoutes(r.Group("/api", auth.Middleware(tokens, nil)))
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

type createResp struct {
	Artist  Summary `json:"artist"`
	Created bool    `json:"created"`
}

func TestCreateFindsExisting(t *testing.T) {
	r, tok := setup(t)

	rec := do(r, http.MethodPost, "/api/artists", tok, map[string]any{"name": "Claude Monet", "birth_year": 1840, "death_year": 1926})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var first createResp
	_ = json.Unmarshal(rec.Body.Bytes(), &first)
	if first.Artist.BirthYear == nil || *first.Artist.BirthYear != 1840 {
		t.Fatalf("details not stored: %+v", first.Artist)
	}

	rec = do(r, http.MethodPost, "/api/artists", tok, map[string]any{"name": "claude monet"})
	if rec.Code != http.StatusOK {
		t.Fatalf("second create: %d %s", rec.Code, rec.Body)
	}
	var second createResp
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if second.Created || second.Artist.ID != first.Artist.ID || second.Artist.Name != "Claude Monet" {
		t.Fatalf("expected existing artist, got %+v", second)
	}
}

func TestUpdateRenameConflict(t *testing.T) {
	r, tok := setup(t)
	var monet, morisot createResp
	_ = json.Unmarshal(do(r, http.MethodPost, "/api/artists", tok, map[string]any{"name": "Claude Monet"}).Body.Bytes(), &monet)
	_ = json.Unmarshal(do(r, http.MethodPost, "/api/artists", tok, map[string]any{"name": "Berthe Morisot"}).Body.Bytes(), &morisot)

	path := "/api/artists/" + jsonID(morisot.Artist.ID)
	if rec := do(r, http.MethodPut, path, tok, map[string]any{"name": "CLAUDE MONET"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body)
	}
	if rec := do(r, http.MethodPut, path, tok, map[string]any{"birth_year": 1900, "death_year": 1800}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted years, got %d", rec.Code)
	}
	rec := do(r, http.MethodPut, path, tok, map[string]any{"name": "Berthe Marie Morisot", "nationality": "Française"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: %d %s", rec.Code, rec.Body)
	}

	rec = do(r, http.MethodGet, "/api/artists?q=fran", tok, nil)
	var list struct {
		Total int       `json:"total"`
		Items []Summary `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 || list.Items[0].Name != "Berthe Marie Morisot" {
		t.Fatalf("unexpected list: %s", rec.Body)
	}

	if rec := do(r, http.MethodDelete, path, tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, path, tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
