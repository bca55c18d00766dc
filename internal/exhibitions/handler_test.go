package exhibitions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"aura/internal/auth"
	"aura/internal/references"
	"aura/pkg/database/dbtest"
)

func setup(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	resolver := references.NewResolver(references.NewRepo(db), nil)
	tokens := auth.TokenService{Secret: []byte("exhibitions-test-secret"), Issuer: "aura", Duration: time.Hour}

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
	Exhibition Summary `json:"exhibition"`
	Created    bool    `json:"created"`
}

func create(t *testing.T, r http.Handler, tok string, body map[string]any) Summary {
	t.Helper()
	rec := do(r, http.MethodPost, "/api/exhibitions", tok, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %v: %d %s", body["name"], rec.Code, rec.Body)
	}
	var out createResp
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out.Exhibition
}

func TestExhibitionListOrder(t *testing.T) {
	r, tok := setup(t)
	create(t, r, tok, map[string]any{"name": "Sans date", "location": "Atelier"})
	create(t, r, tok, map[string]any{"name": "Orangerie", "location": "Paris", "start_date": "2024-05-01", "end_date": "2024-09-01"})
	create(t, r, tok, map[string]any{"name": "Giverny", "location": "Giverny", "start_date": "2026-04-01"})

	rec := do(r, http.MethodGet, "/api/exhibitions", tok, nil)
	var list struct {
		Total int       `json:"total"`
		Items []Summary `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	var names []string
	for _, it := range list.Items {
		names = append(names, it.Name)
	}
	if diff := cmp.Diff([]string{"Giverny", "Orangerie", "Sans date"}, names); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}

	rec = do(r, http.MethodGet, "/api/exhibitions?q=paris", tok, nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 || list.Items[0].Name != "Orangerie" {
		t.Fatalf("location search: %s", rec.Body)
	}
}

func TestExhibitionValidationAndUpdate(t *testing.T) {
	r, tok := setup(t)

	if rec := do(r, http.MethodPost, "/api/exhibitions", tok, map[string]any{"name": "x", "start_date": "2026-05-01", "end_date": "2026-04-01"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted dates, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/exhibitions", tok, map[string]any{"name": "x", "start_date": "01/05/2026"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/exhibitions", tok, map[string]any{"name": " "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", rec.Code)
	}

	orangerie := create(t, r, tok, map[string]any{"name": "Orangerie"})
	giverny := create(t, r, tok, map[string]any{"name": "Giverny", "location": "Eure"})
	path := "/api/exhibitions/" + strconv.FormatInt(giverny.ID, 10)

	if rec := do(r, http.MethodPut, path, tok, map[string]any{"name": "ORANGERIE", "location": "Paris"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body)
	}
	rec := do(r, http.MethodGet, path, tok, nil)
	var same Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &same)
	if same.Name != "Giverny" || same.Location != "Eure" {
		t.Fatalf("conflicting update leaked: %+v", same)
	}

	rec = do(r, http.MethodPut, path, tok, map[string]any{"name": "Giverny 2026", "location": "Fondation Monet", "start_date": "2026-04-01"})
	var updated Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if rec.Code != http.StatusOK || updated.Name != "Giverny 2026" || updated.StartDate == nil || *updated.StartDate != "2026-04-01" {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}

	if rec := do(r, http.MethodDelete, "/api/exhibitions/"+strconv.FormatInt(orangerie.ID, 10), tok, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/exhibitions/"+strconv.FormatInt(orangerie.ID, 10), tok, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
