package collections

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aura/internal/artworks"
	"aura/internal/auth"
	"aura/internal/references"
	"aura/pkg/database/dbtest"
)

type env struct {
	router *gin.Engine
	tokens auth.TokenService
	svc    *artworks.Service
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	resolver := references.NewResolver(references.NewRepo(db), nil)
	tokens := auth.TokenService{Secret: []byte("collections-test-secret"), Issuer: "aura", Duration: time.Hour}

	r := gin.New()
	NewHandler(NewRepo(db), resolver, nil).RegisterRoutes(r.Group("/api", auth.Middleware(tokens, nil)))
	return &env{router: r, tokens: tokens, svc: artworks.NewService(artworks.NewRepo(db), resolver, nil)}
}

func (e *env) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	tok, _, err := e.tokens.Sign(&auth.User{ID: user})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type createResp struct {
	Collection Summary `json:"collection"`
	Created    bool    `json:"created"`
}

func TestCollectionLifecycle(t *testing.T) {
	e := setup(t)

	rec := e.do(t, "u1", http.MethodPost, "/api/collections", map[string]any{"name": "Salon", "description": "Pièces exposées au salon"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var salon createResp
	_ = json.Unmarshal(rec.Body.Bytes(), &salon)
	if salon.Collection.Description != "Pièces exposées au salon" {
		t.Fatalf("description not stored: %+v", salon.Collection)
	}

	rec = e.do(t, "u1", http.MethodPost, "/api/collections", map[string]any{"name": "SALON", "description": "ignored"})
	var again createResp
	_ = json.Unmarshal(rec.Body.Bytes(), &again)
	if rec.Code != http.StatusOK || again.Created || again.Collection.ID != salon.Collection.ID || again.Collection.Description != salon.Collection.Description {
		t.Fatalf("expected the existing collection untouched, got %d %+v", rec.Code, again)
	}

	a, err := e.svc.Create(context.Background(), "u1", artworks.Input{Title: "Nymphéas", CollectionIDs: []int64{salon.Collection.ID}})
	if err != nil {
		t.Fatal(err)
	}

	path := "/api/collections/" + strconv.FormatInt(salon.Collection.ID, 10)
	rec = e.do(t, "u1", http.MethodGet, path, nil)
	var got Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if rec.Code != http.StatusOK || got.Artworks != 1 {
		t.Fatalf("get: %d %s", rec.Code, rec.Body)
	}

	rec = e.do(t, "u1", http.MethodGet, "/api/collections?q=expos", nil)
	var list struct {
		Total int       `json:"total"`
		Items []Summary `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 || list.Items[0].ID != salon.Collection.ID {
		t.Fatalf("description search: %s", rec.Body)
	}

	if rec := e.do(t, "u2", http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("other user should not see the collection, got %d", rec.Code)
	}
	if rec := e.do(t, "u1", http.MethodDelete, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	stored, err := e.svc.Repo.Get(context.Background(), "u1", a.ID)
	if err != nil || stored == nil {
		t.Fatalf("artwork should survive its collection: %v", err)
	}
	if len(stored.CollectionIDs) != 0 {
		t.Fatalf("artwork still linked: %v", stored.CollectionIDs)
	}
}

func TestCollectionRename(t *testing.T) {
	e := setup(t)
	var salon, reserve createResp
	_ = json.Unmarshal(e.do(t, "u1", http.MethodPost, "/api/collections", map[string]any{"name": "Salon"}).Body.Bytes(), &salon)
	_ = json.Unmarshal(e.do(t, "u1", http.MethodPost, "/api/collections", map[string]any{"name": "Réserve"}).Body.Bytes(), &reserve)
	path := "/api/collections/" + strconv.FormatInt(reserve.Collection.ID, 10)

	if rec := e.do(t, "u1", http.MethodPut, path, map[string]any{"name": "salon", "description": "x"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body)
	}
	rec := e.do(t, "u1", http.MethodGet, path, nil)
	var unchanged Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &unchanged)
	if unchanged.Name != "Réserve" || unchanged.Description != "" {
		t.Fatalf("failed update changed the row: %+v", unchanged)
	}

	rec = e.do(t, "u1", http.MethodPut, path, map[string]any{"name": "Réserve nord", "description": "Cave"})
	var renamed Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &renamed)
	if rec.Code != http.StatusOK || renamed.Name != "Réserve nord" || renamed.Description != "Cave" {
		t.Fatalf("rename: %d %s", rec.Code, rec.Body)
	}
	if rec := e.do(t, "u2", http.MethodPut, path, map[string]any{"name": "Mine"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user, got %d", rec.Code)
	}
	if rec := e.do(t, "u1", http.MethodPut, "/api/collections/abc", map[string]any{"name": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}
