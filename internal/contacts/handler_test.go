package contacts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aura/internal/auth"
	"aura/pkg/database/dbtest"
	"aura/pkg/models"
)

func setup(t *testing.T) (*gin.Engine, func(user string) string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "u1")
	dbtest.SeedUser(t, db, "u2")
	tokens := auth.TokenService{Secret: []byte("contacts-test-secret"), Issuer: "aura", Duration: time.Hour}

	r := gin.New()
	NewHandler(NewRepo(db)).RegisterRoutes(r.Group("/api", auth.Middleware(tokens, nil)))
	return r, func(user string) string {
		tok, _, err := tokens.Sign(&auth.User{ID: user})
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}
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

func TestContactLifecycle(t *testing.T) {
	r, token := setup(t)
	u1 := token("u1")

	rec := do(r, http.MethodPost, "/api/contacts", u1, map[string]any{
		"name": " Galerie Durand-Ruel ", "contact_type": "galerie", "email": "contact@durand-ruel.example",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var ct models.Contact
	_ = json.Unmarshal(rec.Body.Bytes(), &ct)
	if ct.Name != "Galerie Durand-Ruel" {
		t.Fatalf("name not trimmed: %q", ct.Name)
	}

	if rec := do(r, http.MethodPost, "/api/contacts", u1, map[string]any{"name": "Sans type"}); rec.Code != http.StatusCreated {
		t.Fatalf("create default type: %d", rec.Code)
	}

	rec = do(r, http.MethodGet, "/api/contacts?type=galerie", u1, nil)
	var list struct {
		Items []models.Contact `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0].ID != ct.ID {
		t.Fatalf("type filter: %s", rec.Body)
	}

	if rec := do(r, http.MethodGet, "/api/contacts/"+ct.ID, token("u2"), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected other user to get 404, got %d", rec.Code)
	}

	rec = do(r, http.MethodPut, "/api/contacts/"+ct.ID, u1, map[string]any{"name": "Durand-Ruel", "contact_type": "expert"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	if rec := do(r, http.MethodDelete, "/api/contacts/"+ct.ID, u1, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(r, http.MethodDelete, "/api/contacts/"+ct.ID, u1, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}

func TestContactValidation(t *testing.T) {
	r, token := setup(t)
	cases := map[string]map[string]any{
		"missing name": {"contact_type": "musee"},
		"bad type":     {"name": "x", "contact_type": "banque"},
		"bad email":    {"name": "x", "email": "not-an-email"},
		"bad website":  {"name": "x", "website": "durand ruel"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if rec := do(r, http.MethodPost, "/api/contacts", token("u1"), body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body)
			}
		})
	}
}
