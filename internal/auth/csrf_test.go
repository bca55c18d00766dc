package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func csrfRouter() (*gin.Engine, *CSRF) {
	gin.SetMode(gin.TestMode)
	m := NewCSRF(CSRFConfig{}, []byte("csrf-secret"))
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/form", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/ajax/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, m
}

func issuedToken(t *testing.T, r http.Handler, name string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form", nil))
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	t.Fatalf("no %s cookie issued", name)
	return ""
}

func TestCSRFDoubleSubmit(t *testing.T) {
	r, m := csrfRouter()
	token := issuedToken(t, r, m.CookieName())

	cases := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{"missing both", "", "", http.StatusForbidden},
		{"missing header", token, "", http.StatusForbidden},
		{"mismatch", token, token + "x", http.StatusForbidden},
		{"forged unsigned", "abc.def", "abc.def", http.StatusForbidden},
		{"valid", token, token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ajax/x", strings.NewReader(`{}`))
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: m.CookieName(), Value: tc.cookie})
			}
			if tc.header != "" {
				req.Header.Set(m.HeaderName(), tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestCSRFFormField(t *testing.T) {
	r, m := csrfRouter()
	token := issuedToken(t, r, m.CookieName())

	req := httptest.NewRequest(http.MethodPost, "/ajax/x", strings.NewReader(m.FieldName()+"="+token))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: m.CookieName(), Value: token})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
