package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/items/:id", "200"))
	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/items/:id", "200"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests recorded, got %v", after-before)
	}
}

func TestRecordResolution(t *testing.T) {
	before := testutil.ToFloat64(ReferenceResolutions.WithLabelValues("artist", "created"))
	RecordResolution("artist", "created")
	if got := testutil.ToFloat64(ReferenceResolutions.WithLabelValues("artist", "created")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
