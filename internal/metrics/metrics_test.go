package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Init()
	Init() // second call must not panic

	r := gin.New()
	r.Use(Middleware())
	r.GET("/exams/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", Handler())

	before := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/exams/:id", "204"))
	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exams/"+id, nil))
	}
	after := testutil.ToFloat64(RequestCounter.WithLabelValues(http.MethodGet, "/exams/:id", "204"))
	if after-before != 2 {
		t.Fatalf("counter delta = %v, want 2", after-before)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "cbt_http_requests_total") {
		t.Fatal("metrics output misses request counter")
	}
}
