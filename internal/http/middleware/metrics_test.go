package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersInflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Writes a body, so the size histogram observes a value. The path label
	// must be the route pattern, not the concrete id.
	r.GET("/recipients/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})

	// 204 with no body leaves c.Writer.Size() at -1, skipping the size
	// histogram.
	r.DELETE("/recipients/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines, since collectors are process-global and other tests may have
	// touched them.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/recipients/:id", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/recipients/42", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /recipients/42 -> %d", w.Code)
	}

	// Unmatched route: the path label falls back to the raw URL path.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /does-not-exist -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/recipients/42", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE /recipients/42 -> %d", w.Code)
	}

	gotOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/recipients/:id", "200"))
	if gotOK != baseOK+1 {
		t.Fatalf("counter GET /recipients/:id 200 = %v; want %v", gotOK, baseOK+1)
	}

	got404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))
	if got404 != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got404, base404+1)
	}

	// Gauge returns to zero once all requests complete.
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}

	// Histogram bucket counts are timing-dependent, so the requests above only
	// need to have exercised both the observe path and the size<0 skip.
}
