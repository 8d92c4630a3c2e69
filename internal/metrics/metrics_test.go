package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors(t *testing.T) {
	t.Run("refusal reasons are labelled", func(t *testing.T) {
		before := testutil.ToFloat64(PrefetchRefused.WithLabelValues("degraded"))
		PrefetchRefused.WithLabelValues("degraded").Inc()

		if got := testutil.ToFloat64(PrefetchRefused.WithLabelValues("degraded")); got != before+1 {
			t.Errorf("expected %v, got %v", before+1, got)
		}
	})

	t.Run("handler exposes pool metrics", func(t *testing.T) {
		DecodersCreated.Inc()

		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), "reel_pool_decoders_created_total") {
			t.Errorf("expected created counter in output")
		}
	})
}
