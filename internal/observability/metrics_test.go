package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.IncImport("study", "reported")
	m.IncImport("study", "reported")
	m.IncConfirm("study", "props+assets", "applied")
	m.AddStagingSwept(3)
	m.AddStagingSwept(0)

	if got := testutil.ToFloat64(m.imports.WithLabelValues("study", "reported")); got != 2 {
		t.Fatalf("imports: got=%v", got)
	}
	if got := testutil.ToFloat64(m.confirms.WithLabelValues("study", "props+assets", "applied")); got != 1 {
		t.Fatalf("confirms: got=%v", got)
	}
	if got := testutil.ToFloat64(m.stagingSwept); got != 3 {
		t.Fatalf("staging swept: got=%v", got)
	}
}

func TestMetricsHandlerExposesSeries(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("get", "/api/studies/:id/export", 200, 15*time.Millisecond)
	m.IncExport("study", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`studyport_http_requests_total{method="GET",route="/api/studies/:id/export",status="200"} 1`,
		`studyport_exports_total{kind="study",result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncImport("study", "x")
	m.ObserveMerge("study", time.Second)
	m.ObserveAPI("GET", "/", 200, time.Millisecond)
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have nil registry")
	}
}
