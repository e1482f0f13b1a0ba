package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRequestLatency("/gallery/fetch", "POST", "200", 0.01)
	m.RecordHTTPRequest("/gallery/fetch", "POST", "200")
	m.IncHTTPRequestsInFlight()
	m.DecHTTPRequestsInFlight()
	m.RecordFetchPage("drive", "success", 25)
	m.RecordFetchPage("photos", "auth_expired", 0)
	m.RecordUpload("success", 3.5)
	m.RecordProxyFallback()
	m.RecordAuthFlow("google", "success")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_request_latency_seconds") {
		t.Fatalf("expected metrics output to contain request latency metric")
	}
	if !strings.Contains(body, "test_upload_outcomes_total") {
		t.Fatalf("expected metrics output to contain upload outcomes metric")
	}

	if _, err := m.registry.Gather(); err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
}
