package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_nil_is_noop(t *testing.T) {
	var m *Metrics
	m.IncRequests()
	m.IncEventsPublished("zone")
	m.SetUpstreamState("SYNC", []string{"SYNC"})
	m.SessionRegistered(1)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SessionRegistered(1)
	m.IncEventsPublished("zone")
	m.IncEventsPublished("zone")
	m.IncCommands("success")
	m.SetUpstreamState("SYNC", []string{"STARTING", "SYNC"})

	refreshed := false
	rec := httptest.NewRecorder()
	m.Handler(func() { refreshed = true }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !refreshed {
		t.Error("updateGauges was not called")
	}
	body := rec.Body.String()
	for _, want := range []string{
		"roon_web_sessions_active 1",
		"roon_web_sessions_registered_total 1",
		`roon_web_events_published_total{event="zone"} 2`,
		`roon_web_commands_total{result="success"} 1`,
		`roon_web_upstream_state{state="SYNC"} 1`,
		`roon_web_upstream_state{state="STARTING"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "roon_web_requests_total 2") {
		t.Errorf("expected 2 requests:\n%s", body)
	}
	if !strings.Contains(body, "roon_web_errors_total 1") {
		t.Errorf("expected 1 error:\n%s", body)
	}
}
