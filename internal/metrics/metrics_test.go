package metrics_test

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/warden/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	kind := "metrics_test_kind"

	metrics.EmitBuildInfo()
	metrics.SetProcesses(kind, 3)
	metrics.IncrementRegistration(kind)
	metrics.IncrementRegistration(kind)
	metrics.ObserveKill(250 * time.Millisecond)
	metrics.AddCleanupRemoved(4)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	processesLine := fmt.Sprintf("warden_processes{kind=\"%s\"} 3", kind)
	if !strings.Contains(body, processesLine) {
		t.Fatalf("expected gauge line %q in body:\n%s", processesLine, body)
	}

	registrationsLine := fmt.Sprintf("warden_registrations_total{kind=\"%s\"} 2", kind)
	if !strings.Contains(body, registrationsLine) {
		t.Fatalf("expected counter line %q in body:\n%s", registrationsLine, body)
	}

	if !strings.Contains(body, "warden_kills_total") {
		t.Fatalf("expected kill counter in body:\n%s", body)
	}
	if !strings.Contains(body, "warden_kill_duration_seconds") {
		t.Fatalf("expected kill duration histogram in body:\n%s", body)
	}
	if !strings.Contains(body, "warden_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}
