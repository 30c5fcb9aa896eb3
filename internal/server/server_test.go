package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/slipway-dev/slipway/pkg/render"
)

func testServer(t *testing.T, metrics bool) *Server {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.ConfigFileName)
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	return &Server{
		cfg:      cfg,
		opts:     Options{Config: cfg, Metrics: metrics},
		manifest: testManifest(),
		handle:   &render.Handle{Renderer: &stubRenderer{}},
		reporter: report.Discard,
		logger:   hclog.NewNullLogger(),
	}
}

func TestRoutesRepeatable(t *testing.T) {
	s := testServer(t, true)

	// Each assembly owns its metrics registry; a second one must not
	// panic on duplicate registration.
	s.Routes()
	router := s.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}

func TestTwoServersOneProcess(t *testing.T) {
	a := testServer(t, false)
	b := testServer(t, false)
	a.Routes()
	b.Routes()
}

func TestMetricsEndpointGated(t *testing.T) {
	s := testServer(t, false)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Without the flag the path falls through to the render dispatch.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got == "" || got[0] != '<' {
		t.Errorf("expected a rendered page, got %q", got)
	}
}
