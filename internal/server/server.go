package server

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/errors"
	"github.com/slipway-dev/slipway/internal/manifest"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/slipway-dev/slipway/pkg/render"
)

// Options configures the production server.
type Options struct {
	// Config is the project configuration.
	Config *config.Config

	// Gzip enables response compression.
	Gzip bool

	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool

	// Reporter receives status messages.
	Reporter report.Reporter

	// Logger receives request-level failures.
	Logger hclog.Logger
}

// Server serves a completed build: manifest and render function are loaded
// once at startup and never change.
type Server struct {
	cfg      *config.Config
	opts     Options
	manifest *manifest.Manifest
	handle   *render.Handle
	reporter report.Reporter
	logger   hclog.Logger
	http     *http.Server
}

// New loads the persisted build and its render bundle. It fails before
// binding anything when no build exists or the bundle cannot be loaded.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	r := opts.Reporter
	if r == nil {
		r = report.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Name: "slipway"})
	}

	// The environment is inferred from the persisted manifest.
	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}

	asset, ok := m.Asset(cfg.Server.Name)
	if !ok {
		return nil, errors.New("E111").
			WithDetail("Manifest has no " + cfg.Server.Name + " entry; the build is incomplete")
	}

	bundlePath := filepath.Join(cfg.BuildAssetsPath(), filepath.FromSlash(asset))
	handle, err := render.Load(bundlePath, logger.Named("render"))
	if err != nil {
		return nil, errors.New("E141").
			WithDetail("Failed to load render bundle " + bundlePath + ": " + err.Error()).
			Wrap(err)
	}

	return &Server{
		cfg:      cfg,
		opts:     opts,
		manifest: m,
		handle:   handle,
		reporter: r,
		logger:   logger,
	}, nil
}

// Env returns the environment tag of the build being served.
func (s *Server) Env() string {
	return s.manifest.Env()
}

// Routes assembles the production router. Metrics live in a registry owned
// by this server so repeated assembly, or several servers in one process,
// never collide on registration.
func (s *Server) Routes() chi.Router {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	handler := &Handler{
		PublicDir: s.cfg.PublicPath(),
		BuildDir:  s.cfg.BuildAssetsPath(),
		Source:    StaticSource{Renderer: s.handle.Renderer, Manifest: s.manifest},
		Logger:    s.logger,
		Metrics:   metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.opts.Gzip {
		r.Use(middleware.Compress(5, "text/html", "text/css", "text/plain",
			"application/javascript", "application/json", "image/svg+xml"))
	}
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	r.Mount("/", handler.Routes())
	return r
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.ServeAddress()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.handle.Close()
		return errors.New("E141").
			WithDetail("Cannot listen on " + addr + ": " + err.Error()).
			Wrap(err)
	}

	s.http = &http.Server{Handler: s.Routes()}

	s.reporter.Info("Serving %s build at http://%s", s.Env(), ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		if err != nil {
			return errors.New("E141").Wrap(err)
		}
		return nil
	}
}

// Stop shuts the server down and kills the render bundle.
func (s *Server) Stop() {
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.http.Shutdown(ctx)
	}
	s.handle.Close()
}
