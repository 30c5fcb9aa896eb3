package dev

import (
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/slipway-dev/slipway/internal/build"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/errors"
	"github.com/slipway-dev/slipway/internal/manifest"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/slipway-dev/slipway/internal/server"
	"github.com/slipway-dev/slipway/pkg/render"
)

// Options configures the development server.
type Options struct {
	// Config is the project configuration, merged for the dev environment.
	Config *config.Config

	// Polling overrides the configured watch strategy when non-empty.
	Polling string

	// Reporter receives status messages.
	Reporter report.Reporter

	// Logger receives request-level failures.
	Logger hclog.Logger
}

// retiredBias marks a generation as retired. Any refcount at or below it
// rejects new acquisitions; the holder that brings the count back down to
// exactly the bias closes the bundle.
const retiredBias = -1 << 30

// generation is one complete build: the render bundle and the manifest it
// was built with. Requests always see one generation or the other, never
// a mix. The refcount keeps the bundle process alive until every request
// that acquired this generation has finished with it.
type generation struct {
	handle   *render.Handle
	manifest *manifest.Manifest
	refs     atomic.Int64
}

// acquire takes a reference. It fails once the generation is retired.
func (g *generation) acquire() bool {
	for {
		n := g.refs.Load()
		if n < 0 {
			return false
		}
		if g.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference. The last holder of a retired generation
// closes the bundle.
func (g *generation) release() {
	if g.refs.Add(-1) == retiredBias {
		g.handle.Close()
	}
}

// retire rejects further acquisitions and closes the bundle once no
// request holds a reference. In-flight renders finish against the old
// bundle; only then does its process die.
func (g *generation) retire() {
	if g.refs.Add(retiredBias) == retiredBias {
		g.handle.Close()
	}
}

// Server is the development server: it builds on startup, watches source
// files, rebuilds on change, and hot-swaps the render bundle under live
// traffic.
type Server struct {
	cfg      *config.Config
	opts     Options
	reporter report.Reporter
	logger   hclog.Logger

	current atomic.Pointer[generation]
	lastErr atomic.Pointer[string]

	reload  *ReloadServer
	changes chan Change
}

// NewServer prepares a development server. Nothing is built or bound yet.
func NewServer(opts Options) *Server {
	r := opts.Reporter
	if r == nil {
		r = report.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Name: "slipway", Level: hclog.Warn})
	}

	return &Server{
		cfg:      opts.Config,
		opts:     opts,
		reporter: r,
		logger:   logger,
		reload:   NewReloadServer(),
		changes:  make(chan Change, 64),
	}
}

// Acquire implements server.Source. Both values come from one atomic
// load, and the returned release pins the generation's bundle process for
// the duration of the request.
func (s *Server) Acquire() (render.Renderer, *manifest.Manifest, func(), bool) {
	for {
		gen := s.current.Load()
		if gen == nil {
			return nil, nil, nil, false
		}
		if gen.acquire() {
			return gen.handle.Renderer, gen.manifest, gen.release, true
		}
		// Lost the race against a swap; the pointer has moved on.
	}
}

// swap installs a new generation and retires the previous one.
func (s *Server) swap(gen *generation) {
	if old := s.current.Swap(gen); old != nil {
		old.retire()
	}
}

// Run builds, watches, and serves until ctx is cancelled. The listener is
// bound before the first build completes so early requests get the
// placeholder page instead of a connection error.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.shutdown()

	ln, err := s.listen()
	if err != nil {
		return err
	}

	mode := s.cfg.Dev.Polling
	if s.opts.Polling != "" {
		mode = s.opts.Polling
	}
	watcher, strategy, err := NewWatcher(mode, WatchConfig{
		Paths:  s.watchPaths(),
		Ignore: s.cfg.Dev.Ignore,
	})
	if err != nil {
		return errors.New("E141").
			WithDetail("Cannot watch source files: " + err.Error()).
			Wrap(err)
	}
	watcher.OnChange(func(c Change) {
		select {
		case s.changes <- c:
		default:
		}
	})

	s.reporter.Info("Dev server at http://%s (watching via %s)", ln.Addr(), strategy)

	httpSrv := &http.Server{Handler: s.routes()}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	go watcher.Start(ctx)
	go s.buildLoop(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, c := context.WithTimeout(context.Background(), 3*time.Second)
		defer c()
		httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-serveErr:
		if err != nil {
			return errors.New("E141").Wrap(err)
		}
		return nil
	}
}

// listen binds the configured dev address, falling back to an ephemeral
// port when the configured one is taken.
func (s *Server) listen() (net.Listener, error) {
	addr := s.cfg.DevAddress()
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln, nil
	}

	fallback := s.cfg.Dev.Host + ":0"
	ln, ferr := net.Listen("tcp", fallback)
	if ferr != nil {
		return nil, errors.New("E141").
			WithDetail("Cannot listen on " + addr + ": " + err.Error()).
			Wrap(err)
	}

	s.reporter.Warn("Port %d is busy, using %s instead", s.cfg.Dev.Port, ln.Addr())
	return ln, nil
}

// watchPaths collects the source directories that feed the build, plus
// any extra configured paths.
func (s *Server) watchPaths() []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	pkg := strings.TrimPrefix(s.cfg.Server.Package, "./")
	add(filepath.Join(s.cfg.Dir(), filepath.FromSlash(pkg)))
	add(filepath.Dir(s.cfg.ClientEntryPath()))
	add(s.cfg.PublicPath())
	for _, p := range s.cfg.Dev.Watch {
		if filepath.IsAbs(p) {
			add(p)
		} else {
			add(filepath.Join(s.cfg.Dir(), filepath.FromSlash(p)))
		}
	}
	return paths
}

func (s *Server) routes() chi.Router {
	handler := &server.Handler{
		PublicDir: s.cfg.PublicPath(),
		BuildDir:  s.cfg.BuildAssetsPath(),
		Source:    s,
		Logger:    s.logger,
		NotReady:  s.placeholder,
		Transform: InjectReloadScript,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(ReloadPath, s.reload.ServeHTTP)
	r.Mount("/", handler.Routes())
	return r
}

// buildLoop runs the initial build, then rebuilds after each quiet period
// following a change.
func (s *Server) buildLoop(ctx context.Context) {
	s.rebuild(ctx)

	const quiet = 150 * time.Millisecond
	var pending []Change
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.changes:
			pending = append(pending, c)
			if timer == nil {
				timer = time.NewTimer(quiet)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(quiet)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			batch := pending
			pending = nil
			s.handleChanges(ctx, batch)
		}
	}
}

// handleChanges decides between a rebuild and a plain browser refresh.
// Public files are served from disk, so changes to them skip the build.
func (s *Server) handleChanges(ctx context.Context, batch []Change) {
	publicDir := s.cfg.PublicPath()
	needsBuild := false
	cssOnly := true

	for _, c := range batch {
		inPublic := publicDir != "" && strings.HasPrefix(c.Path, publicDir+string(filepath.Separator))
		if !inPublic {
			needsBuild = true
		}
		if c.Kind != KindCSS {
			cssOnly = false
		}
	}

	if needsBuild {
		s.rebuild(ctx)
		return
	}
	if cssOnly {
		s.reload.NotifyCSS("")
		return
	}
	s.reload.NotifyReload()
}

// rebuild runs the full pipeline and swaps in the new generation on
// success. On failure the previous generation keeps serving and browsers
// show the error overlay.
func (s *Server) rebuild(ctx context.Context) {
	start := time.Now()

	m, err := build.Run(ctx, s.cfg, config.DevEnv, false, s.reporter)
	if err != nil {
		s.buildFailed(err)
		return
	}

	asset, ok := m.Asset(s.cfg.Server.Name)
	if !ok {
		s.buildFailed(errors.New("E111").
			WithDetail("Manifest has no " + s.cfg.Server.Name + " entry"))
		return
	}

	bundlePath := filepath.Join(s.cfg.BuildAssetsPath(), filepath.FromSlash(asset))
	handle, err := render.Load(bundlePath, s.logger.Named("render"))
	if err != nil {
		s.buildFailed(errors.New("E141").
			WithDetail("Failed to load render bundle: " + err.Error()).
			Wrap(err))
		return
	}

	s.swap(&generation{handle: handle, manifest: m})

	empty := ""
	s.lastErr.Store(&empty)
	s.reporter.Info("Build complete in %s", time.Since(start).Round(time.Millisecond))
	s.reload.ClearError()
	s.reload.NotifyReload()
}

func (s *Server) buildFailed(err error) {
	msg := errorText(err)
	s.lastErr.Store(&msg)
	s.reporter.Error("%s", msg)
	s.reload.NotifyError(msg)
}

// errorText flattens a build failure into overlay text, preferring the
// raw diagnostics over the step wrapper.
func errorText(err error) string {
	var se *errors.Error
	if stderrors.As(err, &se) && se.Detail != "" {
		return se.Message + "\n\n" + se.Detail
	}
	return err.Error()
}

// placeholder serves requests arriving before the first successful build:
// a waiting page, or the last build failure. The reload script is
// included so the page refreshes itself once a build lands.
func (s *Server) placeholder(w http.ResponseWriter, r *http.Request) {
	var body string
	if msg := s.lastErr.Load(); msg != nil && *msg != "" {
		body = fmt.Sprintf(placeholderPage, "Build failed",
			"<pre>"+html.EscapeString(*msg)+"</pre>")
	} else {
		body = fmt.Sprintf(placeholderPage, "Compiling",
			"<p>The first build is still running. This page reloads when it finishes.</p>")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write(InjectReloadScript([]byte(body)))
}

const placeholderPage = `<!DOCTYPE html>
<html>
<head><title>slipway dev</title>
<style>
body { font-family: monospace; background: #111; color: #eee; padding: 40px; }
pre { background: #1a1a1a; padding: 20px; border-radius: 8px; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>%s</h1>
%s
</body>
</html>`

// shutdown kills the current render bundle and drops reload connections.
func (s *Server) shutdown() {
	s.reload.Close()
	if gen := s.current.Swap(nil); gen != nil {
		gen.retire()
	}
}
