// Package server implements the request-dispatch contract shared by the
// production (static) and development (live) servers.
//
// Dispatch order for every request: built assets under /build/ (long-lived
// cache headers, production layout), then existing public files (no special
// caching), then the render function with the current manifest. A failed
// render falls back to the error renderer with the same manifest; if that
// also fails, a generic 500 is returned.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/slipway-dev/slipway/internal/errors"
	"github.com/slipway-dev/slipway/internal/manifest"
	"github.com/slipway-dev/slipway/pkg/render"
)

// Source supplies the current (renderer, manifest) pair. Both values come
// from one Acquire call so a request can never pair a renderer from one
// build generation with a manifest from another. The pair stays valid
// until release is called; a live Source must not tear down the renderer
// while a request still holds it.
type Source interface {
	// Acquire returns the pair and a release func, or ok=false when no
	// complete build is available yet. Callers must call release exactly
	// once when done with the pair.
	Acquire() (r render.Renderer, m *manifest.Manifest, release func(), ok bool)
}

// StaticSource is a Source fixed at startup: production mode.
type StaticSource struct {
	Renderer render.Renderer
	Manifest *manifest.Manifest
}

func (s StaticSource) Acquire() (render.Renderer, *manifest.Manifest, func(), bool) {
	return s.Renderer, s.Manifest, func() {}, true
}

// Handler dispatches requests per the contract above.
type Handler struct {
	// PublicDir is the public static directory. Empty disables it.
	PublicDir string

	// BuildDir is the built-assets directory served under /build/.
	// Empty disables it.
	BuildDir string

	// Source supplies the current render state.
	Source Source

	// Logger receives per-request render failures.
	Logger hclog.Logger

	// Metrics is optional request accounting.
	Metrics *Metrics

	// NotReady serves requests arriving before the first complete build.
	// Nil means a plain 503.
	NotReady http.HandlerFunc

	// Transform optionally rewrites rendered HTML bodies (the dev server
	// injects its reload script here).
	Transform func([]byte) []byte
}

// Routes builds the chi router for the handler.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.BuildDir != "" {
		r.Get("/build/*", h.serveBuild)
		r.Head("/build/*", h.serveBuild)
	}
	r.NotFound(h.dispatch)
	return r
}

// serveBuild serves fingerprinted build output with long-lived caching.
func (h *Handler) serveBuild(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rel, ok := sanitizeRelPath(strings.TrimPrefix(r.URL.Path, "/build/"))
	if !ok {
		h.observe(routeBuild, http.StatusNotFound, start)
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(h.BuildDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		h.observe(routeBuild, http.StatusNotFound, start)
		http.NotFound(w, r)
		return
	}

	applyBuildCacheHeaders(w, rel)
	http.ServeFile(w, r, full)
	h.observe(routeBuild, http.StatusOK, start)
}

// dispatch serves public files or falls through to the renderer.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	if h.PublicDir != "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		if full, ok := h.publicFile(r.URL.Path); ok {
			start := time.Now()
			http.ServeFile(w, r, full)
			h.observe(routePublic, http.StatusOK, start)
			return
		}
	}

	h.renderRequest(w, r)
}

// publicFile resolves a URL path to an existing public file.
func (h *Handler) publicFile(urlPath string) (string, bool) {
	rel, ok := sanitizeRelPath(strings.TrimPrefix(urlPath, "/"))
	if !ok {
		return "", false
	}

	full := filepath.Join(h.PublicDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}

// renderRequest invokes the render function with the current manifest.
func (h *Handler) renderRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	renderer, m, release, ok := h.Source.Acquire()
	if !ok {
		h.observe(routeRender, http.StatusServiceUnavailable, start)
		if h.NotReady != nil {
			h.NotReady(w, r)
			return
		}
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer release()

	req := toRenderRequest(r)
	assets := m.Entries()
	env := m.Env()

	res, err := renderer.Render(req, assets, env)
	if err != nil {
		h.Metrics.renderError()
		if h.Logger != nil {
			rerr := errors.FromError(err, "E131")
			h.Logger.Error("render failed", "code", rerr.Code, "path", r.URL.Path, "error", err)
		}

		// Error pages use the same manifest so they match the build.
		res, err = renderer.RenderError(req, assets, env, err.Error())
		if err != nil {
			if h.Logger != nil {
				h.Logger.Error("error renderer failed", "path", r.URL.Path, "error", err)
			}
			h.observe(routeRender, http.StatusInternalServerError, start)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if res.Status == 0 {
			res.Status = http.StatusInternalServerError
		}
	}

	h.writeResult(w, res)
	h.observe(routeRender, statusOf(res), start)
}

// writeResult writes a render result, applying the HTML transform.
func (h *Handler) writeResult(w http.ResponseWriter, res *render.Result) {
	contentType := res.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}

	body := res.Body
	if h.Transform != nil && strings.Contains(contentType, "text/html") {
		body = h.Transform(body)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusOf(res))
	w.Write(body)
}

func statusOf(res *render.Result) int {
	if res.Status == 0 {
		return http.StatusOK
	}
	return res.Status
}

func (h *Handler) observe(route string, status int, start time.Time) {
	h.Metrics.observe(route, strconv.Itoa(status), time.Since(start).Seconds())
}

// toRenderRequest projects an HTTP request into the plugin wire form.
func toRenderRequest(r *http.Request) *render.Request {
	headers := make(map[string]string, 4)
	for _, name := range []string{"Accept", "Accept-Language", "User-Agent", "Cookie"} {
		if v := r.Header.Get(name); v != "" {
			headers[name] = v
		}
	}

	return &render.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Host:    r.Host,
		Headers: headers,
	}
}
