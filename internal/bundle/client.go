package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/errors"
)

// ClientBundler bundles the client entry point with esbuild.
type ClientBundler struct {
	cfg    *config.Config
	minify bool
}

// NewClientBundler creates a client bundler.
func NewClientBundler(cfg *config.Config, minify bool) *ClientBundler {
	return &ClientBundler{cfg: cfg, minify: minify}
}

// Bundle runs esbuild and returns normalized stats. Compile errors come
// back in Stats.Errors; a Go error means the tool could not be invoked.
func (b *ClientBundler) Bundle(ctx context.Context) (*Stats, error) {
	start := time.Now()

	outDir := b.cfg.BuildAssetsPath()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.New("E121").Wrap(err)
	}

	metaPath := filepath.Join(b.cfg.OutputPath(), ".metafile.json")

	bin, prefix, err := esbuildCommand()
	if err != nil {
		return nil, err
	}

	args := append(prefix,
		b.cfg.Client.Entry,
		"--bundle",
		"--format=iife",
		"--entry-names=[name].[hash]",
		"--outdir="+outDir,
		"--metafile="+metaPath,
	)
	if b.minify {
		args = append(args, "--minify")
	}
	if b.cfg.Build.SourceMaps {
		args = append(args, "--sourcemap")
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = b.cfg.Dir()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	stats := &Stats{
		Target:      TargetClient,
		Entrypoints: make(map[string][]string),
		Duration:    time.Since(start),
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			stats.Errors = parseEsbuildDiagnostics(stderr.String())
			return stats, nil
		}
		return nil, errors.New("E121").
			WithDetail("esbuild could not be started: " + runErr.Error()).
			WithSuggestion("Install esbuild or Node.js (npx) and re-run the build").
			Wrap(runErr)
	}

	stats.Warnings = parseEsbuildWarnings(stderr.String())

	meta, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, errors.New("E121").
			WithDetail("esbuild metafile missing: " + err.Error()).
			Wrap(err)
	}
	os.Remove(metaPath)

	entries, err := ParseMetafile(meta, map[string]string{
		filepath.ToSlash(b.cfg.Client.Entry): b.cfg.Client.Name,
	})
	if err != nil {
		return nil, err
	}
	stats.Entrypoints = entries

	return stats, nil
}

// esbuildCommand locates esbuild, preferring a direct binary over npx.
func esbuildCommand() (bin string, argPrefix []string, err error) {
	if path, err := exec.LookPath("esbuild"); err == nil {
		return path, nil, nil
	}
	if path, err := exec.LookPath("npx"); err == nil {
		return path, []string{"esbuild"}, nil
	}
	return "", nil, errors.New("E121").
		WithDetail("neither esbuild nor npx found in PATH").
		WithSuggestion("Install esbuild (https://esbuild.github.io) or Node.js")
}

// metafile mirrors the fields of esbuild's JSON metafile that we consume.
type metafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
	} `json:"outputs"`
}

// ParseMetafile extracts entry name → emitted filenames from an esbuild
// metafile. entryNames maps entry-point source paths (slash-separated,
// project-relative) to logical manifest names. Outputs without an
// entryPoint (source maps, chunks) attach to the entry emitted just before
// them only when they share its basename stem; otherwise they are skipped.
func ParseMetafile(data []byte, entryNames map[string]string) (map[string][]string, error) {
	var meta metafile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.New("E121").
			WithDetail("invalid esbuild metafile: " + err.Error()).
			Wrap(err)
	}

	entries := make(map[string][]string)

	// First pass: primary assets.
	stems := make(map[string]string) // output stem -> entry name
	for out, info := range meta.Outputs {
		if info.EntryPoint == "" {
			continue
		}
		name, ok := entryNames[filepath.ToSlash(info.EntryPoint)]
		if !ok {
			name = strings.TrimSuffix(filepath.Base(info.EntryPoint), filepath.Ext(info.EntryPoint))
		}
		base := filepath.Base(out)
		entries[name] = append([]string{base}, entries[name]...)
		stems[stripExts(base)] = name
	}

	// Second pass: secondary outputs (e.g. .js.map) grouped by stem.
	for out, info := range meta.Outputs {
		if info.EntryPoint != "" {
			continue
		}
		base := filepath.Base(out)
		if name, ok := stems[stripExts(base)]; ok {
			entries[name] = append(entries[name], base)
		}
	}

	return entries, nil
}

// stripExts removes every extension: "main.abc123.js.map" -> "main".
func stripExts(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// parseEsbuildDiagnostics splits esbuild stderr into diagnostics.
func parseEsbuildDiagnostics(out string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		diags = append(diags, Diagnostic{Text: line})
	}
	if len(diags) == 0 {
		diags = []Diagnostic{{Text: "esbuild failed without diagnostics"}}
	}
	return diags
}

// parseEsbuildWarnings extracts warning lines from esbuild stderr.
func parseEsbuildWarnings(out string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "warning") || strings.HasPrefix(line, "▲") {
			diags = append(diags, Diagnostic{Text: line})
		}
	}
	return diags
}
