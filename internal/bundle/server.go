package bundle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/errors"
)

// ServerBundler compiles the server render bundle with the Go toolchain.
// The result is a standalone plugin executable, fingerprinted with a
// content hash like every other build asset.
type ServerBundler struct {
	cfg *config.Config
}

// NewServerBundler creates a server bundler.
func NewServerBundler(cfg *config.Config) *ServerBundler {
	return &ServerBundler{cfg: cfg}
}

// Bundle compiles the render plugin package. Compile errors come back in
// Stats.Errors; a Go error means the toolchain could not be invoked.
func (b *ServerBundler) Bundle(ctx context.Context) (*Stats, error) {
	start := time.Now()

	outDir := b.cfg.BuildAssetsPath()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.New("E121").Wrap(err)
	}

	tmpPath := filepath.Join(outDir, ".server.tmp")

	args := []string{"build", "-trimpath", "-o", tmpPath}
	args = append(args, b.cfg.Server.Package)

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = b.cfg.Dir()
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	stats := &Stats{
		Target:      TargetServer,
		Entrypoints: make(map[string][]string),
		Duration:    time.Since(start),
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			stats.Errors = parseGoDiagnostics(stderr.String())
			return stats, nil
		}
		return nil, errors.New("E121").
			WithDetail("go build could not be started: " + runErr.Error()).
			WithSuggestion("Install Go from https://go.dev/dl/").
			Wrap(runErr)
	}

	hash, err := hashFile(tmpPath)
	if err != nil {
		return nil, errors.New("E121").Wrap(err)
	}

	name := fmt.Sprintf("%s.%s", b.cfg.Server.Name, hash[:8])
	finalPath := filepath.Join(outDir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, errors.New("E121").Wrap(err)
	}
	if err := os.Chmod(finalPath, 0755); err != nil {
		return nil, errors.New("E121").Wrap(err)
	}

	stats.Entrypoints[b.cfg.Server.Name] = []string{name}
	return stats, nil
}

// parseGoDiagnostics splits go build stderr into diagnostics, keeping the
// file:line:col prefix as the location when present.
func parseGoDiagnostics(out string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range splitLines(out) {
		if line == "" || line[0] == '#' {
			continue
		}
		diag := Diagnostic{Text: line}
		if loc, rest, ok := splitLocation(line); ok {
			diag.Location = loc
			diag.Text = rest
		}
		diags = append(diags, diag)
	}
	if len(diags) == 0 {
		diags = []Diagnostic{{Text: "go build failed without diagnostics"}}
	}
	return diags
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range bytes.Split([]byte(out), []byte("\n")) {
		lines = append(lines, string(bytes.TrimSpace(line)))
	}
	return lines
}

// splitLocation splits "file.go:12:3: message" into location and message.
func splitLocation(line string) (loc, rest string, ok bool) {
	colons := 0
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		colons++
		if colons == 3 {
			rest = line[i+1:]
			for len(rest) > 0 && rest[0] == ' ' {
				rest = rest[1:]
			}
			return line[:i], rest, true
		}
	}
	return "", "", false
}

// hashFile returns the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
