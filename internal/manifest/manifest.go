// Package manifest derives, merges, and persists build manifests.
//
// A manifest maps logical entry names to their emitted, possibly
// content-hashed, asset paths, and carries the environment the build was
// made for. On disk it is a single flat JSON object with one reserved key:
//
//	{
//	  "main": "main.abc123.js",
//	  "server": "server.xyz789",
//	  "env": "production"
//	}
//
// Derive projects one bundler invocation's stats into entry → asset form;
// Merge unions a server and a client projection and tags the result.
package manifest

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/slipway-dev/slipway/internal/bundle"
	"github.com/slipway-dev/slipway/internal/errors"
)

// EnvKey is the reserved manifest key holding the environment tag.
const EnvKey = "env"

// Entries maps logical entry names to their primary emitted asset path.
type Entries map[string]string

// Manifest is a merged build manifest: entry mappings plus the environment
// tag. Immutable once written to disk.
type Manifest struct {
	entries Entries
	env     string
}

// New creates a manifest from entries and an environment tag.
func New(entries Entries, env string) *Manifest {
	copied := make(Entries, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &Manifest{entries: copied, env: env}
}

// Derive projects bundler stats into entry → asset form. It fails with a
// compile error carrying the raw diagnostics if the stats report any
// errors. Warnings do not fail derivation; callers log them.
//
// Entries keep their primary emitted asset (hashed or not); secondary
// outputs such as source maps are not part of the manifest.
func Derive(stats *bundle.Stats) (Entries, error) {
	if stats.HasErrors() {
		return nil, errors.New("E121").WithDetail(stats.ErrorText())
	}

	entries := make(Entries, len(stats.Entrypoints))
	for name, assets := range stats.Entrypoints {
		if len(assets) == 0 {
			continue
		}
		entries[name] = assets[0]
	}
	return entries, nil
}

// Merge combines a server and a client projection into one manifest tagged
// with env. Keys are the union of both inputs; on collision the client
// entry wins (last write). Pure function, no I/O.
func Merge(server, client Entries, env string) *Manifest {
	merged := make(Entries, len(server)+len(client))
	for k, v := range server {
		merged[k] = v
	}
	for k, v := range client {
		merged[k] = v
	}
	return &Manifest{entries: merged, env: env}
}

// Env returns the environment tag, trimmed of surrounding whitespace.
func (m *Manifest) Env() string {
	return strings.TrimSpace(m.env)
}

// Asset returns the asset path for an entry name.
func (m *Manifest) Asset(name string) (string, bool) {
	v, ok := m.entries[name]
	return v, ok
}

// Resolve returns the asset path for an entry name, or the name unchanged
// when the manifest has no such entry.
func (m *Manifest) Resolve(name string) string {
	if v, ok := m.entries[name]; ok {
		return v
	}
	return name
}

// Entries returns a copy of the entry mappings.
func (m *Manifest) Entries() Entries {
	copied := make(Entries, len(m.entries))
	for k, v := range m.entries {
		copied[k] = v
	}
	return copied
}

// Names returns the entry names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.entries))
	for k := range m.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries, excluding the env tag.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// MarshalJSON flattens entries and the env tag into one object.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(m.entries)+1)
	for k, v := range m.entries {
		flat[k] = v
	}
	flat[EnvKey] = m.env
	return json.Marshal(flat)
}

// UnmarshalJSON splits the reserved env key back out of the flat object.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	m.env = flat[EnvKey]
	delete(flat, EnvKey)
	m.entries = flat
	return nil
}

// Save writes the manifest as indented JSON to path.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// Load reads a persisted manifest. A missing file is a BuildMissing error.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E111").
				WithDetail("No manifest found at " + path)
		}
		return nil, errors.New("E111").Wrap(err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.New("E111").
			WithDetail("Corrupt manifest at " + path + ": " + err.Error())
	}
	return m, nil
}
