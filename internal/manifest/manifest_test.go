package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slipway-dev/slipway/internal/bundle"
)

func TestDerive(t *testing.T) {
	stats := &bundle.Stats{
		Target: bundle.TargetClient,
		Entrypoints: map[string][]string{
			"main":   {"main.abc123.js", "main.abc123.js.map"},
			"vendor": {"vendor.js"},
		},
	}

	entries, err := Derive(stats)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if entries["main"] != "main.abc123.js" {
		t.Errorf("main = %q, want the primary hashed asset", entries["main"])
	}
	if entries["vendor"] != "vendor.js" {
		t.Errorf("vendor = %q, unhashed assets must be tolerated", entries["vendor"])
	}
	if len(entries) != 2 {
		t.Errorf("len = %d, want 2", len(entries))
	}
}

func TestDeriveCompileError(t *testing.T) {
	stats := &bundle.Stats{
		Target: bundle.TargetServer,
		Errors: []bundle.Diagnostic{
			{Location: "server/render.go:3:1", Text: "undefined: frob"},
		},
	}

	_, err := Derive(stats)
	if err == nil {
		t.Fatal("Derive must fail when stats report compile errors")
	}
}

func TestDeriveWarningsNonFatal(t *testing.T) {
	stats := &bundle.Stats{
		Target:      bundle.TargetClient,
		Entrypoints: map[string][]string{"main": {"main.js"}},
		Warnings:    []bundle.Diagnostic{{Text: "unused import"}},
	}
	if _, err := Derive(stats); err != nil {
		t.Fatalf("warnings must not fail derivation: %v", err)
	}
}

func TestMergeUnionAndEnv(t *testing.T) {
	server := Entries{"server": "server.xyz789.js"}
	client := Entries{"main": "main.abc123.js"}

	m := Merge(server, client, "dev")

	if m.Env() != "dev" {
		t.Errorf("Env = %q, want dev", m.Env())
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want union of disjoint keys", m.Len())
	}
	if got, _ := m.Asset("main"); got != "main.abc123.js" {
		t.Errorf("main = %q", got)
	}
	if got, _ := m.Asset("server"); got != "server.xyz789.js" {
		t.Errorf("server = %q", got)
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	server := Entries{"shared": "shared.server.js"}
	client := Entries{"shared": "shared.client.js"}

	m := Merge(server, client, "production")
	if got, _ := m.Asset("shared"); got != "shared.client.js" {
		t.Errorf("collision = %q, want client entry to win", got)
	}
}

func TestMergeDeriveEndToEnd(t *testing.T) {
	// Build with env="dev", client entry main.abc123.js and server entry
	// server.xyz789.js must yield exactly that merged manifest.
	clientStats := &bundle.Stats{
		Target:      bundle.TargetClient,
		Entrypoints: map[string][]string{"main": {"main.abc123.js"}},
	}
	serverStats := &bundle.Stats{
		Target:      bundle.TargetServer,
		Entrypoints: map[string][]string{"server": {"server.xyz789.js"}},
	}

	clientEntries, err := Derive(clientStats)
	if err != nil {
		t.Fatal(err)
	}
	serverEntries, err := Derive(serverStats)
	if err != nil {
		t.Fatal(err)
	}

	m := Merge(serverEntries, clientEntries, "dev")

	want := Entries{"main": "main.abc123.js", "server": "server.xyz789.js"}
	got := m.Entries()
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if m.Env() != "dev" {
		t.Errorf("Env = %q, want dev", m.Env())
	}
}

func TestResolve(t *testing.T) {
	m := New(Entries{"main": "main.abc123.js"}, "dev")

	if got := m.Resolve("main"); got != "main.abc123.js" {
		t.Errorf("Resolve(main) = %q", got)
	}
	if got := m.Resolve("missing.js"); got != "missing.js" {
		t.Errorf("Resolve(missing) = %q, want passthrough", got)
	}
}

func TestEnvTrimmed(t *testing.T) {
	m := New(nil, " dev\n")
	if m.Env() != "dev" {
		t.Errorf("Env = %q, want trimmed", m.Env())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m := New(Entries{"main": "main.abc123.js", "server": "server.xyz789"}, "production")

	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Env() != "production" {
		t.Errorf("Env = %q", loaded.Env())
	}
	if got, _ := loaded.Asset("main"); got != "main.abc123.js" {
		t.Errorf("main = %q", got)
	}
	if loaded.Len() != 2 {
		t.Errorf("Len = %d, the env key must not leak into entries", loaded.Len())
	}
}

func TestLoadFlatDocument(t *testing.T) {
	// The persisted format is a flat object with env alongside entries.
	path := filepath.Join(t.TempDir(), "manifest.json")
	doc := `{"main": "main.abc123.js", "server": "server.xyz789.js", "env": "dev"}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Env() != "dev" || m.Len() != 2 {
		t.Errorf("Env = %q, Len = %d", m.Env(), m.Len())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for corrupt manifest")
	}
}
