package build

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/errors"
	"github.com/slipway-dev/slipway/internal/manifest"
	"github.com/slipway-dev/slipway/internal/report"
)

func testConfig(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if _, ok := files["slipway.json"]; !ok {
		files["slipway.json"] = `{}`
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestValidateEnvironmentPresent(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"config/production.json": `{}`,
	})
	if err := ValidateEnvironment(cfg, "production"); err != nil {
		t.Errorf("existing environment rejected: %v", err)
	}
}

func TestValidateEnvironmentAbsent(t *testing.T) {
	cfg := testConfig(t, map[string]string{})
	err := ValidateEnvironment(cfg, "staging")
	if err == nil {
		t.Fatal("missing environment accepted")
	}
	if !errors.IsCode(err, "E101") {
		t.Errorf("error = %v, want E101 ConfigurationMissing", err)
	}
}

func TestValidateBuildMissing(t *testing.T) {
	cfg := testConfig(t, map[string]string{})
	err := ValidateBuild(cfg, "production")
	if !errors.IsCode(err, "E111") {
		t.Errorf("error = %v, want E111 BuildMissing", err)
	}
}

func TestValidateBuildMismatch(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"dist/manifest.json": `{"main": "main.abc.js", "env": "staging"}`,
	})
	err := ValidateBuild(cfg, "production")
	if !errors.IsCode(err, "E112") {
		t.Errorf("error = %v, want E112 BuildMismatch", err)
	}
}

func TestValidateBuildMatch(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"dist/manifest.json": `{"main": "main.abc.js", "env": "production"}`,
	})
	if err := ValidateBuild(cfg, "production"); err != nil {
		t.Errorf("matching build rejected: %v", err)
	}
}

func TestValidateBuildTrimsTags(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"dist/manifest.json": `{"env": "production\n"}`,
	})
	if err := ValidateBuild(cfg, " production "); err != nil {
		t.Errorf("trimmed comparison failed: %v", err)
	}
}

func TestRunStepsAbortsOnFirstFailure(t *testing.T) {
	var ran []string
	boom := stderrors.New("boom")

	steps := []Step{
		{Name: "one", Run: func(context.Context, *Context) error {
			ran = append(ran, "one")
			return nil
		}},
		{Name: "two", Run: func(context.Context, *Context) error {
			ran = append(ran, "two")
			return boom
		}},
		{Name: "three", Run: func(context.Context, *Context) error {
			ran = append(ran, "three")
			return nil
		}},
	}

	bctx := &Context{Reporter: report.Discard}
	err := bctx.RunSteps(context.Background(), steps)
	if err == nil {
		t.Fatal("expected failure")
	}

	var stepErr *StepError
	if !stderrors.As(err, &stepErr) {
		t.Fatalf("error type = %T", err)
	}
	if stepErr.Step != "two" {
		t.Errorf("failure attributed to %q, want two", stepErr.Step)
	}
	if !stderrors.Is(err, boom) {
		t.Error("cause not preserved")
	}
	if strings.Join(ran, ",") != "one,two" {
		t.Errorf("ran = %v, steps after the failure must not execute", ran)
	}
}

func TestRunStepsAllSucceed(t *testing.T) {
	var ran int
	steps := []Step{
		{Name: "a", Run: func(context.Context, *Context) error { ran++; return nil }},
		{Name: "b", Run: func(context.Context, *Context) error { ran++; return nil }},
	}

	bctx := &Context{Reporter: report.Discard}
	if err := bctx.RunSteps(context.Background(), steps); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
}

func TestRunStepsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []Step{
		{Name: "never", Run: func(context.Context, *Context) error {
			t.Error("step ran after cancellation")
			return nil
		}},
	}

	bctx := &Context{Reporter: report.Discard}
	if err := bctx.RunSteps(ctx, steps); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestStepsOrder(t *testing.T) {
	var names []string
	for _, s := range Steps() {
		names = append(names, s.Name)
	}
	want := "clean,build server,build client,write manifest"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("step order = %q, want %q", got, want)
	}
}

func TestStepWriteManifest(t *testing.T) {
	cfg := testConfig(t, map[string]string{})
	if err := os.MkdirAll(cfg.OutputPath(), 0755); err != nil {
		t.Fatal(err)
	}

	bctx := &Context{
		Config:        cfg,
		Env:           "dev",
		Reporter:      report.Discard,
		ServerEntries: manifest.Entries{"server": "server.xyz789.js"},
		ClientEntries: manifest.Entries{"main": "main.abc123.js"},
	}

	if err := stepWriteManifest(context.Background(), bctx); err != nil {
		t.Fatalf("stepWriteManifest: %v", err)
	}

	loaded, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		t.Fatalf("persisted manifest unreadable: %v", err)
	}
	if loaded.Env() != "dev" || loaded.Len() != 2 {
		t.Errorf("Env = %q, Len = %d", loaded.Env(), loaded.Len())
	}
	if bctx.Manifest == nil {
		t.Error("context manifest not set")
	}
}

func TestRunValidatesEnvironmentFirst(t *testing.T) {
	cfg := testConfig(t, map[string]string{})

	_, err := Run(context.Background(), cfg, "nosuch", true, report.Discard)
	if !errors.IsCode(err, "E101") {
		t.Errorf("error = %v, want E101 before any step runs", err)
	}
	if _, statErr := os.Stat(cfg.OutputPath()); !os.IsNotExist(statErr) {
		t.Error("output directory created despite failed validation")
	}
}
