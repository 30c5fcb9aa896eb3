package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/slipway-dev/slipway/internal/bundle"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/manifest"
	"github.com/slipway-dev/slipway/internal/report"
)

// Context is the shared accumulator threaded through the build steps.
// Steps communicate only through it.
type Context struct {
	// Config is the merged project configuration for the target env.
	Config *config.Config

	// Env is the environment being built.
	Env string

	// Minify enables client bundle minification.
	Minify bool

	// Reporter receives step progress.
	Reporter report.Reporter

	// ServerEntries and ClientEntries are filled by the bundling steps.
	ServerEntries manifest.Entries
	ClientEntries manifest.Entries

	// Manifest is filled by the final step.
	Manifest *manifest.Manifest
}

// Step is a named unit of work in the build pipeline.
type Step struct {
	// Name identifies the step in progress output and failures.
	Name string

	// SlowAfter is the diagnostic threshold; a longer run is flagged
	// slow in the reporter. Zero disables the check.
	SlowAfter time.Duration

	// Run executes the step against the shared context.
	Run func(ctx context.Context, bctx *Context) error
}

// StepError attributes a build failure to the step that caused it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RunSteps executes steps in order, aborting on the first failure. Each
// step's completion gates the next; there is no rollback.
func (bctx *Context) RunSteps(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}

		bctx.Reporter.StepStart(step.Name)
		start := time.Now()

		if err := step.Run(ctx, bctx); err != nil {
			bctx.Reporter.StepFailed(step.Name, err)
			return &StepError{Step: step.Name, Err: err}
		}

		d := time.Since(start)
		bctx.Reporter.StepDone(step.Name, d, step.SlowAfter > 0 && d > step.SlowAfter)
	}
	return nil
}

// Steps returns the fixed build sequence.
func Steps() []Step {
	return []Step{
		{Name: "clean", SlowAfter: 2 * time.Second, Run: stepClean},
		{Name: "build server", SlowAfter: 30 * time.Second, Run: stepBuildServer},
		{Name: "build client", SlowAfter: 30 * time.Second, Run: stepBuildClient},
		{Name: "write manifest", SlowAfter: time.Second, Run: stepWriteManifest},
	}
}

// Run validates the environment and executes the full build pipeline.
func Run(ctx context.Context, cfg *config.Config, env string, minify bool, r report.Reporter) (*manifest.Manifest, error) {
	if err := ValidateEnvironment(cfg, env); err != nil {
		return nil, err
	}

	bctx := &Context{
		Config:   cfg,
		Env:      env,
		Minify:   minify,
		Reporter: r,
	}

	if err := bctx.RunSteps(ctx, Steps()); err != nil {
		return nil, err
	}
	return bctx.Manifest, nil
}

func stepClean(_ context.Context, bctx *Context) error {
	if err := os.RemoveAll(bctx.Config.OutputPath()); err != nil {
		return err
	}
	return os.MkdirAll(bctx.Config.BuildAssetsPath(), 0755)
}

func stepBuildServer(ctx context.Context, bctx *Context) error {
	stats, err := bundle.NewServerBundler(bctx.Config).Bundle(ctx)
	if err != nil {
		return err
	}
	logWarnings(bctx.Reporter, stats)

	entries, err := manifest.Derive(stats)
	if err != nil {
		return err
	}
	bctx.ServerEntries = entries
	return nil
}

func stepBuildClient(ctx context.Context, bctx *Context) error {
	stats, err := bundle.NewClientBundler(bctx.Config, bctx.Minify).Bundle(ctx)
	if err != nil {
		return err
	}
	logWarnings(bctx.Reporter, stats)

	entries, err := manifest.Derive(stats)
	if err != nil {
		return err
	}
	bctx.ClientEntries = entries
	return nil
}

func stepWriteManifest(_ context.Context, bctx *Context) error {
	m := manifest.Merge(bctx.ServerEntries, bctx.ClientEntries, bctx.Env)
	if err := m.Save(bctx.Config.ManifestPath()); err != nil {
		return err
	}
	bctx.Manifest = m
	return nil
}

func logWarnings(r report.Reporter, stats *bundle.Stats) {
	for _, w := range stats.Warnings {
		r.Warn("%s: %s", stats.Target, w)
	}
}
