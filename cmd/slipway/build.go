package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/slipway-dev/slipway/internal/build"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/spf13/cobra"
)

func buildCmd() *cobra.Command {
	var (
		minify   bool
		reporter string
	)

	cmd := &cobra.Command{
		Use:   "build <environment>",
		Short: "Build for an environment",
		Long: `Compile the render bundle and the client bundle for an environment.

The environment must have a configuration overlay at config/<env>.json.
Output goes to the configured directory (dist by default):

  dist/build/       fingerprinted bundles, served under /build/
  dist/manifest.json  entry point names mapped to built assets

Examples:
  slipway build production
  slipway build staging --minify=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(args[0], minify, cmd.Flags().Changed("minify"),
				reporter, cmd.Flags().Changed("reporter"))
		},
	}

	cmd.Flags().BoolVar(&minify, "minify", true, "Minify the client bundle")
	cmd.Flags().StringVar(&reporter, "reporter", report.StylePretty, "Progress style: pretty, plain, or json")

	return cmd
}

func runBuild(env string, minify, minifySet bool, reporterStyle string, reporterSet bool) error {
	r, err := newReporter(reporterStyle, reporterSet)
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := config.FindProjectRoot(wd)
	if err != nil {
		return err
	}

	cfg, err := config.LoadEnv(root, env)
	if err != nil {
		return err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The flag wins only when given explicitly; otherwise the config decides.
	if !minifySet && cfg.Build.Minify != nil {
		minify = *cfg.Build.Minify
	}

	fmt.Printf("  Building %s...\n\n", env)

	ctx, cancel := signalContext()
	defer cancel()

	m, err := build.Run(ctx, cfg, env, minify, r)
	if err != nil {
		return err
	}

	fmt.Println()
	success("Built %d entries for %s", m.Len(), env)
	info("Manifest: %s", cfg.ManifestPath())
	return nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
