package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/slipway-dev/slipway/internal/build"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/manifest"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/slipway-dev/slipway/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		host     string
		port     int
		gzip     bool
		metrics  bool
		reporter string
	)

	cmd := &cobra.Command{
		Use:   "serve [environment]",
		Short: "Serve the most recent build",
		Long: `Serve the build recorded in the manifest.

The environment is the one the build was made for; no rebuild happens.
Naming an environment asserts the build matches it and fails otherwise.
Built assets under /build/ get long-lived cache headers, public files
are served as-is, and everything else goes to the render bundle.

Examples:
  slipway serve
  slipway serve production
  slipway serve --port=8080 --gzip=false`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := ""
			if len(args) == 1 {
				env = args[0]
			}
			return runServe(env, host, port, gzip, cmd.Flags().Changed("gzip"), metrics,
				reporter, cmd.Flags().Changed("reporter"))
		},
	}

	cmd.Flags().StringVarP(&host, "hostname", "H", "", "Hostname to bind to (default from slipway.json)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from slipway.json)")
	cmd.Flags().BoolVar(&gzip, "gzip", true, "Compress responses")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics on /metrics")
	cmd.Flags().StringVar(&reporter, "reporter", report.StylePretty, "Progress style: pretty, plain, or json")

	return cmd
}

func runServe(env, host string, port int, gzip, gzipSet, metrics bool, reporterStyle string, reporterSet bool) error {
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

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	// Naming an environment asserts the persisted build was made for it.
	if env != "" {
		if err := build.ValidateBuild(cfg, env); err != nil {
			return err
		}
	}

	// Merge the overlay for the environment the build was made for,
	// when one exists. The manifest is authoritative for the env name.
	if m, err := manifest.Load(cfg.ManifestPath()); err == nil {
		if _, statErr := os.Stat(cfg.EnvConfigPath(m.Env())); statErr == nil {
			if merged, err := config.LoadEnv(root, m.Env()); err == nil {
				cfg = merged
			}
		}
	}

	cfg.ApplyEnvOverrides()
	if host != "" {
		cfg.Serve.Host = host
	}
	if port > 0 {
		cfg.Serve.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !gzipSet && cfg.Serve.Gzip != nil {
		gzip = *cfg.Serve.Gzip
	}

	s, err := server.New(server.Options{
		Config:   cfg,
		Gzip:     gzip,
		Metrics:  metrics,
		Reporter: r,
		Logger:   hclog.New(&hclog.LoggerOptions{Name: "slipway"}),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return s.Start(ctx)
}
