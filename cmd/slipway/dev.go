package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/dev"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/spf13/cobra"
)

func devCmd() *cobra.Command {
	var (
		host     string
		port     int
		polling  string
		reporter string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the development server with hot reload.

The dev server builds for the "dev" environment, watches source files,
rebuilds on change, and refreshes connected browsers. Build errors show
up as an overlay in the browser; the previous build keeps serving.

Examples:
  slipway dev
  slipway dev --port=8080
  slipway dev --polling=on`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(host, port, polling, reporter, cmd.Flags().Changed("reporter"))
		},
	}

	cmd.Flags().StringVarP(&host, "hostname", "H", "", "Hostname to bind to (default from slipway.json)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from slipway.json)")
	cmd.Flags().StringVar(&polling, "polling", "", "Watch strategy: auto, on, or off")
	cmd.Flags().StringVar(&reporter, "reporter", report.StylePretty, "Progress style: pretty, plain, or json")

	return cmd
}

func runDev(host string, port int, polling, reporterStyle string, reporterSet bool) error {
	if _, err := exec.LookPath("go"); err != nil {
		return fmt.Errorf("go is not installed or not in PATH")
	}

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

	cfg, err := config.LoadEnv(root, config.DevEnv)
	if err != nil {
		return err
	}
	cfg.ApplyEnvOverrides()
	if host != "" {
		cfg.Dev.Host = host
	}
	if port > 0 {
		cfg.Dev.Port = port
	}
	if polling != "" {
		cfg.Dev.Polling = polling
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()

	s := dev.NewServer(dev.Options{
		Config:   cfg,
		Reporter: r,
		Logger:   hclog.New(&hclog.LoggerOptions{Name: "slipway", Level: hclog.Warn}),
	})

	ctx, cancel := signalContext()
	defer cancel()

	return s.Run(ctx)
}
