package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/slipway-dev/slipway/internal/errors"
	"github.com/slipway-dev/slipway/internal/report"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗┬  ┬┌─┐┬ ┬┌─┐┬ ┬
  ╚═╗│  │├─┘│││├─┤└┬┘
  ╚═╝┴─┘┴┴  └┴┘┴ ┴ ┴
`

func main() {
	// Environment files are optional; missing ones are not an error.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "slipway",
		Short: "Build and serve server-rendered web applications",
		Long: `Slipway is a build and serve harness for server-rendered web apps.

It compiles a render bundle and a client bundle, records the
fingerprinted output in a manifest, and serves the result:

  • slipway build <env>  compile both bundles for an environment
  • slipway serve        serve the most recent build
  • slipway dev          rebuild and hot-reload on every change`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		buildCmd(),
		serveCmd(),
		devCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError renders coded errors with their full detail and suggestion;
// anything else gets a one-line message.
func printError(err error) {
	var se *errors.Error
	if stderrors.As(err, &se) {
		fmt.Fprintln(os.Stderr, se.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
}

// newReporter builds the progress reporter for a command. An explicit
// --reporter flag wins; otherwise SERVER_REPORTER may override the default.
func newReporter(style string, explicit bool) (report.Reporter, error) {
	if !explicit {
		if v := os.Getenv("SERVER_REPORTER"); v != "" {
			style = v
		}
	}
	return report.New(style, os.Stdout)
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
