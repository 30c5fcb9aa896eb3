// Package bundle invokes the external build tools and normalizes their
// output into Stats, the one statistics shape the manifest deriver consumes.
//
// Two targets exist: the client bundle (esbuild) and the server render
// bundle (go build). Each invocation produces a Stats value mapping entry
// names to emitted asset filenames, plus any compile diagnostics. Compile
// failures are reported through Stats.Errors rather than a Go error so the
// caller can distinguish them from infrastructure failures (missing tools,
// unwritable output directory).
package bundle

import (
	"strings"
	"time"
)

// Target identifies one bundler invocation.
type Target string

const (
	TargetClient Target = "client"
	TargetServer Target = "server"
)

// Diagnostic is a single compiler message.
type Diagnostic struct {
	// Text is the diagnostic message.
	Text string

	// Location is the source position, if known (file:line:col).
	Location string
}

func (d Diagnostic) String() string {
	if d.Location != "" {
		return d.Location + ": " + d.Text
	}
	return d.Text
}

// Stats is the normalized result of one bundler invocation.
type Stats struct {
	// Target is which bundle produced these stats.
	Target Target

	// Entrypoints maps entry names to emitted asset filenames, relative
	// to the build assets directory. The first element is the primary
	// asset; the rest are secondary outputs such as source maps.
	Entrypoints map[string][]string

	// Errors holds compile errors. Non-empty means the build failed.
	Errors []Diagnostic

	// Warnings holds non-fatal compiler messages.
	Warnings []Diagnostic

	// Duration is how long the invocation took.
	Duration time.Duration
}

// HasErrors reports whether the bundler reported compile errors.
func (s *Stats) HasErrors() bool {
	return len(s.Errors) > 0
}

// ErrorText returns all compile errors as one diagnostic block.
func (s *Stats) ErrorText() string {
	lines := make([]string, 0, len(s.Errors))
	for _, d := range s.Errors {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
