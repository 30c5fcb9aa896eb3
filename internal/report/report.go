// Package report provides progress reporting for builds and servers.
//
// A Reporter receives step lifecycle events from the build orchestrator and
// status messages from the servers. The --reporter flag selects a style:
// "pretty" (ANSI, the default), "plain" (timestamped, no color), or "json"
// (one JSON object per line, for log collectors).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Reporter receives build and server progress events.
type Reporter interface {
	// StepStart is called when a named build step begins.
	StepStart(name string)

	// StepDone is called when a step completes. slow is true when the
	// step exceeded its diagnostic threshold.
	StepDone(name string, d time.Duration, slow bool)

	// StepFailed is called when a step fails, aborting the build.
	StepFailed(name string, err error)

	// Info reports a status message.
	Info(format string, args ...any)

	// Warn reports a non-fatal problem.
	Warn(format string, args ...any)

	// Error reports a failure.
	Error(format string, args ...any)
}

// Styles accepted by New.
const (
	StylePretty = "pretty"
	StylePlain  = "plain"
	StyleJSON   = "json"
)

// New returns a Reporter writing to w in the given style.
func New(style string, w io.Writer) (Reporter, error) {
	switch style {
	case StylePretty, "":
		return &prettyReporter{w: w}, nil
	case StylePlain:
		return &plainReporter{w: w}, nil
	case StyleJSON:
		return &jsonReporter{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown reporter style %q (expected pretty, plain, or json)", style)
	}
}

// prettyReporter prints colored, human-oriented status lines.
type prettyReporter struct {
	w io.Writer
}

func (r *prettyReporter) StepStart(name string) {
	fmt.Fprintf(r.w, "  %s...\n", name)
}

func (r *prettyReporter) StepDone(name string, d time.Duration, slow bool) {
	if slow {
		fmt.Fprintf(r.w, "\033[33m⚠\033[0m %s (%s, slow)\n", name, d.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(r.w, "\033[32m✓\033[0m %s (%s)\n", name, d.Round(time.Millisecond))
}

func (r *prettyReporter) StepFailed(name string, err error) {
	fmt.Fprintf(r.w, "\033[31m✗\033[0m %s: %s\n", name, err)
}

func (r *prettyReporter) Info(format string, args ...any) {
	fmt.Fprintf(r.w, "  %s\n", fmt.Sprintf(format, args...))
}

func (r *prettyReporter) Warn(format string, args ...any) {
	fmt.Fprintf(r.w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

func (r *prettyReporter) Error(format string, args ...any) {
	fmt.Fprintf(r.w, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}

// plainReporter prints timestamped lines without color, for CI logs.
type plainReporter struct {
	w io.Writer
}

func (r *plainReporter) line(level, msg string) {
	fmt.Fprintf(r.w, "[%s] %s %s\n", time.Now().Format("15:04:05"), level, msg)
}

func (r *plainReporter) StepStart(name string) {
	r.line("INFO", "step "+name+" started")
}

func (r *plainReporter) StepDone(name string, d time.Duration, slow bool) {
	suffix := ""
	if slow {
		suffix = " (slow)"
	}
	r.line("INFO", fmt.Sprintf("step %s done in %s%s", name, d.Round(time.Millisecond), suffix))
}

func (r *plainReporter) StepFailed(name string, err error) {
	r.line("ERROR", fmt.Sprintf("step %s failed: %s", name, err))
}

func (r *plainReporter) Info(format string, args ...any) {
	r.line("INFO", fmt.Sprintf(format, args...))
}

func (r *plainReporter) Warn(format string, args ...any) {
	r.line("WARN", fmt.Sprintf(format, args...))
}

func (r *plainReporter) Error(format string, args ...any) {
	r.line("ERROR", fmt.Sprintf(format, args...))
}

// jsonEvent is one line of json reporter output.
type jsonEvent struct {
	Time     string `json:"time"`
	Event    string `json:"event"`
	Step     string `json:"step,omitempty"`
	Duration string `json:"duration,omitempty"`
	Slow     bool   `json:"slow,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// jsonReporter emits one JSON object per event.
type jsonReporter struct {
	enc *json.Encoder
}

func (r *jsonReporter) emit(ev jsonEvent) {
	ev.Time = time.Now().UTC().Format(time.RFC3339)
	r.enc.Encode(ev)
}

func (r *jsonReporter) StepStart(name string) {
	r.emit(jsonEvent{Event: "step_start", Step: name})
}

func (r *jsonReporter) StepDone(name string, d time.Duration, slow bool) {
	r.emit(jsonEvent{Event: "step_done", Step: name, Duration: d.String(), Slow: slow})
}

func (r *jsonReporter) StepFailed(name string, err error) {
	r.emit(jsonEvent{Event: "step_failed", Step: name, Error: err.Error()})
}

func (r *jsonReporter) Info(format string, args ...any) {
	r.emit(jsonEvent{Event: "info", Message: fmt.Sprintf(format, args...)})
}

func (r *jsonReporter) Warn(format string, args ...any) {
	r.emit(jsonEvent{Event: "warn", Message: fmt.Sprintf(format, args...)})
}

func (r *jsonReporter) Error(format string, args ...any) {
	r.emit(jsonEvent{Event: "error", Message: fmt.Sprintf(format, args...)})
}

// Discard is a Reporter that drops all events. Useful in tests.
var Discard Reporter = discard{}

type discard struct{}

func (discard) StepStart(string)                       {}
func (discard) StepDone(string, time.Duration, bool)   {}
func (discard) StepFailed(string, error)               {}
func (discard) Info(string, ...any)                    {}
func (discard) Warn(string, ...any)                    {}
func (discard) Error(string, ...any)                   {}
