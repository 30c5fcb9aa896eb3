// Package errors provides structured, coded errors for the slipway CLI.
//
// Every anticipated failure has a registered code (E101, E111, ...) with a
// category, a short message, and a remediation hint. Errors carry optional
// detail text (for example raw bundler diagnostics) and wrap an underlying
// cause for errors.Is/As. Format() renders a colored, human-readable report
// for terminal output.
//
// Codes:
//
//	E101  environment configuration missing
//	E102  configuration file invalid
//	E103  invalid port
//	E111  no prior build found
//	E112  prior build environment mismatch
//	E121  bundler reported compile errors
//	E131  render function failed at request time
//	E141  server startup failure
package errors
