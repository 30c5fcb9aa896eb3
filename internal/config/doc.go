// Package config loads and validates slipway project configuration.
//
// A project is identified by a slipway.json file at its root. Named build
// environments live as overlay files under config/ (config/production.json,
// config/dev.json, ...); an overlay is merged over the project defaults when
// an environment is selected. Serve options additionally accept environment
// variable overrides (HOSTNAME, PORT, and the SERVER_* namespace).
package config
