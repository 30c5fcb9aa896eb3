// Package build runs the production build pipeline.
//
// A build is a fixed, ordered sequence of named steps (clean, build
// server, build client, write manifest) folded over one shared Context.
// The first failing step aborts the rest; the failure is attributed to that
// step by name. Partially written output is left as-is.
//
// The package also hosts the filesystem preconditions gating builds and
// serves: ValidateEnvironment (does the named environment's configuration
// exist) and ValidateBuild (does a prior build exist and carry the
// requested environment tag).
package build
