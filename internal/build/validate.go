package build

import (
	"os"
	"strconv"
	"strings"

	"github.com/slipway-dev/slipway/internal/config"
	"github.com/slipway-dev/slipway/internal/errors"
	"github.com/slipway-dev/slipway/internal/manifest"
)

// ValidateEnvironment checks that the named environment has a configuration
// overlay. Synchronous filesystem check, no retry.
func ValidateEnvironment(cfg *config.Config, env string) error {
	path := cfg.EnvConfigPath(env)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.New("E101").
				WithDetail("Environment " + strconv.Quote(env) + " has no configuration at " + path).
				WithSuggestion("Create " + path + " or check the environment name for typos")
		}
		return errors.New("E101").Wrap(err)
	}
	return nil
}

// ValidateBuild checks that a prior build exists and was made for the named
// environment. Fails with BuildMissing when no manifest exists and with
// BuildMismatch when the recorded tag differs. Both sides of the comparison
// are trimmed.
func ValidateBuild(cfg *config.Config, env string) error {
	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return err
	}

	want := strings.TrimSpace(env)
	if m.Env() != want {
		return errors.New("E112").
			WithDetail("Build at " + cfg.OutputPath() + " was made for " +
				strconv.Quote(m.Env()) + ", requested " + strconv.Quote(want))
	}
	return nil
}
