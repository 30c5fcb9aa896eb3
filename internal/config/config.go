package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/slipway-dev/slipway/internal/errors"
)

const (
	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "slipway.json"

	// EnvDirName is the directory holding per-environment overlays.
	EnvDirName = "config"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DevEnv is the environment name the dev server always targets.
	DevEnv = "dev"
)

// Config represents the complete slipway.json configuration, after any
// environment overlay has been merged in.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Client contains client bundle settings.
	Client ClientConfig `json:"client,omitempty"`

	// Server contains server bundle settings.
	Server ServerConfig `json:"server,omitempty"`

	// Build contains build pipeline settings.
	Build BuildConfig `json:"build,omitempty"`

	// Serve contains production server settings.
	Serve ServeConfig `json:"serve,omitempty"`

	// Dev contains development server settings.
	Dev DevConfig `json:"dev,omitempty"`

	// Static contains static file settings.
	Static StaticConfig `json:"static,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// ClientConfig contains client bundle settings.
type ClientConfig struct {
	// Entry is the client entry point, relative to the project root.
	Entry string `json:"entry,omitempty"`

	// Name is the logical entry name used in the manifest.
	Name string `json:"name,omitempty"`
}

// ServerConfig contains server bundle settings.
type ServerConfig struct {
	// Package is the Go package of the render plugin, relative to the
	// project root (e.g. "./server").
	Package string `json:"package,omitempty"`

	// Name is the logical entry name used in the manifest.
	Name string `json:"name,omitempty"`
}

// BuildConfig contains build pipeline settings.
type BuildConfig struct {
	// Output is the build output directory.
	Output string `json:"output,omitempty"`

	// Minify enables client bundle minification.
	Minify *bool `json:"minify,omitempty"`

	// SourceMaps enables source map generation.
	SourceMaps bool `json:"sourceMaps,omitempty"`
}

// ServeConfig contains production server settings.
type ServeConfig struct {
	// Host is the host to bind to. Empty means all interfaces.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Gzip enables response compression.
	Gzip *bool `json:"gzip,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Polling selects the watch strategy: "auto", "on", or "off".
	Polling string `json:"polling,omitempty"`

	// Watch contains extra paths to watch for changes.
	Watch []string `json:"watch,omitempty"`

	// Ignore contains patterns to skip during watch.
	Ignore []string `json:"ignore,omitempty"`
}

// StaticConfig contains static file settings.
type StaticConfig struct {
	// Dir is the directory containing public static files.
	Dir string `json:"dir,omitempty"`
}

// Load reads the project configuration from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads the project configuration from the given file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E102").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " at the project root")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadEnv loads the project configuration and merges the overlay for the
// named environment over it. The overlay file must exist; callers gate this
// with build.ValidateEnvironment.
func LoadEnv(dir, env string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}

	overlayPath := cfg.EnvConfigPath(env)
	data, err := os.ReadFile(overlayPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("Environment " + strconv.Quote(env) + " has no configuration at " + overlayPath)
		}
		return nil, errors.New("E102").Wrap(err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse " + overlayPath + ": " + err.Error())
	}

	cfg.applyDefaults()
	return cfg, nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing slipway.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E102").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run slipway from inside a project, or create " + ConfigFileName)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Client.Entry == "" {
		c.Client.Entry = "client/index.js"
	}
	if c.Client.Name == "" {
		c.Client.Name = "main"
	}
	if c.Server.Package == "" {
		c.Server.Package = "./server"
	}
	if c.Server.Name == "" {
		c.Server.Name = "server"
	}
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.Minify == nil {
		c.Build.Minify = boolPtr(true)
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = DefaultPort
	}
	if c.Serve.Gzip == nil {
		c.Serve.Gzip = boolPtr(true)
	}
	if c.Dev.Host == "" {
		c.Dev.Host = "localhost"
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Polling == "" {
		c.Dev.Polling = "auto"
	}
	if c.Static.Dir == "" {
		c.Static.Dir = "public"
	}
}

// ApplyEnvOverrides applies environment variable overrides to serve and dev
// options. HOSTNAME and PORT set the plain defaults; the SERVER_* namespace
// overrides any option and wins over the plain names.
func (c *Config) ApplyEnvOverrides() {
	if v := envFirst("SERVER_HOSTNAME", "HOSTNAME"); v != "" {
		c.Serve.Host = v
		c.Dev.Host = v
	}
	if v := envFirst("SERVER_PORT", "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Serve.Port = port
			c.Dev.Port = port
		}
	}
	if v := os.Getenv("SERVER_GZIP"); v != "" {
		c.Serve.Gzip = boolPtr(parseBool(v, true))
	}
	if v := os.Getenv("SERVER_POLLING"); v != "" {
		c.Dev.Polling = strings.ToLower(strings.TrimSpace(v))
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Serve.Port < 0 || c.Serve.Port > 65535 || c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E103").
			WithDetail("Port must be between 0 and 65535")
	}
	switch c.Dev.Polling {
	case "auto", "on", "off":
	default:
		return errors.New("E102").
			WithDetail("dev.polling must be one of auto, on, off")
	}
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project root directory.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return c.resolve(c.Build.Output)
}

// BuildAssetsPath returns the directory holding built, fingerprinted assets.
// These are served under /build/ with long-lived cache headers.
func (c *Config) BuildAssetsPath() string {
	return filepath.Join(c.OutputPath(), "build")
}

// ManifestPath returns the path of the persisted build manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutputPath(), "manifest.json")
}

// PublicPath returns the absolute path to the public static directory.
func (c *Config) PublicPath() string {
	return c.resolve(c.Static.Dir)
}

// ClientEntryPath returns the absolute path of the client entry point.
func (c *Config) ClientEntryPath() string {
	return c.resolve(c.Client.Entry)
}

// EnvConfigPath returns the path of an environment's overlay file.
func (c *Config) EnvConfigPath(env string) string {
	return filepath.Join(c.Dir(), EnvDirName, env+".json")
}

// ServeAddress returns the listen address for the production server.
func (c *Config) ServeAddress() string {
	return c.Serve.Host + ":" + strconv.Itoa(c.Serve.Port)
}

// DevAddress returns the listen address for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// envFirst returns the first non-empty value among the named variables.
func envFirst(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// parseBool interprets common boolean spellings, falling back to def.
func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func boolPtr(b bool) *bool {
	return &b
}
