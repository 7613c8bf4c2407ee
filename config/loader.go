package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat is the encoding of a configuration file
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// candidates are tried in order in every search path
var candidates = []string{
	"jinart.yaml", "jinart.yml",
	"config.yaml", "config.yml",
	"jinart.json", "config.json",
}

// Loader reads a configuration file over a set of defaults and then applies
// PREFIX_SECTION_FIELD environment overrides.
type Loader struct {
	searchPaths []string
	envPrefix   string
	defaults    *Config
	lookupEnv   func(string) (string, bool)
}

// NewLoader returns a loader that searches the working directory, ./config,
// /etc/jinart and ~/.jinart, with the JINA environment prefix.
func NewLoader() *Loader {
	paths := []string{".", "config", "/etc/jinart"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".jinart"))
	}
	return &Loader{
		searchPaths: paths,
		envPrefix:   "JINA",
		defaults:    DefaultConfig(),
		lookupEnv:   os.LookupEnv,
	}
}

func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig replaces the values used for fields a file leaves out.
// cfg itself is never modified.
func (l *Loader) SetDefaultConfig(cfg *Config) *Loader {
	l.defaults = cfg
	return l
}

func (l *Loader) base() *Config {
	src := l.defaults
	if src == nil {
		src = DefaultConfig()
	}
	cfg := *src
	cfg.Log.Fields = maps.Clone(src.Log.Fields)
	return &cfg
}

// Load reads filename, or discovers a file through AutoLoad when filename is
// empty.
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.AutoLoad()
	}
	return l.LoadFromFile(filename)
}

// AutoLoad loads the first candidate file found in the search paths. With
// no file at all the defaults are used, still subject to the environment.
func (l *Loader) AutoLoad() (*Config, error) {
	for _, dir := range l.searchPaths {
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			if st, err := os.Stat(path); err == nil && !st.IsDir() {
				return l.LoadFromFile(path)
			}
		}
	}
	return l.complete(l.base())
}

// LoadFromFile reads one file. The format comes from its extension.
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatOf(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, filename)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	cfg := l.base()
	if err := decode(data, format, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return l.complete(cfg)
}

// LoadFromReader decodes r over the defaults. Unlike the file loaders it
// neither reads the environment nor validates.
func (l *Loader) LoadFromReader(r io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := l.base()
	if err := decode(data, format, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) complete(cfg *Config) (*Config, error) {
	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidateError, err)
	}
	return cfg, nil
}

func formatOf(filename string) (ConfigFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported config file extension %q", ext)
}

// decode unmarshals data over cfg, leaving absent fields untouched.
func decode(data []byte, format ConfigFormat, cfg *Config) error {
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	case FormatJSON:
		err = json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigParseError, err)
	}
	return nil
}

type envSetter func(cfg *Config, val string) error

func envString(field func(*Config) *string) envSetter {
	return func(cfg *Config, val string) error {
		*field(cfg) = val
		return nil
	}
}

func envBool(field func(*Config) *bool) envSetter {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func envInt(field func(*Config) *int) envSetter {
	return func(cfg *Config, val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

// envOverrides maps variable names, without the prefix, to the field they
// set.
var envOverrides = []struct {
	name string
	set  envSetter
}{
	{"APP_NAME", envString(func(c *Config) *string { return &c.App.Name })},
	{"APP_ENVIRONMENT", func(c *Config, v string) error {
		c.App.Environment = Environment(strings.ToLower(v))
		return nil
	}},
	{"APP_DEBUG", envBool(func(c *Config) *bool { return &c.App.Debug })},
	{"LOG_LEVEL", func(c *Config, v string) error {
		c.Log.Level = LogLevel(strings.ToLower(v))
		return nil
	}},
	{"LOG_FORMAT", envString(func(c *Config) *string { return &c.Log.Format })},
	{"LOG_OUTPUT", envString(func(c *Config) *string { return &c.Log.Output })},
	{"RUNTIME_WORKERS", envInt(func(c *Config) *int { return &c.Runtime.Workers })},
	{"RUNTIME_MAX_CELLS_PER_ACTOR", envInt(func(c *Config) *int { return &c.Runtime.MaxCellsPerActor })},
	{"RUNTIME_FATAL_EXIT_CODE", envInt(func(c *Config) *int { return &c.Runtime.FatalExitCode })},
	{"RUNTIME_SHUTDOWN_TIMEOUT", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Runtime.ShutdownTimeout = d
		return nil
	}},
	{"RUNTIME_UI_ENABLED", envBool(func(c *Config) *bool { return &c.Runtime.UI.Enabled })},
	{"RUNTIME_UI_EVENT_BUFFER", envInt(func(c *Config) *int { return &c.Runtime.UI.EventBuffer })},
}

// applyEnv sets every field whose variable is present and non-empty.
func (l *Loader) applyEnv(cfg *Config) error {
	lookup := l.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, o := range envOverrides {
		key := l.envPrefix + "_" + o.name
		val, ok := lookup(key)
		if !ok || val == "" {
			continue
		}
		if err := o.set(cfg, val); err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrEnvironmentVarError, key, val, err)
		}
	}
	return nil
}
