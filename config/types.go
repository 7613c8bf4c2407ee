// Package config loads, validates and watches the jinart runtime
// configuration.
package config

import (
	"fmt"
	"slices"
	"time"
)

// Environment names the deployment the runtime runs in
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

var environments = []Environment{EnvDevelopment, EnvTesting, EnvProduction}

func (e Environment) String() string { return string(e) }

// IsValid reports whether e is one of the known environments.
func (e Environment) IsValid() bool { return slices.Contains(environments, e) }

// LogLevel is the minimum severity that gets logged
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

func (l LogLevel) String() string { return string(l) }

// IsValid reports whether l is one of the known levels.
func (l LogLevel) IsValid() bool { return slices.Contains(logLevels, l) }

var logFormats = []string{"text", "json"}

// Config is the root of the configuration file.
type Config struct {
	App     AppConfig     `yaml:"app" json:"app"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`
}

type AppConfig struct {
	Name        string      `yaml:"name" json:"name"`
	Environment Environment `yaml:"environment" json:"environment"`
	Debug       bool        `yaml:"debug" json:"debug"`
}

type LogConfig struct {
	Level  LogLevel `yaml:"level" json:"level"`
	Format string   `yaml:"format" json:"format"` // text or json
	Output string   `yaml:"output" json:"output"` // stdout, stderr or a file path

	// Fields are attached to every record.
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// RuntimeConfig sizes the actor system.
type RuntimeConfig struct {
	// Workers is the worker pool size. Zero sizes the pool from the CPUs
	// the process may run on.
	Workers int `yaml:"workers" json:"workers"`

	// MaxCellsPerActor caps live cells per actor heap, zero for no cap.
	MaxCellsPerActor int `yaml:"max_cells_per_actor" json:"max_cells_per_actor"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// FatalExitCode is the process status after an unrecoverable runtime
	// error.
	FatalExitCode int `yaml:"fatal_exit_code" json:"fatal_exit_code"`

	UI UIConfig `yaml:"ui" json:"ui"`
}

// UIConfig controls the event source attached to the UI loop.
type UIConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	EventBuffer int  `yaml:"event_buffer" json:"event_buffer"`
}

// DefaultConfig returns the configuration used when no file is found. Each
// call returns a fresh value.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Name: "jinart", Environment: EnvDevelopment},
		Log: LogConfig{Level: LogLevelInfo, Format: "text", Output: "stderr"},
		Runtime: RuntimeConfig{
			MaxCellsPerActor: 1 << 20,
			ShutdownTimeout:  10 * time.Second,
			FatalExitCode:    70,
			UI:               UIConfig{Enabled: true, EventBuffer: 256},
		},
	}
}

// Validate returns the first problem found, wrapping one of the ErrInvalid
// sentinels.
func (c *Config) Validate() error {
	rt := c.Runtime
	switch {
	case c.App.Name == "":
		return ErrInvalidAppName
	case !c.App.Environment.IsValid():
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.App.Environment)
	case !c.Log.Level.IsValid():
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	case !slices.Contains(logFormats, c.Log.Format):
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	case rt.Workers < 0:
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, rt.Workers)
	case rt.MaxCellsPerActor < 0:
		return fmt.Errorf("%w: %d", ErrInvalidCellLimit, rt.MaxCellsPerActor)
	case rt.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: %s", ErrInvalidShutdownTimeout, rt.ShutdownTimeout)
	case rt.FatalExitCode < 1 || rt.FatalExitCode > 125:
		// 126 and above are reserved by shells
		return fmt.Errorf("%w: %d", ErrInvalidExitCode, rt.FatalExitCode)
	case rt.UI.Enabled && rt.UI.EventBuffer <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidEventBuffer, rt.UI.EventBuffer)
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.App.Environment == EnvDevelopment }

func (c *Config) IsProduction() bool { return c.App.Environment == EnvProduction }

// IsDebugEnabled reports whether debug mode is on or the log level is debug.
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.Log.Level == LogLevelDebug
}
