package config

import "errors"

// Returned by Validate, possibly wrapped with the offending value.
var (
	ErrInvalidAppName         = errors.New("invalid application name")
	ErrInvalidEnvironment     = errors.New("invalid environment")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidLogFormat       = errors.New("invalid log format")
	ErrInvalidWorkers         = errors.New("invalid worker count")
	ErrInvalidCellLimit       = errors.New("invalid cell limit")
	ErrInvalidShutdownTimeout = errors.New("invalid shutdown timeout")
	ErrInvalidExitCode        = errors.New("invalid fatal exit code")
	ErrInvalidEventBuffer     = errors.New("invalid event buffer size")
)

// Returned by Loader and Watcher.
var (
	ErrConfigFileNotFound  = errors.New("config file not found")
	ErrConfigParseError    = errors.New("malformed config")
	ErrConfigValidateError = errors.New("config failed validation")
	ErrEnvironmentVarError = errors.New("bad environment override")
	ErrConfigWatchError    = errors.New("cannot watch config file")
)
