package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jina-lang/jinart/config"
	"github.com/jina-lang/jinart/core"
	"github.com/jina-lang/jinart/program"
)

const testProgram = `
abi: "^1.0"
instructions:
  - spawn: {name: tally, behavior: counter, args: {step: 2}}
  - spawn: {name: view, behavior: logger, ui: true}
  - send: {to: tally, payload: tick}
  - send: {to: view, payload: hello}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// quietConfig sends logs to a file so test output stays readable
func quietConfig(t *testing.T) string {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "jinart.log")
	return writeFile(t, "jinart.yaml", "log:\n  level: warn\n  output: "+logFile+"\nruntime:\n  shutdown_timeout: 5s\n")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "jinart v"+core.Version)
	assert.Contains(t, out, "CPUs available")

	out, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "jinart "+core.Version+"\n", out)
}

func TestCheckCommand(t *testing.T) {
	path := writeFile(t, "app.yaml", testProgram)

	out, err := execute(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "instructions: 4")
	assert.Contains(t, out, "actors:       2 (1 ui)")
}

func TestCheckCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"incompatible abi", "abi: '^2'\ninstructions:\n  - spawn: {name: a, behavior: echo}\n", program.ErrIncompatibleABI},
		{"missing abi", "instructions:\n  - spawn: {name: a, behavior: echo}\n", program.ErrMissingABI},
		{"unknown behavior", "abi: '^1'\ninstructions:\n  - spawn: {name: a, behavior: nope}\n", program.ErrUnknownBehavior},
		{"unknown actor", "abi: '^1'\ninstructions:\n  - terminate: a\n", program.ErrUnknownActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "check", writeFile(t, "app.yaml", tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := execute(t, "check")
	assert.Error(t, err, "program argument is required")
}

func TestRunCommand(t *testing.T) {
	cfg := quietConfig(t)
	path := writeFile(t, "app.yaml", testProgram)

	out, err := execute(t, "run", path, "--config", cfg, "--workers", "2", "--timeout", "10s", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "tally")
	assert.Contains(t, out, "view")
	assert.Contains(t, out, "2 ACTORS")
	assert.Contains(t, out, "DEAD LETTERS")
}

func TestRunCommandRejectsBadFlags(t *testing.T) {
	cfg := quietConfig(t)
	path := writeFile(t, "app.yaml", testProgram)

	_, err := execute(t, "run", path, "--config", cfg, "--log-level", "loud")
	assert.ErrorIs(t, err, config.ErrInvalidLogLevel)

	_, err = execute(t, "run", path, "--config", cfg, "--workers=-2")
	assert.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestApplyFlags(t *testing.T) {
	opts := &runOptions{}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.IntVar(&opts.workers, "workers", 0, "")
	fs.StringVar(&opts.logLevel, "log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))

	cfg := config.DefaultConfig()
	cfg.Runtime.Workers = 6
	applyFlags(fs, opts, cfg)

	assert.Equal(t, config.LogLevel("debug"), cfg.Log.Level)
	assert.Equal(t, 6, cfg.Runtime.Workers, "unset flags keep the configured value")
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	stats := []core.ActorStats{
		{ID: 1, Name: "tally", State: core.ActorStateIdle, MessagesProcessed: 3, Cells: 1, LastMessageAt: time.Now()},
		{ID: 2, Name: "view", UI: true, State: core.ActorStateIdle, MessagesProcessed: 2},
	}
	require.NoError(t, renderStats(&buf, stats, core.Metrics{Workers: 2, Spawned: 2, Delivered: 5}))

	out := buf.String()
	assert.Contains(t, out, "tally")
	assert.Contains(t, out, "worker")
	assert.Contains(t, out, "ui")
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "2 ACTORS")
	assert.Contains(t, out, "ago")

	buf.Reset()
	require.NoError(t, renderStats(&buf, nil, core.Metrics{}))
	assert.Contains(t, buf.String(), "(no live actors)")
}
