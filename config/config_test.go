package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebookgrader/grader-client/polling"
	"github.com/notebookgrader/grader-client/validation"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, polling.DefaultSchedule(), cfg.Schedule())
	assert.Equal(t, 0, cfg.Polling().MaxChecks)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("GRADER_SERVER_URL", "https://grader.example.com")
	t.Setenv("GRADER_TIMEOUT", "5s")
	t.Setenv("GRADER_POLL_MAX_CHECKS", "7")
	t.Setenv("GRADER_POLL_MULTIPLIER", "1.5")

	cfg, err := Load(nil, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://grader.example.com", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.Polling().MaxChecks)
	assert.Equal(t, 1.5, cfg.Schedule().Multiplier)
}

func TestLoadFlags(t *testing.T) {
	t.Setenv("GRADER_POLL_INITIAL_DELAY", "20s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--poll-max-delay=1m", "--debug"}))

	cfg, err := Load(fs, t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, time.Minute, cfg.PollMaxDelay)
	// unchanged flags do not hide the environment
	assert.Equal(t, 20*time.Second, cfg.PollInitialDelay)
}

func TestLoadSandboxFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterCommonFlags(fs)
	RegisterSandboxFlags(fs)
	assert.Nil(t, fs.Lookup(KeyPollInitialDelay), "client flags stay off the sandbox")
	assert.Nil(t, fs.Lookup(KeyRollbarToken))
	require.Error(t, fs.Parse([]string{"--poll-max-delay=1m"}))

	require.NoError(t, fs.Parse([]string{"--sandbox-addr=127.0.0.1:9999", "--sandbox-delay=2s", "--token=t"}))

	cfg, err := Load(fs, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "t", cfg.Token)

	assert.Equal(t, "127.0.0.1:9999", cfg.SandboxAddr)
	assert.Equal(t, 2*time.Second, cfg.SandboxDelay)
	assert.Equal(t, "sandbox-secret-change-me", cfg.SandboxSecret)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("GRADER_TOKEN=from-dotenv\n"), 0o600))
	t.Setenv("GRADER_ENV", "test")
	t.Cleanup(func() { os.Unsetenv("GRADER_TOKEN") })

	cfg, err := Load(nil, dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "from-dotenv", cfg.Token)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{name: "relative server URL", key: "GRADER_SERVER_URL", value: "localhost", field: "server-url"},
		{name: "shrinking schedule", key: "GRADER_POLL_MULTIPLIER", value: "0.5", field: "poll-multiplier"},
		{name: "cap below first delay", key: "GRADER_POLL_MAX_DELAY", value: "1s", field: "poll-max-delay"},
		{name: "negative max checks", key: "GRADER_POLL_MAX_CHECKS", value: "-1", field: "poll-max-checks"},
		{name: "unknown environment", key: "GRADER_ENV", value: "staging", field: "env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load(nil, t.TempDir())
			require.Error(t, err)

			verr, ok := err.(*validation.Error)
			require.True(t, ok, "got %T: %v", err, err)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}
