package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Active)
	assert.Equal(t, "unnamed-app", cfg.AppName)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Zero(t, cfg.BacktraceLimit)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
active: false
app_name: billing
app_version: "1.4.0"
environment: staging
server_url: https://apm.example.com
secret_token: s3cret
backtrace_limit: 25
timeout: 750ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Active)
	assert.Equal(t, "billing", cfg.AppName)
	assert.Equal(t, "1.4.0", cfg.AppVersion)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "https://apm.example.com", cfg.ServerURL)
	assert.Equal(t, "s3cret", cfg.SecretToken)
	assert.Equal(t, 25, cfg.BacktraceLimit)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "app_name: billing\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Active)
	assert.Equal(t, "billing", cfg.AppName)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "app_name: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidTimeout(t *testing.T) {
	path := writeConfig(t, "timeout: soonish\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
app_name: from-file
server_url: https://file.example.com
`)
	t.Setenv("TRACECAP_APP_NAME", "from-env")
	t.Setenv("TRACECAP_SERVER_URL", "https://env.example.com")
	t.Setenv("TRACECAP_ACTIVE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.AppName)
	assert.Equal(t, "https://env.example.com", cfg.ServerURL)
	assert.False(t, cfg.Active)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.ServerURL = "https://apm.example.com"
	require.NoError(t, valid.Validate())

	noName := valid
	noName.AppName = ""
	assert.ErrorContains(t, noName.Validate(), "app_name")

	activeNoURL := valid
	activeNoURL.ServerURL = ""
	assert.ErrorContains(t, activeNoURL.Validate(), "server_url")

	inactiveNoURL := activeNoURL
	inactiveNoURL.Active = false
	assert.NoError(t, inactiveNoURL.Validate())

	badTimeout := valid
	badTimeout.Timeout = 0
	assert.ErrorContains(t, badTimeout.Validate(), "timeout")

	negLimit := valid
	negLimit.BacktraceLimit = -1
	assert.ErrorContains(t, negLimit.Validate(), "backtrace_limit")
}
