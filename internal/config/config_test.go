package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrybloomingdale/pubmed-records/internal/logging"
	"github.com/henrybloomingdale/pubmed-records/internal/ncbi"
)

// isolate points HOME at an empty directory and clears the variables Load
// reads, so a developer's own setup cannot leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"NCBI_API_KEY",
		"PUBMED_API_KEY",
		"PUBMED_BASE_URL",
		"PUBMED_TOOL",
		"PUBMED_EMAIL",
		"PUBMED_MAX_RESPONSE_BYTES",
		"PUBMED_TIMEOUT",
		"PUBMED_LOG_LEVEL",
		"PUBMED_LOG_FORMAT",
		"PUBMED_LOG_OUTPUT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func writeConfigFile(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".config", "pubmed")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, ncbi.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, ncbi.DefaultTool, cfg.Tool)
	assert.Equal(t, ncbi.DefaultEmail, cfg.Email)
	assert.Equal(t, ncbi.DefaultMaxResponseBytes, cfg.MaxResponseBytes)
	assert.Equal(t, ncbi.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, logging.DefaultConfig(), cfg.Log)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PUBMED_API_KEY", "env-key")
	t.Setenv("PUBMED_TIMEOUT", "5s")
	t.Setenv("PUBMED_LOG_LEVEL", "DEBUG")
	t.Setenv("PUBMED_LOG_FORMAT", "json")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_LegacyAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv("NCBI_API_KEY", "legacy-key")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.APIKey)

	t.Setenv("PUBMED_API_KEY", "prefixed-key")
	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "prefixed-key", cfg.APIKey, "prefixed variable takes precedence")
}

func TestLoad_ConfigFile(t *testing.T) {
	home := isolate(t)
	writeConfigFile(t, home, `
api_key: file-key
email: someone@example.org
max_response_bytes: 1048576
log:
  level: info
  output: stdout
`)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "someone@example.org", cfg.Email)
	assert.Equal(t, int64(1048576), cfg.MaxResponseBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tool: custom-tool\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "custom-tool", cfg.Tool)
}

func TestLoad_ExplicitConfigFileMissing(t *testing.T) {
	isolate(t)

	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	home := isolate(t)
	writeConfigFile(t, home, "api_key: [unterminated\n")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_ValidationFailure(t *testing.T) {
	isolate(t)
	t.Setenv("PUBMED_LOG_LEVEL", "loud")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "Log.Level")
}

func validConfig() *Config {
	return &Config{
		BaseURL:          ncbi.DefaultBaseURL,
		Tool:             ncbi.DefaultTool,
		Email:            ncbi.DefaultEmail,
		MaxResponseBytes: ncbi.DefaultMaxResponseBytes,
		Timeout:          ncbi.DefaultTimeout,
		Log:              logging.DefaultConfig(),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty email allowed", func(c *Config) { c.Email = "" }, ""},
		{"bad base url", func(c *Config) { c.BaseURL = "not a url" }, "Config.BaseURL"},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, "Config.BaseURL"},
		{"bad email", func(c *Config) { c.Email = "nobody" }, "Config.Email"},
		{"missing tool", func(c *Config) { c.Tool = "" }, "Config.Tool"},
		{"zero max bytes", func(c *Config) { c.MaxResponseBytes = 0 }, "Config.MaxResponseBytes"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "Config.Timeout"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "Config.Log.Format"},
		{"bad log output", func(c *Config) { c.Log.Output = "file" }, "Config.Log.Output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.BaseURL = ""
	cfg.MaxResponseBytes = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.BaseURL")
	assert.Contains(t, err.Error(), "Config.MaxResponseBytes")
}

func TestClientOptions(t *testing.T) {
	cfg := validConfig()
	cfg.APIKey = "k"
	cfg.BaseURL = "http://localhost:9999"
	cfg.Timeout = 3 * time.Second

	c := ncbi.NewBaseClient(cfg.ClientOptions()...)
	assert.Equal(t, "http://localhost:9999", c.BaseURL)
	assert.Equal(t, "k", c.APIKey)
	assert.Equal(t, 3*time.Second, c.HTTPClient.Timeout)
	assert.Equal(t, ncbi.DefaultMaxResponseBytes, c.MaxBytes)

	cfg.APIKey = ""
	c = ncbi.NewBaseClient(cfg.ClientOptions()...)
	assert.Empty(t, c.APIKey)
}
