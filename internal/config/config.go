// Package config loads CLI settings from defaults, an optional config file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/henrybloomingdale/pubmed-records/internal/logging"
	"github.com/henrybloomingdale/pubmed-records/internal/ncbi"
)

// EnvPrefix prefixes every environment variable the CLI reads, e.g.
// PUBMED_API_KEY or PUBMED_LOG_LEVEL.
const EnvPrefix = "PUBMED"

// Config holds all settings for the pubmed CLI.
type Config struct {
	// APIKey is the NCBI API key. NCBI_API_KEY is honoured as well.
	APIKey string `mapstructure:"api_key"`
	// BaseURL is the E-utilities endpoint.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// Tool identifies this application to NCBI.
	Tool string `mapstructure:"tool" validate:"required"`
	// Email is the contact address sent to NCBI.
	Email string `mapstructure:"email" validate:"omitempty,email"`
	// MaxResponseBytes caps the size of any E-utilities response.
	MaxResponseBytes int64 `mapstructure:"max_response_bytes" validate:"gt=0"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// Log contains structured logging settings.
	Log logging.Config `mapstructure:"log"`
}

// Load reads configuration into v and returns the validated result. A nil
// v gets a fresh viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", EnvPrefix+"_API_KEY", "NCBI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding api_key: %w", err)
	}

	// An explicit file set by the caller replaces the search paths and must
	// exist.
	if path := v.ConfigFileUsed(); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pubmed"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Log.Output = strings.ToLower(cfg.Log.Output)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", ncbi.DefaultBaseURL)
	v.SetDefault("tool", ncbi.DefaultTool)
	v.SetDefault("email", ncbi.DefaultEmail)
	v.SetDefault("max_response_bytes", ncbi.DefaultMaxResponseBytes)
	v.SetDefault("timeout", ncbi.DefaultTimeout)

	log := logging.DefaultConfig()
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.format", log.Format)
	v.SetDefault("log.output", log.Output)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ClientOptions returns the NCBI client options these settings describe.
func (c *Config) ClientOptions() []ncbi.Option {
	opts := []ncbi.Option{
		ncbi.WithBaseURL(c.BaseURL),
		ncbi.WithTool(c.Tool),
		ncbi.WithEmail(c.Email),
		ncbi.WithMaxResponseBytes(c.MaxResponseBytes),
		ncbi.WithTimeout(c.Timeout),
	}
	if c.APIKey != "" {
		opts = append(opts, ncbi.WithAPIKey(c.APIKey))
	}
	return opts
}
