package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads,
// e.g. ASRQ_WORKER_COUNT for worker.count.
const EnvPrefix = "ASRQ"

var defaults = map[string]any{
	"server.port":       8000,
	"server.log_level":  "info",
	"server.log_format": "auto",
	"server.base_url":   "http://localhost:8000",

	"database.driver": "sqlite",
	"database.url":    "",
	"database.path":   "data/asrq.db",

	"queue.poll_interval":   "200ms",
	"queue.dequeue_timeout": "1s",
	"queue.error_backoff":   "2s",

	"worker.count":                2,
	"worker.backlog":              0,
	"worker.stuck_after":          "30m",
	"worker.stuck_check_interval": "5m",

	"recognition.backend":        "command",
	"recognition.command":        "whisper",
	"recognition.args":           []string{},
	"recognition.model_dir":      "",
	"recognition.timeout":        "0s",
	"recognition.gemini_api_key": "",
	"recognition.gemini_model":   "gemini-2.0-flash",
	"recognition.static_text":    "",

	"fetch.download_dir":  "audio",
	"fetch.timeout":       "60s",
	"fetch.max_retries":   3,
	"fetch.max_bytes":     512 << 20,
	"fetch.require_audio": true,

	"auth.jwt_secret":     "",
	"auth.token_lifetime": "24h",
}

// Load configuration from defaults, an optional config file and environment
// variables, in increasing order of precedence.
//
// When path is empty, an "asrq.{yaml,toml,json}" file in the working directory
// is used if present. A missing explicit path is an error.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("asrq")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags on cfg and returns a readable error
// naming every invalid field.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
