package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Queue       QueueConfig       `mapstructure:"queue"       validate:"required"`
	Worker      WorkerConfig      `mapstructure:"worker"      validate:"required"`
	Recognition RecognitionConfig `mapstructure:"recognition" validate:"required"`
	Fetch       FetchConfig       `mapstructure:"fetch"       validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text auto"`
	// BaseURL is where the CLI client commands reach the API.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// DatabaseConfig selects and configures the status store and queue backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite memory"`
	URL    string `mapstructure:"url"    validate:"required_if=Driver postgres"`
	Path   string `mapstructure:"path"   validate:"required_if=Driver sqlite"`
}

// QueueConfig tunes the durable queue and the dispatch loop.
type QueueConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"   validate:"gt=0"`
	DequeueTimeout time.Duration `mapstructure:"dequeue_timeout" validate:"gt=0"`
	ErrorBackoff   time.Duration `mapstructure:"error_backoff"   validate:"gte=0"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	Count              int           `mapstructure:"count"                validate:"gte=1"`
	Backlog            int           `mapstructure:"backlog"              validate:"gte=0"`
	StuckAfter         time.Duration `mapstructure:"stuck_after"          validate:"gte=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gte=0"`
}

// RecognitionConfig selects the speech recognition backend.
type RecognitionConfig struct {
	Backend      string        `mapstructure:"backend"        validate:"required,oneof=command gemini static"`
	Command      string        `mapstructure:"command"        validate:"required_if=Backend command"`
	Args         []string      `mapstructure:"args"`
	ModelDir     string        `mapstructure:"model_dir"`
	Timeout      time.Duration `mapstructure:"timeout"        validate:"gte=0"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key" validate:"required_if=Backend gemini"`
	GeminiModel  string        `mapstructure:"gemini_model"   validate:"required_if=Backend gemini"`
	StaticText   string        `mapstructure:"static_text"`
}

// FetchConfig controls how remote audio URLs are downloaded.
type FetchConfig struct {
	DownloadDir  string        `mapstructure:"download_dir"  validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"gt=0"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
	MaxBytes     int64         `mapstructure:"max_bytes"     validate:"gt=0"`
	RequireAudio bool          `mapstructure:"require_audio"`
}

// AuthConfig contains all authentication and authorization settings.
// An empty JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"     validate:"omitempty,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// AuthEnabled reports whether bearer authentication is configured.
func (c AuthConfig) AuthEnabled() bool {
	return c.JWTSecret != ""
}
