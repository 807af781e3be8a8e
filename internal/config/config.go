package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth" validate:"required"`
	Certificate CertificateConfig `mapstructure:"certificate" validate:"required"`
	Task        TaskConfig        `mapstructure:"task" validate:"required"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" validate:"required"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit" validate:"required"`
	Email       EmailConfig       `mapstructure:"email" validate:"required"`
	LLM         LLMConfig         `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=1"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeHours int    `mapstructure:"token_lifetime_hours" validate:"gte=1,lte=720"`
}

// CertificateConfig tunes grading, eligibility and certificate numbering.
type CertificateConfig struct {
	PassThreshold    float64 `mapstructure:"pass_threshold" validate:"gt=0,lte=1"`
	AttemptPolicy    string  `mapstructure:"attempt_policy" validate:"oneof=best latest any_passed"`
	NumberPrefix     string  `mapstructure:"number_prefix" validate:"required,alphanum,max=8"`
	NumberMaxRetries int     `mapstructure:"number_max_retries" validate:"gte=1,lte=20"`
	VerifyBaseURL    string  `mapstructure:"verify_base_url" validate:"required,url"`
}

// TaskConfig contains the background task runner settings.
type TaskConfig struct {
	QueueSize           int `mapstructure:"queue_size" validate:"gte=1"`
	WorkerCount         int `mapstructure:"worker_count" validate:"gte=1"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"gte=1"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"gte=1"`
	MaxAttempts         int `mapstructure:"max_attempts" validate:"gte=1,lte=50"`
}

// SchedulerConfig contains the periodic lifecycle sweep settings.
type SchedulerConfig struct {
	IntervalSeconds      int `mapstructure:"interval_seconds" validate:"gte=1"`
	ApprovalValidityDays int `mapstructure:"approval_validity_days" validate:"gte=1"`
}

// RateLimitConfig limits the public certificate verification endpoint.
type RateLimitConfig struct {
	VerifyRPS   float64 `mapstructure:"verify_rps" validate:"gt=0"`
	VerifyBurst int     `mapstructure:"verify_burst" validate:"gte=1"`
}

// EmailConfig contains outbound email settings.
type EmailConfig struct {
	FromAddress string `mapstructure:"from_address" validate:"required,email"`
}

// LLMConfig contains the optional Gemini settings. Quiz drafting is disabled
// when no API key is configured.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name" validate:"required_with=GeminiAPIKey"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// Enabled reports whether an API key was configured.
func (c LLMConfig) Enabled() bool {
	return c.GeminiAPIKey != ""
}

// StuckTaskAge returns the configured stuck task age as a duration.
func (c TaskConfig) StuckTaskAge() time.Duration {
	return time.Duration(c.StuckTaskAgeMinutes) * time.Minute
}

// PollInterval returns the configured poll interval as a duration.
func (c TaskConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Interval returns the sweep interval as a duration.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ApprovalValidity returns the provider approval period as a duration.
func (c SchedulerConfig) ApprovalValidity() time.Duration {
	return time.Duration(c.ApprovalValidityDays) * 24 * time.Hour
}
