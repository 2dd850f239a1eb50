package identity

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileConfig is the flat file/env representation read by [LoadConfig]. It
// carries Redis connection settings alongside engine tunables so a deployment
// can be described by one yaml file.
type FileConfig struct {
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	OTPDigits     int `mapstructure:"OTP_DIGITS"`
	OTPTTLSeconds int `mapstructure:"OTP_TTL_SECONDS"`

	LinkTTLSeconds      int    `mapstructure:"LINK_TTL_SECONDS"`
	LinkBaseURL         string `mapstructure:"LINK_BASE_URL"`
	LinkAuthPath        string `mapstructure:"LINK_AUTH_PATH"`
	LinkDefaultRedirect string `mapstructure:"LINK_DEFAULT_REDIRECT"`

	SessionLifetimeHours int `mapstructure:"SESSION_LIFETIME_HOURS"`

	AuditEnabled    bool `mapstructure:"AUDIT_ENABLED"`
	AuditBufferSize int  `mapstructure:"AUDIT_BUFFER_SIZE"`
}

// LoadConfig reads configuration from a yaml file in dir (name "config"),
// falling back to environment variables when no file exists. Defaults match
// the built-in engine defaults.
func LoadConfig(dir string) (FileConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OTP_DIGITS", 6)
	v.SetDefault("OTP_TTL_SECONDS", 300)
	v.SetDefault("LINK_TTL_SECONDS", 900)
	v.SetDefault("LINK_BASE_URL", "http://localhost:8080")
	v.SetDefault("LINK_AUTH_PATH", "/auth/magic")
	v.SetDefault("LINK_DEFAULT_REDIRECT", "/app")
	v.SetDefault("SESSION_LIFETIME_HOURS", 24)
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)

	// Missing file is fine; env vars and defaults still apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return FileConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return fc, nil
}

// EngineConfig converts the flat file form into an engine [Config], applying
// built-in defaults for everything the file form does not expose.
func (fc FileConfig) EngineConfig() Config {
	cfg := defaultConfig()

	if fc.OTPDigits != 0 {
		cfg.OTP.Digits = fc.OTPDigits
	}
	if fc.OTPTTLSeconds != 0 {
		cfg.OTP.TTL = time.Duration(fc.OTPTTLSeconds) * time.Second
	}
	if fc.LinkTTLSeconds != 0 {
		cfg.MagicLink.TTL = time.Duration(fc.LinkTTLSeconds) * time.Second
	}
	if fc.LinkBaseURL != "" {
		cfg.MagicLink.BaseURL = fc.LinkBaseURL
	}
	if fc.LinkAuthPath != "" {
		cfg.MagicLink.AuthPath = fc.LinkAuthPath
	}
	if fc.LinkDefaultRedirect != "" {
		cfg.MagicLink.DefaultRedirect = fc.LinkDefaultRedirect
	}
	if fc.SessionLifetimeHours != 0 {
		cfg.Session.AbsoluteLifetime = time.Duration(fc.SessionLifetimeHours) * time.Hour
	}
	cfg.Audit.Enabled = fc.AuditEnabled
	if fc.AuditBufferSize != 0 {
		cfg.Audit.BufferSize = fc.AuditBufferSize
	}

	return cfg
}
