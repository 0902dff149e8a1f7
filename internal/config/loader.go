package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load loads configuration from environment variables and an optional
// config file. Environment keys use the OBSERVATION_TOOLS_ prefix, e.g.
// OBSERVATION_TOOLS_SERVER_PORT.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("OBSERVATION_TOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Optionally read from config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/observation-tools")
	_ = v.ReadInConfig()

	var cfg Config

	// Server
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.Env = v.GetString("server.env")

	// Data
	cfg.Data.Dir = v.GetString("data.dir")
	cfg.Data.BlobDir = v.GetString("data.blob_dir")
	cfg.Data.BlobBackend = v.GetString("data.blob_backend")
	cfg.Data.S3Endpoint = v.GetString("data.s3_endpoint")
	cfg.Data.S3AccessKey = v.GetString("data.s3_access_key")
	cfg.Data.S3SecretKey = v.GetString("data.s3_secret_key")
	cfg.Data.S3UseSSL = v.GetBool("data.s3_use_ssl")
	cfg.Data.S3Bucket = v.GetString("data.s3_bucket")

	// Auth
	cfg.Auth.APISecret = v.GetString("auth.api_secret")
	cfg.Auth.PrintAPIKey = v.GetBool("auth.print_api_key")

	// Logging
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	// Sentry
	cfg.Sentry.Enabled = v.GetBool("sentry.enabled")
	cfg.Sentry.DSN = v.GetString("sentry.dsn")
	cfg.Sentry.Environment = v.GetString("sentry.environment")
	cfg.Sentry.Release = v.GetString("sentry.release")
	cfg.Sentry.Debug = v.GetBool("sentry.debug")
	cfg.Sentry.SampleRate = v.GetFloat64("sentry.sample_rate")
	cfg.Sentry.TracesSampleRate = v.GetFloat64("sentry.traces_sample_rate")

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.env", "development")

	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.blob_backend", "filesystem")
	v.SetDefault("data.s3_use_ssl", false)
	v.SetDefault("data.s3_bucket", "observation-tools-blobs")

	v.SetDefault("auth.api_secret", "")
	v.SetDefault("auth.print_api_key", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("sentry.traces_sample_rate", 0.1)
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Data.BlobBackend == "s3" && cfg.Data.S3Endpoint == "" {
		return fmt.Errorf("config: s3 blob backend requires data.s3_endpoint")
	}
	if cfg.Sentry.Enabled && cfg.Sentry.DSN == "" {
		return fmt.Errorf("config: sentry enabled without a DSN")
	}
	return nil
}
