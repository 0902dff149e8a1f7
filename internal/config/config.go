// Package config loads server configuration from the environment and an
// optional YAML file.
package config

// Config holds all configuration for the server
type Config struct {
	Server ServerConfig
	Data   DataConfig
	Auth   AuthConfig
	Log    LogConfig
	Sentry SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Env  string `mapstructure:"env" validate:"oneof=development production"`
}

// DataConfig holds storage configuration. The metadata engine lives under
// {dir}/metadata, blobs under {blob_dir} (default: {dir}/blobs).
type DataConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	BlobDir     string `mapstructure:"blob_dir"`
	BlobBackend string `mapstructure:"blob_backend" validate:"oneof=filesystem s3"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
	S3Bucket    string `mapstructure:"s3_bucket"`
}

// AuthConfig holds API key configuration. An empty secret disables
// authentication entirely.
type AuthConfig struct {
	APISecret string `mapstructure:"api_secret"`

	// PrintAPIKey makes the server mint and log one API key on startup,
	// for bootstrapping deployments without a key-management UI.
	PrintAPIKey bool `mapstructure:"print_api_key"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	Debug            bool    `mapstructure:"debug"`
	SampleRate       float64 `mapstructure:"sample_rate"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// IsProduction returns true if running in production mode
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
