package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	MLflow   MLflowConfig
	Logger   LoggerConfig
	S3       S3Config
	Database DatabaseConfig
}

type MLflowConfig struct {
	TrackingURI string
	Token       string
	Username    string
	Password    string
	Timeout     time.Duration
	PageSize    int
}

type LoggerConfig struct {
	Level  string
	Format string
}

// S3Config applies to s3://bucket/prefix input and output directories.
type S3Config struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// DatabaseConfig configures the optional manifest history store.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// flagKeys maps persistent CLI flags to the environment keys they override.
var flagKeys = map[string]string{
	"tracking-uri":  "MLFLOW_TRACKING_URI",
	"log-level":     "LOGGER_LEVEL",
	"log-format":    "LOGGER_FORMAT",
	"page-size":     "MLFLOW_PAGE_SIZE",
	"http-timeout":  "MLFLOW_HTTP_REQUEST_TIMEOUT",
	"s3-endpoint":   "S3_ENDPOINT",
	"record-in-db":  "DATABASE_ENABLED",
	"s3-path-style": "S3_FORCE_PATH_STYLE",
}

// Load reads the configuration from the environment. Flags set on the
// command line take precedence; flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("MLFLOW_TRACKING_URI", "http://localhost:5000")
	v.SetDefault("MLFLOW_HTTP_REQUEST_TIMEOUT", "120s")
	v.SetDefault("MLFLOW_PAGE_SIZE", 1000)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "auto")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_FORCE_PATH_STYLE", false)
	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_NAME", "mlflow_migrate")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 4)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 1)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")

	// Env
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	timeout, err := time.ParseDuration(v.GetString("MLFLOW_HTTP_REQUEST_TIMEOUT"))
	if err != nil {
		// MLflow clients accept a bare number of seconds.
		secs := v.GetInt("MLFLOW_HTTP_REQUEST_TIMEOUT")
		if secs <= 0 {
			return nil, fmt.Errorf("invalid MLFLOW_HTTP_REQUEST_TIMEOUT %q", v.GetString("MLFLOW_HTTP_REQUEST_TIMEOUT"))
		}
		timeout = time.Duration(secs) * time.Second
	}

	lifetime, err := time.ParseDuration(v.GetString("DATABASE_CONN_MAX_LIFETIME"))
	if err != nil {
		lifetime = 5 * time.Minute
	}

	cfg := &Config{
		MLflow: MLflowConfig{
			TrackingURI: v.GetString("MLFLOW_TRACKING_URI"),
			Token:       v.GetString("MLFLOW_TRACKING_TOKEN"),
			Username:    v.GetString("MLFLOW_TRACKING_USERNAME"),
			Password:    v.GetString("MLFLOW_TRACKING_PASSWORD"),
			Timeout:     timeout,
			PageSize:    v.GetInt("MLFLOW_PAGE_SIZE"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		S3: S3Config{
			Region:         v.GetString("S3_REGION"),
			Endpoint:       v.GetString("S3_ENDPOINT"),
			ForcePathStyle: v.GetBool("S3_FORCE_PATH_STYLE"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DATABASE_ENABLED"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: lifetime,
		},
	}

	switch cfg.Logger.Format {
	case "json", "text", "auto":
	default:
		return nil, fmt.Errorf("invalid LOGGER_FORMAT %q", cfg.Logger.Format)
	}

	return cfg, nil
}
