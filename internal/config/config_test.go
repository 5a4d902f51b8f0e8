package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "")
	t.Setenv("LOGGER_FORMAT", "")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.MLflow.TrackingURI)
	assert.Equal(t, 120*time.Second, cfg.MLflow.Timeout)
	assert.Equal(t, 1000, cfg.MLflow.PageSize)
	assert.Equal(t, "auto", cfg.Logger.Format)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "postgres://postgres:@localhost:5432/mlflow_migrate?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "http://mlflow:5000")
	t.Setenv("MLFLOW_TRACKING_TOKEN", "secret")
	t.Setenv("MLFLOW_HTTP_REQUEST_TIMEOUT", "30")
	t.Setenv("LOGGER_FORMAT", "json")
	t.Setenv("DATABASE_ENABLED", "true")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://mlflow:5000", cfg.MLflow.TrackingURI)
	assert.Equal(t, "secret", cfg.MLflow.Token)
	assert.Equal(t, 30*time.Second, cfg.MLflow.Timeout)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Database.Enabled)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "http://env:5000")
	t.Setenv("MLFLOW_PAGE_SIZE", "50")
	t.Setenv("LOGGER_FORMAT", "")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("tracking-uri", "", "")
	flags.Int("page-size", 0, "")
	flags.String("http-timeout", "", "")
	require.NoError(t, flags.Parse([]string{"--tracking-uri", "http://flag:5000", "--http-timeout", "2m"}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "http://flag:5000", cfg.MLflow.TrackingURI)
	assert.Equal(t, 2*time.Minute, cfg.MLflow.Timeout)
	assert.Equal(t, 50, cfg.MLflow.PageSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "timeout", key: "MLFLOW_HTTP_REQUEST_TIMEOUT", val: "soon"},
		{name: "negative timeout", key: "MLFLOW_HTTP_REQUEST_TIMEOUT", val: "-5"},
		{name: "log format", key: "LOGGER_FORMAT", val: "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOGGER_FORMAT", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}
