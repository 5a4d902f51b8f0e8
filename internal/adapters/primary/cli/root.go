// Package cli implements the mlflow-migrate command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mlflow-migrate/internal/adapters/secondary/filesystem"
	"mlflow-migrate/internal/adapters/secondary/mlflow"
	"mlflow-migrate/internal/adapters/secondary/postgres"
	"mlflow-migrate/internal/config"
	ports "mlflow-migrate/internal/core/ports/output"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mlflow-migrate",
		Short: "Export and import MLflow experiments, runs and registered models",
		Long: `mlflow-migrate copies MLflow tracking and registry objects between tracking
servers through an intermediate directory (local path or s3://bucket/prefix).

Bulk export and import:
  mlflow-migrate export-models --models 'sklearn*' --output-dir out
  mlflow-migrate import-models --input-dir out

Configuration is read from the environment (MLFLOW_TRACKING_URI,
MLFLOW_TRACKING_TOKEN, LOGGER_LEVEL, ...); flags take precedence.`,
		SilenceUsage: true,
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.String("tracking-uri", "", "tracking server URI (MLFLOW_TRACKING_URI)")
	pf.String("log-level", "", "log level (LOGGER_LEVEL)")
	pf.String("log-format", "", "log format json, text or auto (LOGGER_FORMAT)")
	pf.Int("page-size", 0, "page size of listing calls (MLFLOW_PAGE_SIZE)")
	pf.String("http-timeout", "", "tracking server request timeout (MLFLOW_HTTP_REQUEST_TIMEOUT)")
	pf.String("s3-endpoint", "", "S3 endpoint for s3:// directories (S3_ENDPOINT)")
	pf.Bool("s3-path-style", false, "use path style S3 addressing (S3_FORCE_PATH_STYLE)")
	pf.Bool("record-in-db", false, "record bulk manifests in the database (DATABASE_ENABLED)")

	// Bulk commands
	cmd.AddCommand(newExportExperimentsCmd())
	cmd.AddCommand(newExportModelsCmd())
	cmd.AddCommand(newExportAllCmd())
	cmd.AddCommand(newImportExperimentsCmd())
	cmd.AddCommand(newImportModelsCmd())
	cmd.AddCommand(newImportAllCmd())

	// Single entity commands
	cmd.AddCommand(newExportRunCmd())
	cmd.AddCommand(newImportRunCmd())
	cmd.AddCommand(newExportExperimentCmd())
	cmd.AddCommand(newImportExperimentCmd())
	cmd.AddCommand(newExportModelCmd())
	cmd.AddCommand(newImportModelCmd())

	// Tools
	cmd.AddCommand(newListModelsCmd())
	cmd.AddCommand(newHTTPClientCmd())
	cmd.AddCommand(newFindArtifactsCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// Execute runs the root command. Cancelling ctx stops in-flight work.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	client *mlflow.Client
	repo   ports.ManifestRepository
	close  func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	initLogger(cfg)

	a := &app{
		cfg:    cfg,
		client: mlflow.NewClient(&cfg.MLflow),
		close:  func() {},
	}
	log.WithField("tracking_uri", cfg.MLflow.TrackingURI).Debug("tracking server configured")
	return a, nil
}

// withHistory connects the manifest history store when it is enabled. A
// store that cannot be reached is logged and skipped.
func (a *app) withHistory(ctx context.Context) {
	if !a.cfg.Database.Enabled {
		return
	}
	pool, err := postgres.Connect(ctx, &a.cfg.Database)
	if err != nil {
		log.WithError(err).Warn("manifest history disabled")
		return
	}
	log.Info("database connection established")
	a.repo = postgres.NewManifestRepository(pool)
	a.close = pool.Close
}

func (a *app) openDir(ctx context.Context, uri string) (ports.Filesystem, error) {
	return filesystem.Open(ctx, uri, &a.cfg.S3)
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	format := cfg.Logger.Format
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
