package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/core/services"
	"mlflow-migrate/internal/core/workerpool"
)

func newListModelsCmd() *cobra.Command {
	var models string

	cmd := &cobra.Command{
		Use:   "list-models",
		Short: "List registered models and their latest versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			resolver := services.NewResolver(a.client, a.cfg.MLflow.PageSize)
			out, err := resolver.ListModels(cmd.Context(), domain.ParseSelector(models))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&models, "models", "all", "registered model selector")
	return cmd
}

func newHTTPClientCmd() *cobra.Command {
	var method, resource, data string

	cmd := &cobra.Command{
		Use:   "http-client",
		Short: "Call a tracking server REST endpoint",
		Example: `  mlflow-migrate http-client --resource experiments/search --method POST --data '{"max_results": 10}'
  mlflow-migrate http-client --resource registered-models/get?name=iris`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			var body io.Reader
			if data != "" {
				body = strings.NewReader(data)
			}
			resp, err := a.client.Forward(cmd.Context(), strings.ToUpper(method), "/api/2.0/mlflow/"+strings.TrimPrefix(resource, "/"), body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("%w: status %d", domain.ErrTrackingServer, resp.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", http.MethodGet, "HTTP method")
	cmd.Flags().StringVar(&resource, "resource", "", "resource below /api/2.0/mlflow/, e.g. experiments/get?experiment_id=1")
	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func newFindArtifactsCmd() *cobra.Command {
	var runIDs []string
	var experiment, pattern string
	var useThreads bool

	cmd := &cobra.Command{
		Use:   "find-artifacts",
		Short: "Find run artifacts matching a glob pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(runIDs) == 0 && experiment == "" {
				return errors.New("one of --run-ids or --experiment is required")
			}
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			finder := services.NewArtifactFinder(a.client, workerpool.ForThreads(useThreads), a.cfg.MLflow.PageSize)

			var matches []services.ArtifactMatch
			if len(runIDs) > 0 {
				matches, err = finder.Find(ctx, runIDs, pattern)
			} else {
				exp, lerr := services.LookupExperiment(ctx, a.client, experiment)
				if lerr != nil {
					return lerr
				}
				matches, err = finder.FindInExperiment(ctx, exp.ExperimentID, pattern)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().StringSliceVar(&runIDs, "run-ids", nil, "runs to search")
	cmd.Flags().StringVar(&experiment, "experiment", "", "search every run of this experiment (ID or name)")
	cmd.Flags().StringVar(&pattern, "pattern", "**/MLmodel", "glob matched against the artifact path or its base name")
	cmd.Flags().BoolVar(&useThreads, "use-threads", false, "search runs in parallel")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var operation, id string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded bulk operations",
		Long: `Show bulk operation manifests recorded in the database. Requires
DATABASE_ENABLED=true (or --record-in-db) and the DATABASE_* settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if !a.cfg.Database.Enabled {
				return errors.New("manifest history is disabled, set DATABASE_ENABLED=true")
			}
			a.withHistory(ctx)
			defer a.close()
			if a.repo == nil {
				return errors.New("manifest history database unavailable")
			}

			if id != "" {
				uid, err := uuid.Parse(id)
				if err != nil {
					return fmt.Errorf("--id: %w", err)
				}
				rec, err := a.repo.GetByID(ctx, uid)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(rec.Body, '\n'))
				return err
			}

			records, total, err := a.repo.List(ctx, ports.ManifestListFilter{
				Operation: operation,
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "print the full manifest of one operation")
	cmd.Flags().StringVar(&operation, "operation", "", "filter by operation, e.g. export-models")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	return cmd
}

func printHistory(w io.Writer, records []*ports.ManifestRecord, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tOPERATION\tENTITY\tOK\tFAILED\tSECONDS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.1f\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Operation, r.Entity,
			r.OKCount, r.FailedCount, r.Duration)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d records\n", len(records), total)
}
