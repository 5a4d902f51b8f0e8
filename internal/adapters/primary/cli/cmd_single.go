package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/core/services"
	"mlflow-migrate/internal/core/workerpool"
)

func newExportRunCmd() *cobra.Command {
	var runID, outputDir string
	var metadataTags bool

	cmd := &cobra.Command{
		Use:   "export-run",
		Short: "Export one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			out, err := a.openDir(ctx, outputDir)
			if err != nil {
				return err
			}
			exporter := services.NewRunExporter(a.client, out, services.RunExportOptions{ExportMetadataTags: metadataTags})
			if _, err := exporter.Export(ctx, runID, "", ""); err != nil {
				return fmt.Errorf("export run %s: %w", runID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run %s to %s\n", runID, out.Root())
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "source run ID")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory")
	cmd.Flags().BoolVar(&metadataTags, "export-metadata-tags", false, "add mlflow_export_import.metadata.* tags")
	_ = cmd.MarkFlagRequired("run-id")
	_ = cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newImportRunCmd() *cobra.Command {
	var inputDir, experimentName string
	var opts services.RunImportOptions

	cmd := &cobra.Command{
		Use:   "import-run",
		Short: "Import one run into an experiment, creating it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			in, err := a.openDir(ctx, inputDir)
			if err != nil {
				return err
			}
			importer := services.NewExperimentImporter(a.client, in, services.NewRunImporter(a.client, in, opts), workerpool.New(1), services.ExperimentImportOptions{})
			rm, err := importer.ImportRun(ctx, experimentName, "")
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rm)
		},
	}
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "directory written by export-run")
	cmd.Flags().StringVar(&experimentName, "experiment-name", "", "destination experiment name")
	cmd.Flags().BoolVar(&opts.UseSrcUserID, "use-src-user-id", false, "create the run as its source user when allowed")
	cmd.Flags().BoolVar(&opts.ImportMetadataTags, "import-metadata-tags", false, "keep mlflow_export_import.metadata.* tags")
	_ = cmd.MarkFlagRequired("input-dir")
	_ = cmd.MarkFlagRequired("experiment-name")
	return cmd
}

func newExportExperimentCmd() *cobra.Command {
	var experiment, outputDir string
	var runIDs []string
	var metadataTags, useThreads bool

	cmd := &cobra.Command{
		Use:   "export-experiment",
		Short: "Export one experiment by ID or name",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			out, err := a.openDir(ctx, outputDir)
			if err != nil {
				return err
			}
			runs := services.NewRunExporter(a.client, out, services.RunExportOptions{ExportMetadataTags: metadataTags})
			exporter := services.NewExperimentExporter(a.client, out, runs, workerpool.ForThreads(useThreads), a.cfg.MLflow.PageSize)

			exp, err := exporter.Lookup(ctx, experiment)
			if err != nil {
				return err
			}
			var subset []string
			if len(runIDs) > 0 {
				subset = runIDs
			}
			res, err := exporter.Export(ctx, exp, subset, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "experiment %s: %d runs ok, %d failed\n",
				res.Experiment.Name, len(res.Runs.OK), len(res.Runs.Failed))
			return nil
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "", "experiment ID or name")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory")
	cmd.Flags().StringSliceVar(&runIDs, "run-ids", nil, "export only these runs")
	cmd.Flags().BoolVar(&metadataTags, "export-metadata-tags", false, "add mlflow_export_import.metadata.* tags")
	cmd.Flags().BoolVar(&useThreads, "use-threads", false, "export runs in parallel")
	_ = cmd.MarkFlagRequired("experiment")
	_ = cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newImportExperimentCmd() *cobra.Command {
	var inputDir, experimentName string
	var runOpts services.RunImportOptions
	var useThreads bool

	cmd := &cobra.Command{
		Use:   "import-experiment",
		Short: "Import one experiment and its runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			in, err := a.openDir(ctx, inputDir)
			if err != nil {
				return err
			}
			importer := services.NewExperimentImporter(a.client, in, services.NewRunImporter(a.client, in, runOpts),
				workerpool.ForThreads(useThreads), services.ExperimentImportOptions{})
			res, err := importer.Import(ctx, experimentName, "")
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Mappings)
		},
	}
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "directory written by export-experiment")
	cmd.Flags().StringVar(&experimentName, "experiment-name", "", "destination experiment name (default: source name)")
	cmd.Flags().BoolVar(&runOpts.UseSrcUserID, "use-src-user-id", false, "create runs as their source user when allowed")
	cmd.Flags().BoolVar(&runOpts.ImportMetadataTags, "import-metadata-tags", false, "keep mlflow_export_import.metadata.* tags")
	cmd.Flags().BoolVar(&useThreads, "use-threads", false, "import runs in parallel")
	_ = cmd.MarkFlagRequired("input-dir")
	return cmd
}

func newExportModelCmd() *cobra.Command {
	var model, outputDir, stages string

	cmd := &cobra.Command{
		Use:   "export-model",
		Short: "Export one registered model with the runs behind its versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			filter, err := domain.ParseStages(stages)
			if err != nil {
				return fmt.Errorf("--stages: %w", err)
			}
			out, err := a.openDir(ctx, outputDir)
			if err != nil {
				return err
			}
			runs := services.NewRunExporter(a.client, out, services.RunExportOptions{})
			exporter := services.NewModelExporter(a.client, out, runs,
				services.ModelExportOptions{Stages: filter, ExportRun: true}, a.cfg.MLflow.PageSize)
			res, err := exporter.Export(ctx, model, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model %s: %d versions ok, %d failed\n",
				res.Name, len(res.Versions.OK), len(res.Versions.Failed))
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "registered model name")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory")
	cmd.Flags().StringVar(&stages, "stages", "", "comma separated stages to export")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newImportModelCmd() *cobra.Command {
	var inputDir, model, experimentName string
	var deleteModel bool
	var runOpts services.RunImportOptions

	cmd := &cobra.Command{
		Use:   "import-model",
		Short: "Import one registered model written by export-model",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			in, err := a.openDir(ctx, inputDir)
			if err != nil {
				return err
			}
			importer := services.NewModelImporter(a.client, in, services.NewRunImporter(a.client, in, runOpts),
				services.ModelImportOptions{DeleteModel: deleteModel})
			res, err := importer.ImportWithRuns(ctx, model, "", experimentName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model %s: %d versions ok, %d failed\n",
				res.DstName, len(res.Versions.OK), len(res.Versions.Failed))
			return nil
		},
	}
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "directory written by export-model")
	cmd.Flags().StringVar(&model, "model", "", "destination model name (default: source name)")
	cmd.Flags().StringVar(&experimentName, "experiment-name", "", "experiment receiving the version runs")
	cmd.Flags().BoolVar(&deleteModel, "delete-model", false, "delete an existing model of the same name first (irreversible)")
	cmd.Flags().BoolVar(&runOpts.UseSrcUserID, "use-src-user-id", false, "create runs as their source user when allowed")
	cmd.Flags().BoolVar(&runOpts.ImportMetadataTags, "import-metadata-tags", false, "keep mlflow_export_import.metadata.* tags")
	_ = cmd.MarkFlagRequired("input-dir")
	_ = cmd.MarkFlagRequired("experiment-name")
	return cmd
}
