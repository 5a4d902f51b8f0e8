package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/core/services"
)

type bulkExportFlags struct {
	outputDir          string
	stages             string
	notebookFormats    string
	exportAllRuns      bool
	exportMetadataTags bool
	useThreads         bool
}

func (f *bulkExportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "output directory, local path or s3://bucket/prefix")
	cmd.Flags().StringVar(&f.notebookFormats, "notebook-formats", "", "notebook formats to record, e.g. SOURCE,DBC")
	cmd.Flags().BoolVar(&f.exportMetadataTags, "export-metadata-tags", false, "add mlflow_export_import.metadata.* tags to exported runs")
	cmd.Flags().BoolVar(&f.useThreads, "use-threads", false, "export independent units in parallel")
	_ = cmd.MarkFlagRequired("output-dir")
}

func (f *bulkExportFlags) options() (services.BulkExportOptions, error) {
	stages, err := domain.ParseStages(f.stages)
	if err != nil {
		return services.BulkExportOptions{}, fmt.Errorf("--stages: %w", err)
	}
	return services.BulkExportOptions{
		Stages:             stages,
		NotebookFormats:    splitList(f.notebookFormats),
		ExportAllRuns:      f.exportAllRuns,
		ExportMetadataTags: f.exportMetadataTags,
		UseThreads:         f.useThreads,
	}, nil
}

// runBulkExport wires a BulkExporter and prints a summary of the manifest.
func runBulkExport(cmd *cobra.Command, f *bulkExportFlags, run func(context.Context, *services.BulkExporter) (*domain.Manifest, error)) error {
	ctx := cmd.Context()
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	a.withHistory(ctx)
	defer a.close()

	opts, err := f.options()
	if err != nil {
		return err
	}
	out, err := a.openDir(ctx, f.outputDir)
	if err != nil {
		return err
	}

	exporter := services.NewBulkExporter(a.client, out, a.repo, opts, a.cfg.MLflow.PageSize)
	m, err := run(ctx, exporter)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), m)
	return nil
}

func newExportExperimentsCmd() *cobra.Command {
	var f bulkExportFlags
	var experiments string

	cmd := &cobra.Command{
		Use:   "export-experiments",
		Short: "Export experiments and all their runs",
		Long: `Export experiments selected by --experiments:
  all             every experiment
  prefix*         experiments whose name starts with prefix
  1,2,my-exp      a list of experiment IDs or names`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := domain.ParseSelector(experiments)
			return runBulkExport(cmd, &f, func(ctx context.Context, b *services.BulkExporter) (*domain.Manifest, error) {
				return b.ExportExperiments(ctx, sel)
			})
		},
	}
	cmd.Flags().StringVar(&experiments, "experiments", "", "experiment selector")
	_ = cmd.MarkFlagRequired("experiments")
	f.register(cmd)
	return cmd
}

func newExportModelsCmd() *cobra.Command {
	var f bulkExportFlags
	var models string

	cmd := &cobra.Command{
		Use:   "export-models",
		Short: "Export registered models and the experiments owning their runs",
		Long: `Export registered models selected by --models ("all", "prefix*" or a list)
together with the experiments that own the runs behind their versions.
Each experiment is exported once. Without --export-all-runs only runs backing
an exported version are included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := domain.ParseSelector(models)
			return runBulkExport(cmd, &f, func(ctx context.Context, b *services.BulkExporter) (*domain.Manifest, error) {
				return b.ExportModels(ctx, sel)
			})
		},
	}
	cmd.Flags().StringVar(&models, "models", "", "registered model selector")
	cmd.Flags().StringVar(&f.stages, "stages", "", "comma separated stages to export, e.g. Production,Staging")
	cmd.Flags().BoolVar(&f.exportAllRuns, "export-all-runs", false, "export every run of the mapped experiments")
	_ = cmd.MarkFlagRequired("models")
	f.register(cmd)
	return cmd
}

func newExportAllCmd() *cobra.Command {
	var f bulkExportFlags

	cmd := &cobra.Command{
		Use:   "export-all",
		Short: "Export every experiment and registered model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkExport(cmd, &f, func(ctx context.Context, b *services.BulkExporter) (*domain.Manifest, error) {
				return b.ExportAll(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&f.stages, "stages", "", "comma separated stages to export")
	f.register(cmd)
	return cmd
}

type bulkImportFlags struct {
	inputDir           string
	experimentSuffix   string
	deleteModel        bool
	useSrcUserID       bool
	importMetadataTags bool
	useThreads         bool
}

func (f *bulkImportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inputDir, "input-dir", "", "export directory, local path or s3://bucket/prefix")
	cmd.Flags().StringVar(&f.experimentSuffix, "experiment-name-suffix", "", "suffix appended to imported experiment names")
	cmd.Flags().BoolVar(&f.useSrcUserID, "use-src-user-id", false, "create runs as their source user when the server allows it")
	cmd.Flags().BoolVar(&f.importMetadataTags, "import-metadata-tags", false, "keep mlflow_export_import.metadata.* tags")
	cmd.Flags().BoolVar(&f.useThreads, "use-threads", false, "import independent units in parallel")
	_ = cmd.MarkFlagRequired("input-dir")
}

func runBulkImport(cmd *cobra.Command, f *bulkImportFlags, run func(context.Context, *services.BulkImporter) (*domain.Manifest, error)) error {
	ctx := cmd.Context()
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	a.withHistory(ctx)
	defer a.close()

	in, err := a.openDir(ctx, f.inputDir)
	if err != nil {
		return err
	}

	importer := services.NewBulkImporter(a.client, in, a.repo, services.BulkImportOptions{
		ExperimentNameSuffix: f.experimentSuffix,
		DeleteModel:          f.deleteModel,
		UseSrcUserID:         f.useSrcUserID,
		ImportMetadataTags:   f.importMetadataTags,
		UseThreads:           f.useThreads,
	})
	m, err := run(ctx, importer)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), m)
}

func newImportExperimentsCmd() *cobra.Command {
	var f bulkImportFlags

	cmd := &cobra.Command{
		Use:   "import-experiments",
		Short: "Import experiments written by export-experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkImport(cmd, &f, func(ctx context.Context, b *services.BulkImporter) (*domain.Manifest, error) {
				m, _, err := b.ImportExperiments(ctx)
				return m, err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newImportModelsCmd() *cobra.Command {
	var f bulkImportFlags

	cmd := &cobra.Command{
		Use:   "import-models",
		Short: "Import experiments, then registered models written by export-models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkImport(cmd, &f, func(ctx context.Context, b *services.BulkImporter) (*domain.Manifest, error) {
				return b.ImportModels(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&f.deleteModel, "delete-model", false, "delete existing registered models of the same name first (irreversible)")
	f.register(cmd)
	return cmd
}

func newImportAllCmd() *cobra.Command {
	var f bulkImportFlags

	cmd := &cobra.Command{
		Use:   "import-all",
		Short: "Import the output of export-all",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkImport(cmd, &f, func(ctx context.Context, b *services.BulkImporter) (*domain.Manifest, error) {
				return b.ImportAll(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&f.deleteModel, "delete-model", false, "delete existing registered models of the same name first (irreversible)")
	f.register(cmd)
	return cmd
}

func printSummary(w io.Writer, m *domain.Manifest) {
	for _, p := range m.Phases {
		fmt.Fprintf(w, "%s: %d ok, %d failed (%.1fs)\n", p.Entity, len(p.OK), len(p.Failed), p.DurationSeconds())
	}
	fmt.Fprintf(w, "%s: %d ok, %d failed (%.1fs)\n", m.Entity, len(m.OK), len(m.Failed), m.DurationSeconds())
	for _, c := range m.Children {
		fmt.Fprintf(w, "  %s: %d ok, %d failed\n", c.Entity, len(c.OK), len(c.Failed))
	}
	fmt.Fprintf(w, "operation %s finished\n", m.OperationID)
}

func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
