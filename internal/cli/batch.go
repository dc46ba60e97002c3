package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/cardpricer/internal/pipeline"
	"github.com/ppiankov/cardpricer/internal/store"
	"github.com/ppiankov/cardpricer/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Price several card databases in parallel",
	Long: `Batch prices every card database listed in a file (one path or URL
per line, # starts a comment) and writes a JSON and Markdown report for each.

Each database gets its own fitted model unless --coefficients or
--from-run supplies one shared model.

Example:
  cardpricer batch sources.txt
  cardpricer batch sources.txt --concurrency 4 --output-dir ./reports
  cardpricer batch sources.txt --coefficients coeffs.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "databases priced in parallel")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./cardpricer-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "batch-timeout", 30*time.Minute, "total timeout for the batch")

	addExtractionFlags(batchCmd)
	batchCmd.Flags().StringVar(&coefficientsFile, "coefficients", "", "apply coefficients from a YAML file instead of fitting")
	batchCmd.Flags().StringVar(&fromRun, "from-run", "", "apply coefficients of a stored run (ID or \"latest\")")
	batchCmd.Flags().StringVar(&storePath, "store", "", "run history database (overrides store.path)")
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record runs in the run history")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh download)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer func() { _ = st.Close() }()
	}

	coeffs, err := resolveCoefficients(ctx, st)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	logger.Info("batch started",
		zap.String("file", file),
		zap.Int("concurrency", concurrency),
		zap.String("output_dir", outputDir))

	p := pipeline.NewPipeline(cfg, logger).WithCoefficients(coeffs)
	processor := worker.NewBatchProcessor(p, concurrency)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.Top)
	out := cmd.OutOrStdout()
	failures := 0

	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(out, "✗ %s: %v\n", result.Source, result.Error)
			continue
		}

		slug := reportSlug(result.Index, result.Source)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			failures++
			fmt.Fprintf(out, "✗ %s: failed to write JSON: %v\n", result.Source, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
			failures++
			fmt.Fprintf(out, "✗ %s: failed to write Markdown: %v\n", result.Source, err)
			continue
		}
		if st != nil && !noSave {
			if err := st.SaveReport(ctx, result.Report); err != nil {
				logger.Warn("record run failed", zap.String("source", result.Source), zap.Error(err))
			}
		}

		fmt.Fprintf(out, "✓ %s: %d of %d cards priced → %s\n",
			result.Source, result.Report.Stats.Accepted, result.Report.Stats.Total, jsonPath)
	}

	fmt.Fprintf(out, "\nTotal: %d, succeeded: %d, failed: %d\n", len(results), len(results)-failures, failures)
	if failures > 0 {
		return fmt.Errorf("%d of %d sources failed", failures, len(results))
	}
	return nil
}

// reportSlug derives a file-safe report name; the index keeps names unique
func reportSlug(index int, source string) string {
	name := filepath.Base(strings.TrimRight(source, "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	name = replacer.Replace(name)
	if name == "" || name == "." {
		name = "source"
	}
	return fmt.Sprintf("%02d-%s", index+1, name)
}
