package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/cardpricer/internal/model"
	"github.com/ppiankov/cardpricer/internal/pipeline"
	"github.com/ppiankov/cardpricer/internal/price"
	"github.com/ppiankov/cardpricer/internal/store"
)

var (
	outJSON          string
	outMD            string
	top              int
	strict           bool
	chargeMode       string
	workers          int
	columns          []string
	coefficientsFile string
	saveCoefficients string
	fromRun          string
	storePath        string
	noSave           bool
	noCache          bool
	runTimeout       time.Duration
)

// priceCmd represents the price command
var priceCmd = &cobra.Command{
	Use:   "price [file|url]",
	Short: "Fit the pricing model and rank cards by value",
	Long: `Price loads a card database, extracts mechanics from every minion,
fits (or reuses) the linear model and prints the most under-costed cards.

Without an argument the configured data.path or data.url is used.

Example:
  cardpricer price AllSets.json
  cardpricer price AllSets.json --json report.json --md report.md
  cardpricer price AllSets.json --strict=false --charge-mode attack_plus_windfury
  cardpricer price AllSets.json --save-coefficients coeffs.yaml
  cardpricer price NewSets.json --coefficients coeffs.yaml
  cardpricer price NewSets.json --store runs.db --from-run latest`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	priceCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	priceCmd.Flags().IntVar(&top, "top", 0, "cards listed per section (0 uses output.top)")

	addExtractionFlags(priceCmd)
	priceCmd.Flags().StringSliceVar(&columns, "columns", nil, "predictor columns (default: every derived feature)")

	priceCmd.Flags().StringVar(&coefficientsFile, "coefficients", "", "apply coefficients from a YAML file instead of fitting")
	priceCmd.Flags().StringVar(&saveCoefficients, "save-coefficients", "", "write the coefficients used to a YAML file")
	priceCmd.Flags().StringVar(&fromRun, "from-run", "", "apply coefficients of a stored run (ID or \"latest\")")
	priceCmd.Flags().StringVar(&storePath, "store", "", "run history database (overrides store.path)")
	priceCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record this run in the run history")

	addFetchFlags(priceCmd)
}

// addExtractionFlags registers flags shared by every command that processes cards
func addExtractionFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&strict, "strict", true, "reject cards with unknown tags or unexplained text")
	cmd.Flags().StringVar(&chargeMode, "charge-mode", "", "charge feature: attack or attack_plus_windfury")
	cmd.Flags().IntVar(&workers, "workers", 0, "cards processed in parallel (0 uses concurrency.workers)")
}

// addFetchFlags registers flags shared by every command that may download
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh download)")
	cmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall timeout")
}

// applyFlags copies explicitly set command flags over the loaded configuration
func applyFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("strict") {
		cfg.Extraction.Strict = strict
	}
	if flags.Changed("charge-mode") {
		cfg.Extraction.ChargeMode = model.ChargeMode(chargeMode)
	}
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if flags.Changed("columns") {
		cfg.Pricing.Columns = columns
	}
	if flags.Changed("top") {
		cfg.Output.Top = top
	}
	if flags.Changed("json") {
		cfg.Output.JSONPath = outJSON
	}
	if flags.Changed("md") {
		cfg.Output.MarkdownPath = outMD
	}
	if flags.Changed("store") {
		cfg.Store.Path = storePath
	}
	if flags.Changed("no-cache") && noCache {
		cfg.Cache.Enabled = false
	}
}

// setup loads configuration, applies cmd's flags and builds the logger
func setup(cmd *cobra.Command) (*model.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runPrice(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if coefficientsFile != "" && fromRun != "" {
		return fmt.Errorf("--coefficients and --from-run are mutually exclusive")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
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

	source := ""
	if len(args) == 1 {
		source = args[0]
	}

	p := pipeline.NewPipeline(cfg, logger).WithCoefficients(coeffs)
	result, err := p.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("price failed: %w", err)
	}

	if saveCoefficients != "" {
		if err := price.SaveCoefficients(saveCoefficients, result.Coefficients); err != nil {
			return err
		}
		logger.Info("wrote coefficients", zap.String("path", saveCoefficients))
	}

	if st != nil && !noSave {
		if err := st.SaveReport(ctx, result.Report); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		logger.Info("recorded run", zap.String("run_id", result.Report.RunID), zap.String("store", cfg.Store.Path))
	}

	if err := p.RenderReport(result.Report, cfg.Output.JSONPath, cfg.Output.MarkdownPath, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

// resolveCoefficients returns the coefficients selected by --coefficients
// or --from-run, nil when the model should be fitted
func resolveCoefficients(ctx context.Context, st *store.Store) (*price.Coefficients, error) {
	if coefficientsFile != "" {
		return price.LoadCoefficients(coefficientsFile)
	}
	if fromRun == "" {
		return nil, nil
	}
	if st == nil {
		return nil, fmt.Errorf("--from-run needs a run history (--store or store.path)")
	}

	runID := fromRun
	if runID == "latest" {
		id, err := st.LatestRunID(ctx)
		if err != nil {
			return nil, err
		}
		runID = id
	}

	entries, err := st.LoadCoefficients(ctx, runID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Using coefficients of run %s\n", runID)
	return price.FromEntries(entries), nil
}
