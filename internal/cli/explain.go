package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/cardpricer/internal/pipeline"
)

// explainCmd represents the explain command
var explainCmd = &cobra.Command{
	Use:   "explain [file|url] <card name>",
	Short: "Show how a card's text was turned into features",
	Long: `Explain runs mechanics extraction on a single card and prints every
step: the sanitized text, each rule that matched, the features it produced,
the unexplained residue and the rejection reason if any.

Card names match case-insensitively. With one argument the configured
data.path or data.url is searched.

Example:
  cardpricer explain AllSets.json "Argent Squire"
  cardpricer explain "Old Murk-Eye" --strict=false`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)

	addExtractionFlags(explainCmd)
	addFetchFlags(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	source, name := "", args[0]
	if len(args) == 2 {
		source, name = args[0], args[1]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	p := pipeline.NewPipeline(cfg, logger)
	exps, err := p.Explain(ctx, source, name)
	if err != nil {
		return fmt.Errorf("explain failed: %w", err)
	}

	return pipeline.NewRenderer(cfg.Output.Top).RenderExplanation(cmd.OutOrStdout(), exps)
}
