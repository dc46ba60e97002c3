package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/cardpricer/internal/pipeline"
)

var fetchOutput string

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download a card database",
	Long: `Fetch downloads a card database once so later runs can work offline.
Downloads honor robots.txt, per-host rate limits and the local cache.

Without an argument the configured data.url is downloaded.

Example:
  cardpricer fetch -o AllSets.json
  cardpricer fetch https://hearthstonejson.com/json/AllSets.json -o AllSets.json --no-cache`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "AllSets.json", "where to write the card database")
	addFetchFlags(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	url := cfg.Data.URL
	if len(args) == 1 {
		url = args[0]
	}
	if !pipeline.IsURL(url) {
		return fmt.Errorf("not an http(s) URL: %s", url)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	p := pipeline.NewPipeline(cfg, logger)
	result, err := p.Fetcher().FetchWithRetry(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	// refuse to save something the loader cannot read
	cards, err := pipeline.NewLoader(cfg.Data).Parse(result.Body)
	if err != nil {
		return err
	}

	if err := os.WriteFile(fetchOutput, result.Body, 0644); err != nil {
		return fmt.Errorf("write card database: %w", err)
	}

	logger.Info("card database saved",
		zap.String("path", fetchOutput),
		zap.Int("bytes", len(result.Body)),
		zap.Int("cards", len(cards)),
		zap.Bool("cached", result.FromCache))
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %d cards to %s\n", len(cards), fetchOutput)
	return nil
}
