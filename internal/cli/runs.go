package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/cardpricer/internal/pipeline"
	"github.com/ppiankov/cardpricer/internal/store"
)

var runsLimit int

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run history",
	Long: `Runs lists and shows pricing runs recorded in the run history
database (store.path or --store).`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id|latest>",
	Short: "Print the summary of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.PersistentFlags().StringVar(&storePath, "store", "", "run history database (overrides store.path)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs listed")
	runsShowCmd.Flags().IntVar(&top, "top", 0, "cards listed per section (0 uses output.top)")
}

// openStore opens the configured run history for the runs subcommands
func openStore(cmd *cobra.Command) (*store.Store, int, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, 0, err
	}
	_ = logger.Sync()

	if cfg.Store.Path == "" {
		return nil, 0, fmt.Errorf("no run history configured (--store or store.path)")
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("open run history: %w", err)
	}
	return st, cfg.Output.Top, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	st, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	runs, err := st.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGENERATED\tSOURCE\tSTRICT\tCHARGE\tFITTED\tACCEPTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%t\t%d/%d\n",
			r.ID, r.GeneratedAt.Format("2006-01-02 15:04:05"), r.Source,
			r.Strict, r.ChargeMode, r.Refitted, r.Accepted, r.Total)
	}
	return w.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	st, top, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	runID := args[0]
	if runID == "latest" {
		if runID, err = st.LatestRunID(ctx); err != nil {
			return err
		}
	}

	report, err := st.LoadReport(ctx, runID)
	if err != nil {
		return err
	}
	return pipeline.NewRenderer(top).RenderSummary(cmd.OutOrStdout(), report)
}
