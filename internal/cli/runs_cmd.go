package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/calendar-agent/pkg/runstore"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recently recorded runs (requires DATABASE_URL or MONGO_URI)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.PostgresDSN == "" && cfg.MongoURI == "" {
			return fmt.Errorf("no persistent run store configured")
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		recent, err := a.history.Recent(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), recent, globalFlags.JSON)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}

func printRuns(w io.Writer, runs []runstore.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tMODEL\tOUTCOME\tREASON\tSTEPS\tTOOLS")
	for _, r := range runs {
		reason := string(r.Reason)
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.Started.Format(time.RFC3339), r.Model, r.Outcome, reason, r.Steps, r.ToolCalls)
	}
	return tw.Flush()
}
