package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the model can currently see",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return printManifest(cmd.OutOrStdout(), a.registry.Available(), globalFlags.JSON)
	},
}

func printManifest(w io.Writer, specs []tools.Spec, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(specs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREQUIRED\tDESCRIPTION")
	for _, s := range specs {
		required := strings.Join(s.RequiredParameters(), ",")
		if required == "" {
			required = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, required, s.Description)
	}
	return tw.Flush()
}
