package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skylinedata/rental-ingest/internal/ingest"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered ingestion sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatSourcesTable(os.Stdout, ingest.Sources())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// formatSourcesTable writes the source registry to out.
func formatSourcesTable(out io.Writer, sources []ingest.Source) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tMETRO\tPROVIDER\tTABLE\tATTEMPTS\tPAGE_DELAY")
	_, _ = fmt.Fprintln(w, "----\t-----\t--------\t-----\t--------\t----------")

	for _, src := range sources {
		policy := fmt.Sprintf("%d lenient", src.Policy.MaxAttempts)
		if src.Policy.StrictStatusWait {
			policy = fmt.Sprintf("%d strict", src.Policy.MaxAttempts)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			src.Name,
			src.Metro,
			src.Family,
			src.Table,
			policy,
			src.PageDelay,
		)
	}
	_ = w.Flush()
}
