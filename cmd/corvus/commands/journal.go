package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/corvusmta/corvus/internal/outcome"
)

var (
	journalKind  string
	journalLimit int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the outcome journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent per-recipient outcome records",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch journalKind {
		case "", outcome.KindDefer, outcome.KindBounce, outcome.KindSent:
		default:
			return fmt.Errorf("unknown kind %q (expected defer, bounce or sent)", journalKind)
		}

		j, err := outcome.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()

		records, err := j.List(journalKind, journalLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No outcome records found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RECORDED\tKIND\tQUEUE ID\tRECIPIENT\tHOST\tREASON")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.RecordedAt.Format("2006-01-02 15:04:05"),
				r.Kind,
				r.Record.QueueID,
				r.Record.EffectiveAddr,
				r.Record.Host,
				r.Record.Reason)
		}
		return w.Flush()
	},
}

func init() {
	journalListCmd.Flags().StringVarP(&journalKind, "kind", "k", "", "Filter by record kind (defer, bounce, sent)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "Maximum number of records to show")
	journalCmd.AddCommand(journalListCmd)
	rootCmd.AddCommand(journalCmd)
}
