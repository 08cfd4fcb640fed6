package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/importer"
	"github.com/veridian-env/wastestream/internal/model"
)

var itemsFlags struct {
	tenant string
	run    string
	status string
	limit  int
	offset int
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Inspect import items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items extracted for a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		items, err := importer.NewStore(pool).ListItems(ctx, itemsFlags.tenant, itemsFlags.run,
			model.ItemStatus(itemsFlags.status), itemsFlags.limit, itemsFlags.offset)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tREVIEW\tCONF\tDUPES")
		for _, it := range items {
			conf := "-"
			if it.Confidence != nil {
				conf = fmt.Sprintf("%d", *it.Confidence)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%d\n",
				it.ID, it.Type, it.Status, it.NeedsReview, conf, len(it.DuplicateCandidates))
		}
		return w.Flush()
	},
}

var itemsGetCmd = &cobra.Command{
	Use:   "get <item-id>",
	Short: "Print one item as JSON, including duplicate candidates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		item, err := importer.NewStore(pool).GetItem(ctx, itemsFlags.tenant, args[0])
		if err != nil {
			return err
		}
		return printJSON(item)
	},
}

func init() {
	itemsCmd.PersistentFlags().StringVar(&itemsFlags.tenant, "tenant", "", "tenant id (required)")
	_ = itemsCmd.MarkPersistentFlagRequired("tenant")
	itemsListCmd.Flags().StringVar(&itemsFlags.run, "run", "", "run id (required)")
	_ = itemsListCmd.MarkFlagRequired("run")
	itemsListCmd.Flags().StringVar(&itemsFlags.status, "status", "", "filter by item status")
	itemsListCmd.Flags().IntVar(&itemsFlags.limit, "limit", 200, "maximum rows to return")
	itemsListCmd.Flags().IntVar(&itemsFlags.offset, "offset", 0, "rows to skip")
	itemsCmd.AddCommand(itemsListCmd, itemsGetCmd)
	rootCmd.AddCommand(itemsCmd)
}
