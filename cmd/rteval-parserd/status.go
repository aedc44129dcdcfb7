package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rteval/parserd/config"
	"github.com/rteval/parserd/job"
	"github.com/rteval/parserd/sql"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *options) *cobra.Command {
	var (
		statusName string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List submissions in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			var status job.Status
			if statusName != "" {
				status, err = job.ParseStatus(statusName)
				if err != nil {
					return err
				}
			}
			db, err := openDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			jobs, err := sql.NewObserver(db).List(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCLIENT\tSTATUS\tSUBMITTED")
			for _, jb := range jobs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
					jb.SubmissionID, jb.ClientID, jb.Status,
					jb.SubmittedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&statusName, "status", "", "filter by status name")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to list, 0 = all")
	return cmd
}
