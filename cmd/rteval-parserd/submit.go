package main

import (
	"fmt"
	"path/filepath"

	"github.com/rteval/parserd/config"
	"github.com/rteval/parserd/sql"

	"github.com/spf13/cobra"
)

func newSubmitCmd(opts *options) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "submit <payload.xml>",
		Short: "Enqueue an XML payload into the submission queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			payload, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			db, err := openDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := sql.NewSubmitter(db).Submit(cmd.Context(), clientID, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client identity of the submission")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}
