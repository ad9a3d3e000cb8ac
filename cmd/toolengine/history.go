package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolengine/monitor"
)

var errNoStore = errors.New("durable history needs --db or history.sqlite_path")

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var f monitor.Filter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show durable execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(a *app) error {
				if a.store == nil {
					return errNoStore
				}
				recs, err := a.store.List(cmd.Context(), f)
				if err != nil {
					return err
				}
				if recs == nil {
					recs = []monitor.ExecutionRecord{}
				}
				return writeJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().StringVar(&f.Tool, "tool", "", "only records for this tool")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 0, "only the N most recent records")
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-tool statistics from durable history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(a *app) error {
				if a.store == nil {
					return errNoStore
				}
				stats, err := a.store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}
