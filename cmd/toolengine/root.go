package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "toolengine",
		Short:         "Run tools with timeouts, retries and execution history",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&g.root, "root", "", "workspace root for file and command tools")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database for durable execution history")
	root.PersistentFlags().BoolVar(&g.trace, "trace", false, "write OpenTelemetry spans to stderr")

	root.AddCommand(
		newToolsCmd(g),
		newRunCmd(g),
		newBatchCmd(g),
		newHistoryCmd(g),
		newStatsCmd(g),
		newServeMCPCmd(g),
		newServeHTTPCmd(g),
	)
	return root
}
