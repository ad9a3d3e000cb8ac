package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/spf13/cobra"
)

func newToolsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(a *app) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, t := range a.exec.Registry().List() {
					fmt.Fprintf(w, "%s\t%s\n", t.Name(), t.Description())
				}
				return w.Flush()
			})
		},
	}
	cmd.AddCommand(newToolsSearchCmd(g), newToolsDescribeCmd(g))
	return cmd
}

func newToolsSearchCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search registered tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app) error {
				results, err := a.exec.SearchTools(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Name, r.ShortDescription)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of results")
	return cmd
}

func newToolsDescribeCmd(g *globalFlags) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "describe <name>",
		Short: "Show tool documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app) error {
				level := tooldoc.DetailSummary
				if full {
					level = tooldoc.DetailFull
				}
				doc, err := a.exec.DescribeTool(cmd.Context(), args[0], level)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include the full schema")
	return cmd
}
