package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolengine/batch"
	"github.com/jonwraymond/toolengine/config"
	"github.com/jonwraymond/toolengine/exec"
	"github.com/jonwraymond/toolengine/tool"
)

// errToolFailed makes the process exit non-zero after printing a failed
// outcome.
var errToolFailed = errors.New("tool failed")

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		params  []string
		rawArgs string
	)
	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Execute one tool",
		Example: `  toolengine run echo --param text=hello
  toolengine run run_command --args '{"command":"ls","args":["-l"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(rawArgs, params)
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(a *app) error {
				out := a.exec.Execute(cmd.Context(), tool.Invocation{Name: args[0], Parameters: parameters})
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				if !out.Success {
					return errToolFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as key=value; JSON values are decoded")
	cmd.Flags().StringVar(&rawArgs, "args", "", "parameters as a JSON object")
	return cmd
}

// parseParams merges a JSON object with key=value pairs, pairs winning.
func parseParams(rawJSON string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &params); err != nil {
			return nil, fmt.Errorf("--args: %w", err)
		}
	}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--param %q: want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			params[key] = decoded
		} else {
			params[key] = value
		}
	}
	return params, nil
}

// batchFile is the YAML document read by the batch command. Scheduling
// fields override the configuration's batch section.
type batchFile struct {
	config.Batch `yaml:",inline"`
	Invocations  []exec.BatchInvocation `yaml:"invocations"`
}

func newBatchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Execute a batch of invocations in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(a *app) error {
				file := batchFile{Batch: a.cfg.Batch}
				if err := yaml.Unmarshal(data, &file); err != nil {
					return fmt.Errorf("parse %s: %w", args[0], err)
				}
				cfg := a.cfg
				cfg.Batch = file.Batch
				if err := cfg.Validate(); err != nil {
					return err
				}

				results := a.exec.ExecuteBatch(cmd.Context(), file.Invocations, cfg.BatchOptions())
				type entry struct {
					ID      string       `json:"id"`
					Outcome tool.Outcome `json:"outcome"`
					Error   string       `json:"error,omitempty"`
				}
				entries := make([]entry, len(results))
				for i, r := range results {
					entries[i] = entry{ID: r.ID, Outcome: r.Value}
					if r.Err != nil {
						entries[i].Error = r.Err.Error()
					}
				}
				summary := batch.Summarize(results)
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{"results": entries, "summary": summary}); err != nil {
					return err
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%w: %d of %d invocations", errToolFailed, summary.Failed, summary.Total)
				}
				return nil
			})
		},
	}
}
