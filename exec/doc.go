// Package exec provides the tool execution facade.
//
// An [Exec] combines a [tool.Registry], a [monitor.Monitor] and a retry
// policy into a single entry point whose Execute method never fails: every
// failure path, from an unknown tool name to retry exhaustion, ends in a
// failed [tool.Outcome] carrying a readable message.
//
// # Basic Usage
//
//	executor, err := exec.New(exec.Options{})
//	if err != nil {
//	    return err
//	}
//	_ = executor.RegisterTool(tool.NewFunc("echo", "Echo text", tool.Schema{
//	    "text": {Type: "string", Required: true},
//	}, func(ctx context.Context, params map[string]any) (tool.Outcome, error) {
//	    s, _ := params["text"].(string)
//	    return tool.Success(s), nil
//	}))
//
//	out := executor.Execute(ctx, tool.Invocation{
//	    Name:       "echo",
//	    Parameters: map[string]any{"text": "hi"},
//	})
//
// # Pipeline
//
// Execute looks the tool up, then runs it through the retry coordinator with
// the monitor as the retried operation. Every attempt is recorded by the
// monitor; a registry miss is not an attempt and is never recorded.
//
// Timeouts and cancellations are returned by the monitor as failed outcomes
// and are therefore not retried. Set Options.RetryInterrupted to surface them
// as retryable errors instead; a cancelled attempt is still never retried.
//
// # Search and Describe
//
// Registered tools are indexed for BM25 search and documentation lookup:
//
//	results, _ := executor.SearchTools(ctx, "echo text", 5)
//	doc, _ := executor.DescribeTool(ctx, "echo", tooldoc.DetailFull)
//
// # Batches
//
// ExecuteBatch runs many invocations through Execute under the batch
// scheduler, so each one retries and is recorded independently.
package exec
