// Package tool defines the capability every executable tool implements and
// the registry the engine looks tools up in.
//
// # Tools
//
// A [Tool] is a named operation with a fixed parameter [Schema]. Tools are
// black boxes to the engine: it only calls [Tool.Execute] and reads the
// returned [Outcome].
//
// Expected failures (a missing file, a non-zero exit status) are reported as
// an Outcome with Success set to false and a nil error. A non-nil error means
// the tool itself is broken and is handed to the retry layer for
// classification.
//
// The context passed to Execute is the cancellation channel. Tools that block
// on I/O should pass it through so that timeouts and cancellations reach the
// underlying operation:
//
//	cmd := exec.CommandContext(ctx, "sh", "-c", command)
//
// # Registry
//
// The [Registry] maps names to tools and indexes every tool in a tooldiscovery
// index so that callers can search and describe them:
//
//	reg := tool.NewRegistry()
//	_ = reg.Register(tool.NewFunc("echo", "Echo text back", tool.Schema{
//	    "text": {Type: "string", Description: "Text to echo", Required: true},
//	}, func(_ context.Context, params map[string]any) (tool.Outcome, error) {
//	    return tool.Success(fmt.Sprint(params["text"])), nil
//	}))
//
//	t, ok := reg.Get("echo")
//
// Registration is last-write-wins and safe to call concurrently with lookups.
package tool
