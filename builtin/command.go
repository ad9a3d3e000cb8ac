package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/jonwraymond/toolengine/tool"
)

// runCommand returns a tool that runs an executable inside the workspace.
// An empty allowed list permits any executable.
func runCommand(guard pathGuard, allowed []string) tool.Tool {
	return tool.NewFunc(RunCommandName, "Run a command in the workspace and return its output", tool.Schema{
		"command": {Type: "string", Description: "Executable to run", Required: true},
		"args":    {Type: "array", Description: "Command arguments"},
		"dir":     {Type: "string", Description: "Working directory relative to the workspace root", Default: "."},
	}, func(ctx context.Context, params map[string]any) (tool.Outcome, error) {
		name, failed := requiredString(params, "command")
		if failed != nil {
			return *failed, nil
		}
		if len(allowed) > 0 && !slices.Contains(allowed, name) {
			return tool.Failure(fmt.Sprintf("command %q is not allowed", name)), nil
		}
		args, err := stringSliceParam(params, "args")
		if err != nil {
			return tool.Failure(err.Error()), nil
		}
		dir, _ := stringParam(params, "dir")
		workdir, err := guard.resolve(dir)
		if err != nil {
			return tool.Failure(err.Error()), nil
		}

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Dir = workdir
		cmd.Stdin = nil
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Start(); err != nil {
			return tool.Outcome{}, fmt.Errorf("spawn %s: %w", name, err)
		}
		err = cmd.Wait()
		if err == nil {
			return tool.Success(stdout.String()), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tool.Outcome{}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out := tool.Failure(fmt.Sprintf("command exited with code %d: %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String())))
			out.Output = stdout.String()
			return out, nil
		}
		return tool.Outcome{}, fmt.Errorf("command execution %s: %w", name, err)
	})
}
