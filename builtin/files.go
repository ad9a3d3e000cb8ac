package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/jonwraymond/toolengine/tool"
)

// Echo returns a tool that outputs its text parameter.
func Echo() tool.Tool {
	return tool.NewFunc(EchoName, "Echo the text parameter back", tool.Schema{
		"text": {Type: "string", Description: "Text to echo", Required: true},
	}, func(_ context.Context, params map[string]any) (tool.Outcome, error) {
		s, _ := stringParam(params, "text")
		return tool.Success(s), nil
	})
}

// readFile returns a tool that reads a file inside the workspace.
func readFile(guard pathGuard, maxBytes int) tool.Tool {
	return tool.NewFunc(ReadFileName, "Read the contents of a file in the workspace", tool.Schema{
		"path": {Type: "string", Description: "File path relative to the workspace root", Required: true},
	}, func(ctx context.Context, params map[string]any) (tool.Outcome, error) {
		if err := ctx.Err(); err != nil {
			return tool.Outcome{}, err
		}
		path, failed := requiredString(params, "path")
		if failed != nil {
			return *failed, nil
		}
		abs, err := guard.resolve(path)
		if err != nil {
			return tool.Failure(err.Error()), nil
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return tool.Failure(err.Error()), nil
		}
		if len(data) > maxBytes {
			return tool.Success(string(data[:maxBytes]) + fmt.Sprintf("\n[truncated at %d bytes]", maxBytes)), nil
		}
		return tool.Success(string(data)), nil
	})
}

// writeFile returns a tool that writes a file inside the workspace and
// reports a line diff against the previous contents.
func writeFile(guard pathGuard, maxDiffLines int) tool.Tool {
	return tool.NewFunc(WriteFileName, "Write content to a file in the workspace and show the diff", tool.Schema{
		"path":    {Type: "string", Description: "File path relative to the workspace root", Required: true},
		"content": {Type: "string", Description: "New file content", Required: true},
	}, func(ctx context.Context, params map[string]any) (tool.Outcome, error) {
		if err := ctx.Err(); err != nil {
			return tool.Outcome{}, err
		}
		path, failed := requiredString(params, "path")
		if failed != nil {
			return *failed, nil
		}
		content, ok := stringParam(params, "content")
		if !ok {
			return tool.Failure(`parameter "content" is required`), nil
		}
		abs, err := guard.resolve(path)
		if err != nil {
			return tool.Failure(err.Error()), nil
		}

		before, err := os.ReadFile(abs)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return tool.Failure(err.Error()), nil
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return tool.Failure(err.Error()), nil
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return tool.Failure(err.Error()), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "wrote %d bytes to %s\n", len(content), guard.rel(abs))
		b.WriteString(lineDiff(string(before), content, maxDiffLines))
		return tool.Success(b.String()), nil
	})
}

// lineDiff renders a line diff with "+", "-" and " " prefixes.
func lineDiff(before, after string, maxLines int) string {
	if lineCount(before)+lineCount(after) > maxLines {
		return "(diff omitted: file too large)\n"
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var b strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		lines := strings.Split(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		for _, line := range lines {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// listDir returns a tool that lists a directory inside the workspace.
func listDir(guard pathGuard) tool.Tool {
	return tool.NewFunc(ListDirName, "List the entries of a directory in the workspace", tool.Schema{
		"path": {Type: "string", Description: "Directory path relative to the workspace root", Default: "."},
	}, func(ctx context.Context, params map[string]any) (tool.Outcome, error) {
		if err := ctx.Err(); err != nil {
			return tool.Outcome{}, err
		}
		path, _ := stringParam(params, "path")
		abs, err := guard.resolve(path)
		if err != nil {
			return tool.Failure(err.Error()), nil
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return tool.Failure(err.Error()), nil
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		return tool.Success(strings.Join(names, "\n")), nil
	})
}
