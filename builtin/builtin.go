package builtin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonwraymond/toolengine/tool"
)

// Tool names.
const (
	EchoName       = "echo"
	ReadFileName   = "read_file"
	WriteFileName  = "write_file"
	ListDirName    = "list_dir"
	RunCommandName = "run_command"
)

// Default limits.
const (
	DefaultMaxReadBytes = 64 * 1024
	DefaultMaxDiffLines = 5000
)

// Options configures the builtin tools.
type Options struct {
	// Root is the workspace root file tools are confined to.
	// Default: the current directory
	Root string `yaml:"root"`

	// MaxReadBytes truncates read_file output.
	// Default: DefaultMaxReadBytes
	MaxReadBytes int `yaml:"max_read_bytes"`

	// MaxDiffLines skips the write_file diff for larger files.
	// Default: DefaultMaxDiffLines
	MaxDiffLines int `yaml:"max_diff_lines"`

	// AllowedCommands restricts run_command to these executables.
	// Empty allows any command.
	AllowedCommands []string `yaml:"allowed_commands"`

	// Enabled selects which tools Tools returns. Empty enables all.
	Enabled []string `yaml:"enabled"`
}

func (o *Options) applyDefaults() {
	if o.Root == "" {
		o.Root = "."
	}
	if o.MaxReadBytes <= 0 {
		o.MaxReadBytes = DefaultMaxReadBytes
	}
	if o.MaxDiffLines <= 0 {
		o.MaxDiffLines = DefaultMaxDiffLines
	}
}

// Tools builds the enabled builtin tools.
func Tools(opts Options) ([]tool.Tool, error) {
	opts.applyDefaults()
	guard, err := newPathGuard(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("builtin: resolve root: %w", err)
	}

	all := []tool.Tool{
		Echo(),
		readFile(guard, opts.MaxReadBytes),
		writeFile(guard, opts.MaxDiffLines),
		listDir(guard),
		runCommand(guard, opts.AllowedCommands),
	}
	if len(opts.Enabled) == 0 {
		return all, nil
	}

	byName := make(map[string]tool.Tool, len(all))
	for _, t := range all {
		byName[t.Name()] = t
	}
	out := make([]tool.Tool, 0, len(opts.Enabled))
	for _, name := range opts.Enabled {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("builtin: unknown tool %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Register adds the enabled builtin tools to r.
func Register(r *tool.Registry, opts Options) error {
	tools, err := Tools(opts)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// pathGuard confines paths to a root directory.
type pathGuard struct {
	root string
}

func newPathGuard(root string) (pathGuard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return pathGuard{}, err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return pathGuard{root: abs}, nil
}

// resolve returns the absolute form of path, relative paths being taken
// from the root.
func (g pathGuard) resolve(path string) (string, error) {
	target := path
	switch {
	case path == "":
		target = g.root
	case !filepath.IsAbs(path):
		target = filepath.Join(g.root, path)
	}
	cleaned, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	if !g.contains(cleaned) {
		return "", fmt.Errorf("path %s escapes workspace root", path)
	}
	real, err := evalExisting(cleaned)
	if err != nil {
		return "", fmt.Errorf("path %s: %w", path, err)
	}
	if !g.contains(real) {
		return "", fmt.Errorf("path %s escapes workspace root through a symlink", path)
	}
	return real, nil
}

func (g pathGuard) contains(path string) bool {
	return path == g.root || strings.HasPrefix(path, g.root+string(os.PathSeparator))
}

// evalExisting resolves symlinks in the longest existing prefix of path and
// appends the components that do not exist yet. A dangling symlink is an
// error, since writing through it would create its target.
func evalExisting(path string) (string, error) {
	var missing []string
	for p := path; ; {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{real}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if fi, lerr := os.Lstat(p); lerr == nil && fi.Mode()&fs.ModeSymlink != 0 {
			return "", fmt.Errorf("dangling symlink %s", p)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path, nil
		}
		missing = append([]string{filepath.Base(p)}, missing...)
		p = parent
	}
}

func (g pathGuard) rel(path string) string {
	rel, err := filepath.Rel(g.root, path)
	if err != nil {
		return path
	}
	return rel
}

func stringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func requiredString(params map[string]any, name string) (string, *tool.Outcome) {
	s, ok := stringParam(params, name)
	if !ok || s == "" {
		out := tool.Failure(fmt.Sprintf("parameter %q is required", name))
		return "", &out
	}
	return s, nil
}

func stringSliceParam(params map[string]any, name string) ([]string, error) {
	switch v := params[name].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q must be a list of strings", name)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q must be a list of strings", name)
	}
}
