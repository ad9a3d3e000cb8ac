package toolerr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"
)

type rule struct {
	category Category
	patterns []string
}

// Rules are checked in order; the first match wins.
var rules = []rule{
	{Network, []string{
		"econnrefused", "connection refused", "connection reset", "etimedout",
		"timeout", "timed out", "enotfound", "eai_again", "no such host", "dns", "network",
	}},
	{FileOperation, []string{
		"enoent", "eacces", "eperm", "no such file", "permission denied",
		"operation not permitted", "is a directory", "not a directory",
	}},
	{Model, []string{"model", "api", "completion"}},
	{ToolExecution, []string{"command", "execution", "spawn", "exit status"}},
}

// Classify maps err onto the taxonomy. It returns nil for a nil error and
// returns an already classified error unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Wrap(ToolExecution, err)
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		e := Wrap(ToolExecution, err)
		e.Retryable = false
		e.SuggestedAction = "Execution was cancelled; run it again if still needed"
		return e
	}

	if isNetworkError(err) {
		return Wrap(Network, err)
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrExist) {
		return Wrap(FileOperation, err)
	}
	return Wrap(classifyMessage(err.Error()), err)
}

// isNetworkError matches the concrete network error types only. The net.Error
// interface is not enough: syscall.Errno implements it, so every wrapped
// filesystem errno would match.
func isNetworkError(err error) bool {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	return errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr)
}

func classifyMessage(msg string) Category {
	msg = strings.ToLower(msg)
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return r.category
			}
		}
	}
	return System
}

// Format renders a classified error for display to the model or the user.
func Format(e *Error) string {
	if e == nil {
		return ""
	}
	msg := strings.TrimRight(e.Message, ". ")
	out := fmt.Sprintf("[%s/%s] %s.", e.Category.Label(), e.Severity.Label(), msg)
	if e.SuggestedAction != "" {
		out += " Suggested action: " + e.SuggestedAction + "."
	}
	return out
}
