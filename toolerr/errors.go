package toolerr

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sentinel errors for interrupted attempts.
var (
	// ErrTimeout indicates an attempt was abandoned because its deadline passed.
	ErrTimeout = errors.New("timed out")

	// ErrCancelled indicates an attempt was abandoned on request.
	ErrCancelled = errors.New("execution was cancelled")
)

// Category groups errors by their likely origin.
type Category string

// Error categories.
const (
	Validation    Category = "validation"
	FileOperation Category = "file_operation"
	Model         Category = "model"
	ToolExecution Category = "tool_execution"
	Network       Category = "network"
	Parsing       Category = "parsing"
	Context       Category = "context"
	System        Category = "system"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	Validation, FileOperation, Model, ToolExecution, Network, Parsing, Context, System,
}

// Severity ranks how serious an error is.
type Severity string

// Severities, lowest first.
const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

type defaults struct {
	severity  Severity
	retryable bool
	action    string
}

var categoryDefaults = map[Category]defaults{
	Validation:    {Medium, false, "Check the tool parameters and try again"},
	FileOperation: {Medium, true, "Check that the path exists and is accessible"},
	Model:         {High, true, "Check the model API configuration and retry later"},
	ToolExecution: {Medium, true, "Check the command or tool arguments and retry"},
	Network:       {High, true, "Check network connectivity and retry"},
	Parsing:       {Low, false, "Rephrase the request so it can be parsed"},
	Context:       {Medium, true, "Reduce the conversation context and retry"},
	System:        {Critical, false, "Report this failure; it is not recoverable automatically"},
}

// Error is a classified failure.
type Error struct {
	Category        Category
	Severity        Severity
	Message         string
	Retryable       bool
	SuggestedAction string

	// Err is the underlying error, if any.
	Err error
}

// New creates an Error with the category's default severity, retryability
// and suggested action.
func New(category Category, message string) *Error {
	d, ok := categoryDefaults[category]
	if !ok {
		category = System
		d = categoryDefaults[System]
	}
	return &Error{
		Category:        category,
		Severity:        d.severity,
		Message:         message,
		Retryable:       d.retryable,
		SuggestedAction: d.action,
	}
}

// Wrap classifies err under category, keeping it as the underlying error.
func Wrap(category Category, err error) *Error {
	if err == nil {
		return nil
	}
	e := New(category, err.Error())
	e.Err = err
	return e
}

// Error returns the message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Label returns the display name of a category, e.g. "File Operation".
func (c Category) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(c), "_", " "))
}

// Label returns the display name of a severity, e.g. "High".
func (s Severity) Label() string {
	return cases.Title(language.English).String(string(s))
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryDefaults[c]
	return ok
}
