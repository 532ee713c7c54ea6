package mcp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ToolErrorKind classifies tool dispatch failures.
type ToolErrorKind string

const (
	// InvalidInput covers unknown tools and schema violations.
	InvalidInput ToolErrorKind = "invalid_input"
	// ExecutionFailed covers handler failures.
	ExecutionFailed ToolErrorKind = "execution_failed"
)

// ToolError is the structured error returned over the control channel.
type ToolError struct {
	Kind    ToolErrorKind
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp: %s: %s", e.Kind, e.Message)
}

func asToolError(err error, target **ToolError) bool {
	return errors.As(err, target)
}

// ExecutionError builds an ExecutionFailed error for handlers that want to
// report a structured failure.
func ExecutionError(format string, args ...any) error {
	return &ToolError{Kind: ExecutionFailed, Message: fmt.Sprintf(format, args...)}
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
