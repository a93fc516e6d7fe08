package replcore

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrHeadlessAsk is returned when ask() is invoked in a headless session.
var ErrHeadlessAsk = errors.New("replcore: ask() is disabled in headless mode")

// ErrUnknownTool is returned when a dispatch targets a name the registry
// has no proxy for.
var ErrUnknownTool = errors.New("replcore: unknown tool")

// ErrSessionClosed is returned by operations attempted after Session.Close.
var ErrSessionClosed = errors.New("replcore: session is closed")

// ToolError is the failure shape surfaced by a dispatched tool call. It
// always implements error (so, uncaught, it halts the current statement per
// §4.2) and is always "falsy": IsFalsy reports true unconditionally so
// idiomatic truthiness checks in interpreted scripts can distinguish failure
// without a recover/catch construct.
type ToolError struct {
	Tool    string          `json:"tool"`
	Payload json.RawMessage `json:"error"`
}

func (e *ToolError) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("tool %q failed", e.Tool)
	}
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Payload)
}

// IsFalsy reports true unconditionally — a *ToolError is never truthy,
// regardless of its payload contents.
func (e *ToolError) IsFalsy() bool { return true }

// NewToolError wraps a tool name and a decoded error payload into a
// *ToolError ready to be returned from Dispatcher.Invoke.
func NewToolError(tool string, payload json.RawMessage) *ToolError {
	return &ToolError{Tool: tool, Payload: payload}
}
