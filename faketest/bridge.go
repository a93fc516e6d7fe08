// Package faketest provides deterministic test doubles for replcore's
// host-facing interfaces, so package tests can exercise dispatch and
// session wiring without a real host process.
package faketest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Bridge is a programmable replcore.Bridge: each InvokeTool/AskUser call
// consults a handler keyed by tool name (or, for AskUser, a single
// fixed answer), recording every call it sees for later assertions.
type Bridge struct {
	mu sync.Mutex

	// ToolHandlers maps a tool name to a function producing its raw
	// bridge envelope JSON. Missing entries fail the call.
	ToolHandlers map[string]func(args json.RawMessage) ([]byte, error)

	// AskAnswer is returned by AskUser; AskErr, if set, is returned
	// instead (e.g. ErrHeadlessAsk).
	AskAnswer string
	AskErr    error

	Sent     [][]byte
	Invoked  []InvokedCall
}

// InvokedCall records one InvokeTool call for assertions.
type InvokedCall struct {
	CallID string
	Name   string
	Args   json.RawMessage
}

// NewBridge returns an empty, ready-to-configure fake bridge.
func NewBridge() *Bridge {
	return &Bridge{ToolHandlers: map[string]func(json.RawMessage) ([]byte, error){}}
}

// Handle registers a handler that returns a successful envelope wrapping
// result (marshalled to JSON).
func (b *Bridge) Handle(name string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		panic(err)
	}
	b.ToolHandlers[name] = func(json.RawMessage) ([]byte, error) {
		return json.Marshal(map[string]any{"success": true, "result": json.RawMessage(raw)})
	}
}

// HandleFailure registers a handler that returns a failure envelope
// carrying errPayload as the result.
func (b *Bridge) HandleFailure(name string, errPayload any) {
	raw, err := json.Marshal(errPayload)
	if err != nil {
		panic(err)
	}
	b.ToolHandlers[name] = func(json.RawMessage) ([]byte, error) {
		return json.Marshal(map[string]any{"success": false, "result": json.RawMessage(raw)})
	}
}

func (b *Bridge) SendMessage(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sent = append(b.Sent, payload)
	return nil
}

func (b *Bridge) InvokeTool(ctx context.Context, callID, name string, argsJSON []byte) ([]byte, error) {
	b.mu.Lock()
	b.Invoked = append(b.Invoked, InvokedCall{CallID: callID, Name: name, Args: argsJSON})
	handler := b.ToolHandlers[name]
	b.mu.Unlock()

	if handler == nil {
		return nil, fmt.Errorf("faketest: no handler registered for tool %q", name)
	}
	return handler(argsJSON)
}

func (b *Bridge) AskUser(ctx context.Context, payload []byte) (string, error) {
	if b.AskErr != nil {
		return "", b.AskErr
	}
	return b.AskAnswer, nil
}
