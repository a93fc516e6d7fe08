package replcore

import (
	"context"
	"encoding/json"
	"fmt"
)

// bridgeEnvelope is the {success, result} frame a Bridge.InvokeTool call
// returns (§6). result is itself a JSON-encoded payload on success, or a
// JSON-encoded error payload on failure.
type bridgeEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// ToolDispatcher implements Dispatcher by marshalling arguments, invoking a
// Bridge through a worker pool, decoding the envelope, and hydrating
// typed handles (§4.2).
type ToolDispatcher struct {
	bridge Bridge
	pool   *workerPool

	// schemaFor supplies the schema to attach when a call's result
	// hydrates to an *AgentHandle. agent_call's proxy wrapper sets this
	// per-call via WithSchema before invoking.
	schemaFor any
}

// NewToolDispatcher returns a dispatcher backed by bridge, with a
// worker pool sized per maxParallelDispatch.
func NewToolDispatcher(bridge Bridge) *ToolDispatcher {
	return &ToolDispatcher{bridge: bridge, pool: newWorkerPool(maxParallelDispatch)}
}

// WithSchema returns a shallow copy of the dispatcher that attaches schema
// to the AgentHandle produced by its next Invoke call. Used by the
// agent_call proxy wrapper (§4.3).
func (d *ToolDispatcher) WithSchema(schema any) *ToolDispatcher {
	cp := *d
	cp.schemaFor = schema
	return &cp
}

// Invoke implements the Dispatcher contract (§4.2):
//  1. generate a call id
//  2. marshal params to JSON
//  3. offload the blocking bridge call onto the worker pool
//  4. parse the returned envelope
//  5. on success, decode and hydrate the result
//  6. on failure, fail with a *ToolError
func (d *ToolDispatcher) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	callID := NewID()

	argsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("replcore: marshalling args for %q: %w", name, err)
	}

	raw, err := d.pool.run(ctx, func() ([]byte, error) {
		return d.bridge.InvokeTool(ctx, callID, name, argsJSON)
	})
	if err != nil {
		return nil, err
	}

	var env bridgeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("replcore: decoding bridge envelope for %q: %w", name, err)
	}

	if !env.Success {
		return nil, NewToolError(name, env.Result)
	}

	return HydrateResult(env.Result, d, d.schemaFor)
}

// Ask performs a blocking interactive prompt through the bridge (§4.4).
// Ask itself does not check for headless sessions; the interp package's
// ask() builtin fails with ErrHeadlessAsk in a headless session.
func (d *ToolDispatcher) Ask(ctx context.Context, payload []byte) (string, error) {
	return d.pool.runString(ctx, func() (string, error) {
		return d.bridge.AskUser(ctx, payload)
	})
}

// SendMessage is a thin passthrough to the bridge for fire-and-forget
// progress/terminal frames (§4.4).
func (d *ToolDispatcher) SendMessage(ctx context.Context, payload []byte) error {
	return d.bridge.SendMessage(ctx, payload)
}
