package replcore

import (
	"context"
	"fmt"
)

// langType lists the fixed type names a Param.Type may carry (§4.3). Proxy
// does not check arguments or Param.Type against it.
var langType = map[string]bool{
	"str": true, "int": true, "float": true, "bool": true,
	"list": true, "dict": true, "any": true,
}

// Proxy is a synthesised callable bound to one non-hidden ToolDef. It
// accepts positional and keyword arguments the way the original scripts
// call tools: positional args map by declared parameter order, and a lone
// positional argument that is itself a map merges into the arg-map instead
// of filling one slot (dict-style call).
type Proxy struct {
	Def ToolDef
	d   Dispatcher
}

// NewProxy returns a Proxy dispatching Def's calls through d.
func NewProxy(def ToolDef, d Dispatcher) *Proxy {
	return &Proxy{Def: def, d: d}
}

// Call invokes the tool, merging positional and keyword arguments into one
// arg-map per §4.3's binding rules.
func (p *Proxy) Call(ctx context.Context, positional []any, kwargs map[string]any) (any, error) {
	args, err := p.bind(positional, kwargs)
	if err != nil {
		return nil, err
	}
	return p.d.Invoke(ctx, p.Def.Name, args)
}

func (p *Proxy) bind(positional []any, kwargs map[string]any) (map[string]any, error) {
	args := map[string]any{}
	for k, v := range kwargs {
		args[k] = v
	}

	if len(positional) == 1 {
		if m, ok := positional[0].(map[string]any); ok {
			for k, v := range m {
				args[k] = v
			}
			return args, nil
		}
	}

	if len(positional) > len(p.Def.Params) {
		return nil, fmt.Errorf("replcore: tool %q takes %d positional args, got %d",
			p.Def.Name, len(p.Def.Params), len(positional))
	}
	for i, v := range positional {
		args[p.Def.Params[i].Name] = v
	}
	return args, nil
}

// ClaimTaskProxy is claim_task's special wrapper: it auto-fills owner from
// the session agent id, and omission of id means "claim the next
// available" (§4.3).
type ClaimTaskProxy struct {
	*Proxy
	AgentID string
}

func (p *ClaimTaskProxy) Call(ctx context.Context, id string) (any, error) {
	args := map[string]any{"owner": p.AgentID}
	if id != "" {
		args["id"] = id
	}
	return p.d.Invoke(ctx, "claim_task", args)
}

// AgentCallProxy is agent_call's special wrapper: it serialises an
// optional schema for the host and stashes it on the returned AgentHandle,
// and inherits parent memory/history into the child session (§4.3).
type AgentCallProxy struct {
	*Proxy
}

// AgentCallOptions carries agent_call's keyword arguments.
type AgentCallOptions struct {
	Task         string
	Schema       any    // a schema-describing value, a JSON schema string, or a map
	ParentMem    string // caller's serialised Mem, when non-empty
	ParentHistory string // caller's serialised TurnHistory, when non-empty
	Extra        map[string]any
}

func (p *AgentCallProxy) Call(ctx context.Context, opts AgentCallOptions) (any, error) {
	args := map[string]any{"task": opts.Task}
	for k, v := range opts.Extra {
		args[k] = v
	}
	if opts.Schema != nil {
		args["schema"] = SchemaFor(opts.Schema)
	}
	if opts.ParentMem != "" {
		args["_parent_mem"] = opts.ParentMem
	}
	if opts.ParentHistory != "" {
		args["_parent_history"] = opts.ParentHistory
	}

	d := p.d
	if td, ok := d.(*ToolDispatcher); ok && opts.Schema != nil {
		d = td.WithSchema(opts.Schema)
	}
	return d.Invoke(ctx, "agent_call", args)
}

// SchemaDescriber is implemented by model types that can describe their
// own JSON schema, mirroring a model_json_schema() method.
type SchemaDescriber interface {
	JSONSchema() map[string]any
}

// SchemaFor normalises an agent_call schema argument — a SchemaDescriber,
// a raw JSON schema string, or a plain map — into a value safe to marshal
// into the call's args.
func SchemaFor(schema any) any {
	switch v := schema.(type) {
	case SchemaDescriber:
		return v.JSONSchema()
	default:
		return v
	}
}
