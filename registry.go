package replcore

import (
	"context"
	"fmt"
)

// ToolSearcher ranks tool definitions against a free-text query. No type in
// this module implements it; a caller supplies one through SetSearcher, and
// without one FindTools returns nil.
type ToolSearcher interface {
	SearchTools(query string, limit int) []ToolDef
}

// Registry receives a session's frozen tool definitions and agent id at
// init (or reset) and synthesises a Proxy per non-hidden definition
// (§4.3).
type Registry struct {
	AgentID string

	defs    []ToolDef
	proxies map[string]*Proxy
	order   []string // preserves definition order for ListTools

	searcher    ToolSearcher
	history     *TurnHistory
	mem         *Mem
	planMode    *PlanMode
	currentTurn func() int
}

// NewRegistry synthesises proxies for every non-hidden definition in defs,
// dispatching through d under the session's agentID.
func NewRegistry(defs []ToolDef, agentID string, d Dispatcher, history *TurnHistory, mem *Mem) *Registry {
	r := &Registry{
		AgentID: agentID,
		defs:    defs,
		proxies: map[string]*Proxy{},
		history: history,
		mem:     mem,
	}
	for _, def := range defs {
		if def.Hidden {
			continue
		}
		r.order = append(r.order, def.Name)
		r.proxies[def.Name] = NewProxy(def, d)
	}
	return r
}

// SetSearcher wires the ToolSearcher that FindTools delegates to.
func (r *Registry) SetSearcher(s ToolSearcher) { r.searcher = s }

// SetPlanMode wires the enter_plan_mode/exit_plan_mode handshake helper.
func (r *Registry) SetPlanMode(pm *PlanMode) { r.planMode = pm }

// SetCurrentTurnFunc wires the callback Remember uses to stamp writes with
// the session's in-flight turn index (§3's monotonic turn counter).
func (r *Registry) SetCurrentTurnFunc(fn func() int) { r.currentTurn = fn }

// Remember writes key into the session's memory, stamped with the current
// turn — the T.remember() builtin (§3's mem.set write path).
func (r *Registry) Remember(key, description, value string) {
	if r.mem == nil {
		return
	}
	turn := 0
	if r.currentTurn != nil {
		turn = r.currentTurn()
	}
	r.mem.Set(key, description, value, turn)
}

// Forget removes key from the session's memory, reporting whether it was
// present — the T.forget() builtin.
func (r *Registry) Forget(key string) bool {
	if r.mem == nil {
		return false
	}
	return r.mem.Delete(key)
}

// PlanMode returns the session's plan-mode helper, or false if none was
// wired (e.g. a test session with no dispatcher to hand it).
func (r *Registry) PlanMode() (*PlanMode, bool) {
	if r.planMode == nil {
		return nil, false
	}
	return r.planMode, true
}

// Proxy returns the synthesised proxy for name, or false if name is hidden
// or unknown.
func (r *Registry) Proxy(name string) (*Proxy, bool) {
	p, ok := r.proxies[name]
	return p, ok
}

// ClaimTask returns the claim_task special wrapper (§4.3).
func (r *Registry) ClaimTask() (*ClaimTaskProxy, bool) {
	p, ok := r.proxies["claim_task"]
	if !ok {
		return nil, false
	}
	return &ClaimTaskProxy{Proxy: p, AgentID: r.AgentID}, true
}

// AgentCall returns the agent_call special wrapper (§4.3).
func (r *Registry) AgentCall() (*AgentCallProxy, bool) {
	p, ok := r.proxies["agent_call"]
	if !ok {
		return nil, false
	}
	return &AgentCallProxy{Proxy: p}, true
}

// InheritancePayload serialises the session's own history/mem for a child
// session spawned via agent_call, returning empty strings when there is
// nothing to inherit (§4.3's automatic _parent_mem/_parent_history).
func (r *Registry) InheritancePayload() (parentHistory, parentMem string, err error) {
	if r.history != nil && r.history.Len() > 0 {
		raw, e := r.history.Serialize()
		if e != nil {
			return "", "", fmt.Errorf("replcore: serialising history for inheritance: %w", e)
		}
		parentHistory = string(raw)
	}
	if r.mem != nil && r.mem.Len() > 0 {
		raw, e := r.mem.Serialize()
		if e != nil {
			return "", "", fmt.Errorf("replcore: serialising mem for inheritance: %w", e)
		}
		parentMem = string(raw)
	}
	return parentHistory, parentMem, nil
}

// Call dispatches name with positional/keyword args through its proxy.
func (r *Registry) Call(ctx context.Context, name string, positional []any, kwargs map[string]any) (any, error) {
	p, ok := r.Proxy(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return p.Call(ctx, positional, kwargs)
}

// InjectedGlobals returns the subset of proxies with inject_into_prompt
// set, bound as bare globals in the script namespace alongside T (§4.3).
func (r *Registry) InjectedGlobals() map[string]*Proxy {
	out := map[string]*Proxy{}
	for _, name := range r.order {
		if def := r.defByName(name); def != nil && def.InjectIntoPrompt {
			out[name] = r.proxies[name]
		}
	}
	return out
}

func (r *Registry) defByName(name string) *ToolDef {
	for i := range r.defs {
		if r.defs[i].Name == name {
			return &r.defs[i]
		}
	}
	return nil
}

// ListTools returns every non-hidden definition, in declaration order —
// the T.list_tools() builtin.
func (r *Registry) ListTools() []ToolDef {
	out := make([]ToolDef, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.defByName(name))
	}
	return out
}

// FindTools ranks tool definitions against query through the wired
// ToolSearcher — the T.find_tools() builtin. It returns nil when no
// searcher is wired.
func (r *Registry) FindTools(query string, limit int) []ToolDef {
	if r.searcher == nil {
		return nil
	}
	return r.searcher.SearchTools(query, limit)
}

// FindHistory ranks the session's TurnHistory against query — the
// T.find_history() builtin.
func (r *Registry) FindHistory(query string, limit, sinceTurn int) []Turn {
	if r.history == nil {
		return nil
	}
	return r.history.Find(query, limit, sinceTurn)
}

// FindMem ranks the session's Mem against query — the T.find_mem()
// builtin.
func (r *Registry) FindMem(query string, limit int) []MemEntry {
	if r.mem == nil {
		return nil
	}
	return r.mem.Find(query, limit)
}

// PlanMode synthesises the enter_plan_mode/exit_plan_mode two-stage
// handshake wrappers (§4.3). It is not a tool proxy — plan mode has no
// corresponding ToolDef — so it dispatches directly through d.
type PlanMode struct {
	d        Dispatcher
	send     func(ctx context.Context, payload []byte) error
	headless bool
}

// NewPlanMode wires a PlanMode helper; send is used to emit the
// "Plan approved — executing." terminal message on approval.
func NewPlanMode(d Dispatcher, send func(ctx context.Context, payload []byte) error, headless bool) *PlanMode {
	return &PlanMode{d: d, send: send, headless: headless}
}

// EnterPlanMode returns the path of a plan file the host created for the
// session to write its plan into.
func (pm *PlanMode) EnterPlanMode(ctx context.Context) (string, error) {
	v, err := pm.d.Invoke(ctx, "enter_plan_mode", nil)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// PlanDecision is the user's choice when an interactive session is
// presented a completed plan.
type PlanDecision string

const (
	PlanExecute PlanDecision = "Execute plan"
	PlanEdit    PlanDecision = "Edit plan"
	PlanReject  PlanDecision = "Reject"
)

// ExitPlanMode presents the plan to the user (interactive mode) and, on
// PlanExecute, emits the "Plan approved — executing." terminal message.
// In headless mode it proceeds without asking and returns PlanExecute.
func (pm *PlanMode) ExitPlanMode(ctx context.Context, ask func(ctx context.Context) (PlanDecision, error)) (PlanDecision, error) {
	if pm.headless {
		if _, err := pm.d.Invoke(ctx, "exit_plan_mode", map[string]any{"decision": string(PlanExecute)}); err != nil {
			return "", err
		}
		return PlanExecute, nil
	}

	decision, err := ask(ctx)
	if err != nil {
		return "", err
	}
	if _, err := pm.d.Invoke(ctx, "exit_plan_mode", map[string]any{"decision": string(decision)}); err != nil {
		return "", err
	}
	if decision == PlanExecute && pm.send != nil {
		pm.send(ctx, MarshalFrame(FrameFinal, "Plan approved — executing."))
	}
	return decision, nil
}
