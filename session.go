package replcore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// recordingDispatcher wraps a Dispatcher, appending one ToolCall per
// Invoke so Session can attach the turn's tool-call list to its Turn
// record (§3) without the interpreter needing to know about turns at all.
type recordingDispatcher struct {
	inner Dispatcher
	mu    sync.Mutex
	calls []ToolCall
}

func (r *recordingDispatcher) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	start := time.Now()
	v, err := r.inner.Invoke(ctx, name, args)
	elapsed := time.Since(start).Milliseconds()

	call := ToolCall{
		Tool:       ParseToolKind(name),
		ToolName:   name,
		Args:       args,
		Success:    err == nil,
		DurationMS: elapsed,
	}
	if err == nil {
		if raw, mErr := json.Marshal(v); mErr == nil {
			call.Result = raw
		}
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return v, err
}

func (r *recordingDispatcher) drain() []ToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

// Session wires a Bridge, tool registry, history, memory, and namespace
// into the host command protocol (§6): exec, snapshot, restore, reset.
// Scripts run through the interp package; Session only owns the state a
// script's run needs to persist across turns.
type Session struct {
	mu sync.Mutex

	agentID  string
	headless bool
	defs     []ToolDef

	bridge     Bridge
	dispatcher *ToolDispatcher
	recorder   *recordingDispatcher

	registry  *Registry
	history   *TurnHistory
	mem       *Mem
	namespace *Namespace

	nextTurnIndex int
	closed        bool
}

// NewSession constructs a Session from an init message's payload.
func NewSession(bridge Bridge, defs []ToolDef, agentID string, headless bool) *Session {
	s := &Session{bridge: bridge, defs: defs, agentID: agentID, headless: headless}
	s.wire()
	return s
}

func (s *Session) wire() {
	s.dispatcher = NewToolDispatcher(s.bridge)
	s.recorder = &recordingDispatcher{inner: s.dispatcher}
	s.history = NewTurnHistory()
	s.mem = NewMem()
	s.registry = NewRegistry(s.defs, s.agentID, s.recorder, s.history, s.mem)
	s.registry.SetPlanMode(NewPlanMode(s.recorder, s.bridge.SendMessage, s.headless))
	s.registry.SetCurrentTurnFunc(s.CurrentTurnIndex)

	toolNames := make([]string, 0, len(s.defs))
	injected := make([]string, 0, len(s.defs))
	for _, d := range s.defs {
		if d.Hidden {
			continue
		}
		toolNames = append(toolNames, d.Name)
		if d.InjectIntoPrompt {
			injected = append(injected, d.Name)
		}
	}
	s.namespace = NewSessionNamespace(toolNames, injected)
}

// AutoDispatchSets computes the auto-await name/attribute sets (§4.1) from
// the session's own tool definitions: bare-name set is every injected,
// non-hidden tool plus ask (when not headless); attribute set is every
// non-hidden tool name plus the fixed handle-method set.
func (s *Session) AutoDispatchSets(fixedHandleMethods map[string]bool) (names, attrs map[string]bool) {
	names = map[string]bool{}
	attrs = map[string]bool{}
	for _, d := range s.defs {
		if d.Hidden {
			continue
		}
		attrs[d.Name] = true
		if d.InjectIntoPrompt {
			names[d.Name] = true
		}
	}
	if !s.headless {
		names["ask"] = true
	}
	for k := range fixedHandleMethods {
		attrs[k] = true
	}
	return names, attrs
}

// Mem returns the session's memory, for builtins (history search, mem
// search) and for inheritance serialisation ahead of an agent_call.
func (s *Session) Mem() *Mem { return s.mem }

// History returns the session's turn history.
func (s *Session) History() *TurnHistory { return s.history }

// Dispatcher returns the session's recording dispatcher, for wiring an
// interp.Evaluator.
func (s *Session) Dispatcher() Dispatcher { return s.recorder }

// Registry returns the session's tool registry.
func (s *Session) Registry() *Registry { return s.registry }

// Namespace returns the session's script namespace.
func (s *Session) Namespace() *Namespace { return s.namespace }

// Close marks the session closed: further Snapshot/Restore calls return
// ErrSessionClosed, and RecordTurn/Reset become no-ops, instead of touching
// namespace or history state. Idempotent — closing an already-closed session is a
// no-op. The host calls this once it has processed a shutdown command,
// guarding against a turn still in flight from racing the stdio loop's
// exit.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RecordTurn appends a completed turn to history, builds it from the
// recorder's accumulated tool calls, and advances the turn counter. The
// caller (the host-facing exec handler, typically backed by interp) is
// responsible for running the script and capturing output/error.
func (s *Session) RecordTurn(userMessage, prose, code, output string, execErr *string) Turn {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Turn{}
	}
	index := s.nextTurnIndex
	s.nextTurnIndex++
	s.mu.Unlock()

	calls := s.recorder.drain()
	turn := NewTurn(index, userMessage, prose, code, output, execErr, calls)
	s.history.Append(turn)
	return turn
}

// CurrentTurnIndex returns the index RecordTurn will assign to the next
// completed turn — Mem.Set's turn stamping argument.
func (s *Session) CurrentTurnIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTurnIndex
}

// Snapshot serialises the namespace into a hex blob for a snapshot_result
// message (§4.6).
func (s *Session) Snapshot() (string, error) {
	if s.Closed() {
		return "", ErrSessionClosed
	}
	return s.namespace.Snapshot()
}

// Restore unions a hex-encoded blob into the live namespace (§4.6).
func (s *Session) Restore(blob string) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return s.namespace.Restore(blob)
}

// Reset clears the namespace and re-registers tools from defs/agentID/
// headless, discarding history and memory — the `reset` command (§4.6).
// A no-op once the session is closed.
func (s *Session) Reset(defs []ToolDef, agentID string, headless bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.defs = defs
	s.agentID = agentID
	s.headless = headless
	s.nextTurnIndex = 0
	s.mu.Unlock()
	s.wire()
}

// InheritFrom serialises history/mem for a child session spawned via
// agent_call, returning the _parent_history/_parent_mem payloads (empty
// strings when there is nothing to inherit, per §4.3).
func (s *Session) InheritFrom() (parentHistory, parentMem string, err error) {
	return s.registry.InheritancePayload()
}

// LoadInherited is the child-session counterpart of InheritFrom: it loads
// a parent's serialised history/mem, truncating history to its cap.
func (s *Session) LoadInherited(parentHistory, parentMem string) error {
	if parentHistory != "" {
		if err := s.history.Load([]byte(parentHistory)); err != nil {
			return err
		}
	}
	if parentMem != "" {
		if err := s.mem.Load([]byte(parentMem)); err != nil {
			return err
		}
	}
	return nil
}
