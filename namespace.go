package replcore

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Namespace is the script's global variable table: a single-owner map the
// interpreter reads and writes as statements execute. Snapshot/Restore
// implement §4.6's persistence and sub-agent-forking mechanism.
type Namespace struct {
	mu   sync.RWMutex
	vars map[string]any
	// skip holds names Snapshot never walks: built-ins, injected helpers,
	// the tool namespace object, registered tool names, and introspection/
	// search wrappers.
	skip map[string]bool
}

// NewNamespace returns an empty namespace. skipNames seeds the fixed skip
// set; callers add registered tool names and injected globals on top.
func NewNamespace(skipNames ...string) *Namespace {
	ns := &Namespace{vars: map[string]any{}, skip: map[string]bool{}}
	for _, n := range skipNames {
		ns.skip[n] = true
	}
	return ns
}

// baseSkipSet is the fixed portion of §4.6's skip set: built-ins and
// introspection/search wrappers every session carries regardless of its
// tool list.
var baseSkipSet = []string{
	"T", "done", "say", "ask", "gather",
	"list_tools", "find_tools", "find_history", "find_mem",
	"enter_plan_mode", "exit_plan_mode",
}

// NewSessionNamespace returns a namespace pre-seeded with the fixed
// base skip set plus the given tool and injected-global names.
func NewSessionNamespace(toolNames, injectedNames []string) *Namespace {
	ns := NewNamespace(baseSkipSet...)
	for _, n := range toolNames {
		ns.skip[n] = true
	}
	for _, n := range injectedNames {
		ns.skip[n] = true
	}
	return ns
}

// Skip marks name as excluded from Snapshot.
func (ns *Namespace) Skip(name string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.skip[name] = true
}

// Set binds name to value in the namespace.
func (ns *Namespace) Set(name string, value any) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.vars[name] = value
}

// Get returns name's bound value, or (nil, false) if unbound.
func (ns *Namespace) Get(name string) (any, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	v, ok := ns.vars[name]
	return v, ok
}

// Delete unbinds name.
func (ns *Namespace) Delete(name string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	delete(ns.vars, name)
}

// Clear empties every binding — used by Session.Reset before tools are
// re-registered.
func (ns *Namespace) Clear() {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.vars = map[string]any{}
}

// snapshotCandidates returns every (name, value) pair eligible for
// serialisation: name does not begin with "_" and is not in the skip set.
func (ns *Namespace) snapshotCandidates() map[string]any {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	out := map[string]any{}
	for name, v := range ns.vars {
		if strings.HasPrefix(name, "_") || ns.skip[name] {
			continue
		}
		out[name] = v
	}
	return out
}

// Snapshot walks the namespace and trial-serialises every candidate
// binding; entries that fail to serialise are silently dropped (gob has
// no portable way to serialise arbitrary closures or live handles, and
// the original runtime accepts that loss rather than failing the whole
// snapshot). The result is hex-encoded, ready to embed in a
// snapshot_result message.
func (ns *Namespace) Snapshot() (string, error) {
	candidates := ns.snapshotCandidates()

	kept := map[string][]byte{}
	for name, v := range candidates {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
			continue
		}
		kept[name] = buf.Bytes()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(kept); err != nil {
		return "", fmt.Errorf("replcore: encoding snapshot: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// Restore decodes a hex-encoded blob produced by Snapshot and unions it
// into the live namespace, overwriting any existing bindings with the
// same name.
func (ns *Namespace) Restore(blob string) error {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return fmt.Errorf("replcore: decoding snapshot blob: %w", err)
	}

	var kept map[string][]byte
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&kept); err != nil {
		return fmt.Errorf("replcore: decoding snapshot: %w", err)
	}

	decoded := map[string]any{}
	for name, enc := range kept {
		var v any
		if err := gob.NewDecoder(bytes.NewReader(enc)).Decode(&v); err != nil {
			continue
		}
		decoded[name] = v
	}

	ns.mu.Lock()
	for name, v := range decoded {
		ns.vars[name] = v
	}
	ns.mu.Unlock()
	return nil
}
