package replcore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/turnscript/replcore/search"
)

// MemEntry is one key/value memory record (§3). Values are always
// stringified on store; a nil value passed to Set aliases description.
type MemEntry struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Value       string `json:"value"`
	Turn        int    `json:"turn"`
}

// Mem is a mapping from key to MemEntry: unique keys, insertion order
// preserved, replace-on-rewrite. A key's Turn never decreases between
// writes (§3's monotonic turn counter).
type Mem struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]MemEntry
}

// NewMem returns an empty memory.
func NewMem() *Mem {
	return &Mem{entries: map[string]MemEntry{}}
}

// Set stores key with value (stringified by the caller) and description at
// currentTurn. If value is empty, description is stored as the value too
// (nil-value aliasing). currentTurn is clamped to be >= the key's previous
// turn, preserving monotonicity.
func (m *Mem) Set(key, description, value string, currentTurn int) {
	if value == "" {
		value = description
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[key]; ok {
		if currentTurn < prev.Turn {
			currentTurn = prev.Turn
		}
	} else {
		m.order = append(m.order, key)
	}
	m.entries[key] = MemEntry{Key: key, Description: description, Value: value, Turn: currentTurn}
}

// Get returns key's value, or ("", false) if unset.
func (m *Mem) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e.Value, ok
}

// Entry returns key's full MemEntry, or (zero, false) if unset.
func (m *Mem) Entry(key string) (MemEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// Delete removes key, reporting whether it was present.
func (m *Mem) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns every entry in insertion order.
func (m *Mem) All() []MemEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MemEntry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.entries[k])
	}
	return out
}

// Len reports the number of stored keys.
func (m *Mem) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Since returns every entry whose Turn >= turn, in insertion order.
func (m *Mem) Since(turn int) []MemEntry {
	var out []MemEntry
	for _, e := range m.All() {
		if e.Turn >= turn {
			out = append(out, e)
		}
	}
	return out
}

// Recent returns the n most recently written entries (by Turn, ties broken
// by insertion order), oldest of the selected set first.
func (m *Mem) Recent(n int) []MemEntry {
	all := m.All()
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].Turn < all[j-1].Turn; j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Find ranks every entry against query per §4.5's Memory corpus weights. A
// keys allow-list is available through FindRanked.
func (m *Mem) Find(query string, limit int) []MemEntry {
	return m.FindRanked(query, nil, limit)
}

// FindRanked is Find's full form: allowKeys, when non-nil, restricts the
// search to those keys.
func (m *Mem) FindRanked(query string, allowKeys []string, limit int) []MemEntry {
	all := m.All()

	var allow map[string]bool
	if allowKeys != nil {
		allow = map[string]bool{}
		for _, k := range allowKeys {
			allow[k] = true
		}
	}

	docs := make([]search.Doc, 0, len(all))
	byIndex := map[int]MemEntry{}
	for i, e := range all {
		if allow != nil && !allow[e.Key] {
			continue
		}
		byIndex[i] = e
		docs = append(docs, search.Doc{
			Index: i,
			Fields: map[string]string{
				"key":         e.Key,
				"description": e.Description,
				"value":       e.Value,
			},
		})
	}

	results := search.Search(docs, query, search.Options{
		Mode:    search.Hybrid,
		Weights: search.MemoryWeights,
		Limit:   limit,
	})

	out := make([]MemEntry, 0, len(results))
	for _, r := range results {
		out = append(out, byIndex[r.Index])
	}
	return out
}

// memSnapshot is the JSON shape Serialize/Load round-trip — an ordered
// list, so insertion order survives a save/load cycle.
type memSnapshot struct {
	Entries []MemEntry `json:"entries"`
}

// Serialize produces the JSON form passed to a sub-agent's Load (§4.6). It
// is not part of the hex-encoded namespace snapshot.
func (m *Mem) Serialize() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := memSnapshot{Entries: make([]MemEntry, 0, len(m.order))}
	for _, k := range m.order {
		snap.Entries = append(snap.Entries, m.entries[k])
	}
	return json.Marshal(snap)
}

// Load replaces the memory with data produced by Serialize.
func (m *Mem) Load(data []byte) error {
	var snap memSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("replcore: loading mem snapshot: %w", err)
	}
	order := make([]string, 0, len(snap.Entries))
	entries := make(map[string]MemEntry, len(snap.Entries))
	for _, e := range snap.Entries {
		if _, dup := entries[e.Key]; !dup {
			order = append(order, e.Key)
		}
		entries[e.Key] = e
	}
	m.mu.Lock()
	m.order = order
	m.entries = entries
	m.mu.Unlock()
	return nil
}
