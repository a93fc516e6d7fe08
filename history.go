package replcore

import (
	"encoding/json"
	"sync"

	"github.com/turnscript/replcore/search"
)

// maxHistoryTurns is the hard cap on retained turns (§6).
const maxHistoryTurns = 2000

// TurnHistory is the append-only (up to its cap) record of completed
// turns. When the cap is exceeded the oldest turn is evicted, but every
// retained turn keeps its original Index — a Find with sinceTurn therefore
// refers to original indices, not array positions (Open Question a,
// confirmed).
type TurnHistory struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTurnHistory returns an empty history.
func NewTurnHistory() *TurnHistory {
	return &TurnHistory{}
}

// Append records turn, evicting the oldest entry once the cap is reached.
func (h *TurnHistory) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	if len(h.turns) > maxHistoryTurns {
		h.turns = h.turns[len(h.turns)-maxHistoryTurns:]
	}
}

// Len reports the number of retained turns.
func (h *TurnHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// All returns a snapshot copy of every retained turn, oldest first.
func (h *TurnHistory) All() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// HistoryResult is one ranked history hit: the turn, a trimmed preview of
// its first non-empty hit field, the hit field names, and its score.
type HistoryResult struct {
	Turn      Turn
	Preview   string
	HitFields []string
	Score     float64
}

// HistoryFindOptions configures Find beyond the free-text query.
type HistoryFindOptions struct {
	Mode      search.Mode
	Fields    []string
	SinceTurn int
	ExtraRegex string
}

// Find ranks retained turns against query per §4.5 in hybrid mode over all
// fields, honoring a since_turn cutoff (original Turn.Index >= cutoff). A
// fields restriction is available through FindRanked.
func (h *TurnHistory) Find(query string, limit int, sinceTurn int) []Turn {
	results := h.FindRanked(query, HistoryFindOptions{Mode: search.Hybrid, SinceTurn: sinceTurn}, limit)
	out := make([]Turn, len(results))
	for i, r := range results {
		out[i] = r.Turn
	}
	return out
}

// FindRanked is Find's full-fidelity form, returning previews/hit
// fields/scores alongside each matched Turn.
func (h *TurnHistory) FindRanked(query string, opts HistoryFindOptions, limit int) []HistoryResult {
	h.mu.RLock()
	turns := make([]Turn, len(h.turns))
	copy(turns, h.turns)
	h.mu.RUnlock()

	docs := make([]search.Doc, 0, len(turns))
	byIndex := map[int]Turn{}
	for _, t := range turns {
		if t.Index < opts.SinceTurn {
			continue
		}
		byIndex[t.Index] = t
		docs = append(docs, search.Doc{
			Index: t.Index,
			Fields: map[string]string{
				"user_message": t.UserMessage,
				"code":         t.Code,
				"prose":        t.Prose,
				"output":       t.Output,
				"tool_calls":   toolCallsText(t.ToolCalls),
			},
		})
	}

	results := search.Search(docs, query, search.Options{
		Mode:       opts.Mode,
		Weights:    search.HistoryWeights,
		Fields:     opts.Fields,
		ExtraRegex: opts.ExtraRegex,
		Limit:      limit,
	})

	out := make([]HistoryResult, 0, len(results))
	for _, r := range results {
		turn := byIndex[r.Index]
		out = append(out, HistoryResult{
			Turn:      turn,
			Preview:   search.Preview(firstNonEmptyField(turn, r.HitFields)),
			HitFields: r.HitFields,
			Score:     r.Score,
		})
	}
	return out
}

func firstNonEmptyField(t Turn, hitFields []string) string {
	fields := map[string]string{
		"user_message": t.UserMessage,
		"code":         t.Code,
		"prose":        t.Prose,
		"output":       t.Output,
		"tool_calls":   toolCallsText(t.ToolCalls),
	}
	for _, f := range hitFields {
		if v := fields[f]; v != "" {
			return v
		}
	}
	if t.Prose != "" {
		return t.Prose
	}
	return t.UserMessage
}

func toolCallsText(calls []ToolCall) string {
	var sb []byte
	for _, c := range calls {
		sb = append(sb, c.ToolName...)
		sb = append(sb, ' ')
	}
	return string(sb)
}

// Serialize produces the JSON form passed to a sub-agent's Load (§4.6). It
// is not part of the hex-encoded namespace snapshot.
func (h *TurnHistory) Serialize() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return json.Marshal(h.turns)
}

// Load replaces the history with data produced by Serialize, truncating
// to the 2000-turn cap and rehydrating entries in order.
func (h *TurnHistory) Load(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	h.mu.Lock()
	h.turns = turns
	h.mu.Unlock()
	return nil
}
