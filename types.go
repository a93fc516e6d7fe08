package replcore

import "encoding/json"

// ToolKind is a closed enum of recognised tool-call kinds, used to derive a
// turn's files_read/files_written sets. Unrecognised tool names dispatch as
// ToolKindOther.
type ToolKind string

const (
	ToolKindReadFile    ToolKind = "read_file"
	ToolKindGlob        ToolKind = "glob"
	ToolKindGrep        ToolKind = "grep"
	ToolKindWriteFile   ToolKind = "write_file"
	ToolKindEditFile    ToolKind = "edit_file"
	ToolKindFindReplace ToolKind = "find_replace"
	ToolKindDiffFile    ToolKind = "diff_file"
	ToolKindClaimTask   ToolKind = "claim_task"
	ToolKindAgentCall   ToolKind = "agent_call"
	ToolKindOther       ToolKind = "other"
)

// readKinds contribute their "path" arg to a turn's files_read set.
var readKinds = map[ToolKind]bool{
	ToolKindReadFile: true,
	ToolKindGlob:     true,
	ToolKindGrep:     true,
}

// writeKinds contribute their "path" arg to a turn's files_written set.
var writeKinds = map[ToolKind]bool{
	ToolKindWriteFile:   true,
	ToolKindEditFile:    true,
	ToolKindFindReplace: true,
	ToolKindDiffFile:    true,
}

// ParseToolKind maps a tool name to its ToolKind, defaulting to ToolKindOther.
func ParseToolKind(name string) ToolKind {
	switch ToolKind(name) {
	case ToolKindReadFile, ToolKindGlob, ToolKindGrep,
		ToolKindWriteFile, ToolKindEditFile, ToolKindFindReplace, ToolKindDiffFile,
		ToolKindClaimTask, ToolKindAgentCall:
		return ToolKind(name)
	default:
		return ToolKindOther
	}
}

// ToolCall is one bridge round-trip recorded against a turn.
type ToolCall struct {
	Tool       ToolKind        `json:"tool"`
	ToolName   string          `json:"tool_name"`
	Args       map[string]any  `json:"args"`
	Result     json.RawMessage `json:"result,omitempty"`
	Success    bool            `json:"success"`
	DurationMS int64           `json:"duration_ms"`
}

// Turn is the immutable record of one exec cycle: script in, output and
// terminal frame out. Created by the host via NewTurn once a turn completes.
type Turn struct {
	Index         int        `json:"index"`
	UserMessage   string     `json:"user_message"`
	Prose         string     `json:"prose"`
	Code          string     `json:"code"`
	Output        string     `json:"output"`
	Error         *string    `json:"error"`
	ToolCalls     []ToolCall `json:"tool_calls"`
	FilesRead     []string   `json:"files_read"`
	FilesWritten  []string   `json:"files_written"`
}

// NewTurn constructs a Turn, deriving FilesRead/FilesWritten from ToolCalls
// per the read/write-kind tables in §3.
func NewTurn(index int, userMessage, prose, code, output string, execErr *string, calls []ToolCall) Turn {
	readSet := map[string]bool{}
	writeSet := map[string]bool{}
	for _, tc := range calls {
		path, _ := tc.Args["path"].(string)
		if path == "" {
			continue
		}
		if readKinds[tc.Tool] {
			readSet[path] = true
		}
		if writeKinds[tc.Tool] {
			writeSet[path] = true
		}
	}
	return Turn{
		Index:        index,
		UserMessage:  userMessage,
		Prose:        prose,
		Code:         code,
		Output:       output,
		Error:        execErr,
		ToolCalls:    calls,
		FilesRead:    sortedKeys(readSet),
		FilesWritten: sortedKeys(writeSet),
	}
}

// Summary returns a one-line description of the turn: the first line of
// prose if that line is non-empty, otherwise the name of its first tool
// call, otherwise the first line of the user message. Grounded
// on the original Python REPL's turn-summary helper (SPEC_FULL.md).
func (t Turn) Summary() string {
	if s := firstLine(t.Prose); s != "" {
		return s
	}
	if len(t.ToolCalls) > 0 {
		return t.ToolCalls[0].ToolName
	}
	return firstLine(t.UserMessage)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	insertionSort(out)
	return out
}

// insertionSort keeps files_read/files_written deterministic without
// pulling in sort for a handful of entries per turn.
func insertionSort(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Param describes one declared tool parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // str, int, float, bool, list, dict, any
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// ToolDef is the process-wide, frozen-at-init description of one tool the
// host exposes. Supplied as a JSON list at session init/reset.
type ToolDef struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Params          []Param         `json:"params"`
	Returns         string          `json:"returns"`
	Examples        []string        `json:"examples"`
	Hidden          bool            `json:"hidden"`
	InjectIntoPrompt bool           `json:"inject_into_prompt"`
}
