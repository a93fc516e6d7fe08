package replcore

import "encoding/json"

// InitMessage is the host's first message to a runtime process (§6).
type InitMessage struct {
	Type     string    `json:"type"` // "init"
	Tools    []ToolDef `json:"tools"`
	AgentID  string    `json:"agent_id"`
	Headless bool      `json:"headless"`
}

// Command is one host→runtime request following init. Type selects which
// of Code/Data is populated.
type Command struct {
	Type string `json:"type"` // exec, snapshot, restore, reset, shutdown
	ID   string  `json:"id,omitempty"`
	Code string  `json:"code,omitempty"`
	Data string  `json:"data,omitempty"` // hex-encoded snapshot blob, for restore
}

// MessageFrame is a runtime→host fire-and-forget progress/terminal frame
// (§4.4, §6). Kind is one of "final", "say", "progress".
type MessageFrame struct {
	Type string `json:"type"` // "message"
	Text string `json:"text"`
	Kind string `json:"kind"`
}

const (
	FrameFinal    = "final"
	FrameSay      = "say"
	FrameProgress = "progress"
)

// ReadyMessage acknowledges a successful init.
type ReadyMessage struct {
	Type string `json:"type"` // "ready"
}

// ExecResult answers an exec Command.
type ExecResult struct {
	Type     string  `json:"type"` // "exec_result"
	ID       string  `json:"id"`
	Output   string  `json:"output"`
	Response string  `json:"response"`
	Error    *string `json:"error"`
}

// SnapshotResult answers a snapshot Command.
type SnapshotResult struct {
	Type string `json:"type"` // "snapshot_result"
	ID   string `json:"id"`
	Data string `json:"data"` // hex-encoded
}

// ResetResult answers a reset Command.
type ResetResult struct {
	Type string `json:"type"` // "reset_result"
	ID   string `json:"id"`
}

// MarshalFrame is a small helper for call sites that need the raw JSON
// bytes of a MessageFrame (e.g. to pass to Bridge.SendMessage).
func MarshalFrame(kind, text string) []byte {
	raw, _ := json.Marshal(MessageFrame{Type: "message", Kind: kind, Text: text})
	return raw
}
