package replcore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Dispatcher is the interface handles call back through to round-trip a
// follow-up action to the host. Session wires the real dispatch.go
// implementation in; tests substitute a fake.
type Dispatcher interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// discriminator mirrors the {__handle__, __type__} tags a decoded tool
// result may carry (§4.2, §6).
type discriminator struct {
	Handle string          `json:"__handle__"`
	Type   string          `json:"__type__"`
	Items  json.RawMessage `json:"items"`
}

// HydrateResult inspects a decoded tool-result value for a handle or type
// discriminator and, when present, returns the corresponding typed value
// instead of the raw decoded payload. schema is attached to an AgentHandle
// verbatim (consulted only by AgentHandle.Result, per Open Question c).
func HydrateResult(raw json.RawMessage, d Dispatcher, schema any) (any, error) {
	var disc discriminator
	if err := json.Unmarshal(raw, &disc); err != nil || (disc.Handle == "" && disc.Type == "") {
		var plain any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("replcore: decoding tool result: %w", err)
		}
		return plain, nil
	}

	switch disc.Handle {
	case "shell":
		var v struct {
			ID string `json:"id"`
		}
		json.Unmarshal(raw, &v)
		return &ShellHandle{ID: v.ID, d: d}, nil
	case "agent":
		var v struct {
			ID string `json:"id"`
		}
		json.Unmarshal(raw, &v)
		return &AgentHandle{ID: v.ID, Schema: schema, d: d}, nil
	}

	switch disc.Type {
	case "task":
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return &TaskHandle{Task: t, d: d}, nil
	case "task_list":
		var items []Task
		if err := json.Unmarshal(disc.Items, &items); err != nil {
			return nil, err
		}
		out := make([]*TaskHandle, len(items))
		for i, t := range items {
			out[i] = &TaskHandle{Task: t, d: d}
		}
		return out, nil
	case "skill":
		var s Skill
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &SkillHandle{Skill: s, d: d}, nil
	case "skill_summary":
		var s SkillSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "skill_list":
		var items []SkillSummary
		if err := json.Unmarshal(disc.Items, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var plain any
	json.Unmarshal(raw, &plain)
	return plain, nil
}

// ShellHandle is a thin remote reference to a host-side shell process.
// It carries no owned resources — only an id — and every operation
// round-trips through the dispatcher.
type ShellHandle struct {
	ID string
	d  Dispatcher
}

func (h *ShellHandle) Output(ctx context.Context) (string, error) {
	v, err := h.d.Invoke(ctx, "shell_output", map[string]any{"id": h.ID})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Result blocks until the process exits (or timeoutSeconds elapses,
// forwarded to the host) and returns its combined output.
func (h *ShellHandle) Result(ctx context.Context, timeoutSeconds int) (string, error) {
	v, err := h.d.Invoke(ctx, "shell_result", map[string]any{"id": h.ID, "timeout": timeoutSeconds})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (h *ShellHandle) Write(ctx context.Context, data string) error {
	_, err := h.d.Invoke(ctx, "shell_write", map[string]any{"id": h.ID, "data": data})
	return err
}

func (h *ShellHandle) Kill(ctx context.Context) error {
	_, err := h.d.Invoke(ctx, "shell_kill", map[string]any{"id": h.ID})
	return err
}

// AgentHandle is a thin remote reference to a host-spawned sub-agent run.
// Schema, when non-nil, is consulted by Result to validate/parse the
// eventual payload; it is never consulted by Output.
type AgentHandle struct {
	ID     string
	Schema any
	d      Dispatcher
}

func (h *AgentHandle) Output(ctx context.Context) (string, error) {
	v, err := h.d.Invoke(ctx, "agent_output", map[string]any{"id": h.ID})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Result blocks until the sub-agent completes and returns its result,
// decoded against Schema when one was attached at spawn time.
func (h *AgentHandle) Result(ctx context.Context, timeoutSeconds int) (any, error) {
	v, err := h.d.Invoke(ctx, "agent_result", map[string]any{"id": h.ID, "timeout": timeoutSeconds})
	if err != nil {
		return nil, err
	}
	if h.Schema == nil {
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, h.Schema); err != nil {
		return nil, fmt.Errorf("replcore: agent result does not match schema: %w", err)
	}
	return h.Schema, nil
}

func (h *AgentHandle) Cancel(ctx context.Context) error {
	_, err := h.d.Invoke(ctx, "agent_cancel", map[string]any{"id": h.ID})
	return err
}

// Task is the host-side task record, as returned by claim_task/get_task.
type Task struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// TaskHandle wraps a Task snapshot with mutation methods that round-trip
// through the dispatcher; the embedded Task fields reflect the state as of
// the last fetch, not a live view.
type TaskHandle struct {
	Task
	d Dispatcher
}

func (h *TaskHandle) Claim(ctx context.Context, owner string) error {
	_, err := h.d.Invoke(ctx, "claim_task", map[string]any{"id": h.ID, "owner": owner})
	return err
}

func (h *TaskHandle) Start(ctx context.Context) error {
	_, err := h.d.Invoke(ctx, "start_task", map[string]any{"id": h.ID})
	return err
}

func (h *TaskHandle) Done(ctx context.Context) error {
	_, err := h.d.Invoke(ctx, "complete_task", map[string]any{"id": h.ID})
	return err
}

func (h *TaskHandle) Cancel(ctx context.Context) error {
	_, err := h.d.Invoke(ctx, "cancel_task", map[string]any{"id": h.ID})
	return err
}

func (h *TaskHandle) Delete(ctx context.Context) error {
	_, err := h.d.Invoke(ctx, "delete_task", map[string]any{"id": h.ID})
	return err
}

func (h *TaskHandle) Block(ctx context.Context, reason string) error {
	_, err := h.d.Invoke(ctx, "block_task", map[string]any{"id": h.ID, "reason": reason})
	return err
}

func (h *TaskHandle) WaitOn(ctx context.Context, otherID string) error {
	_, err := h.d.Invoke(ctx, "wait_on_task", map[string]any{"id": h.ID, "other_id": otherID})
	return err
}

func (h *TaskHandle) Update(ctx context.Context, fields map[string]any) error {
	args := map[string]any{"id": h.ID}
	for k, v := range fields {
		args[k] = v
	}
	_, err := h.d.Invoke(ctx, "update_task", args)
	return err
}

// Skill is a full host-side skill definition.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

// SkillSummary is the lightweight listing form of a Skill.
type SkillSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SkillHandle wraps a fetched Skill with the load/read_file auto-await
// methods named in §4.1's fixed handle-method set.
type SkillHandle struct {
	Skill
	d Dispatcher
}

func (h *SkillHandle) Load(ctx context.Context) (string, error) {
	v, err := h.d.Invoke(ctx, "load_skill", map[string]any{"name": h.Name})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (h *SkillHandle) ReadFile(ctx context.Context, path string) (string, error) {
	v, err := h.d.Invoke(ctx, "read_file", map[string]any{"skill": h.Name, "path": path})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// invokeMethod lets an untyped caller (the interpreter) dispatch one of
// the fixed handle methods by name without reflection. Unsupported method
// names return an error rather than panicking, so scripted misuse
// surfaces as an ordinary tool/runtime error.
func (h *ShellHandle) invokeMethod(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "output":
		return h.Output(ctx)
	case "result":
		return h.Result(ctx, argInt(args, 0))
	case "write":
		return nil, h.Write(ctx, argString(args, 0))
	case "kill":
		return nil, h.Kill(ctx)
	default:
		return nil, fmt.Errorf("replcore: ShellHandle has no method %q", method)
	}
}

func (h *AgentHandle) invokeMethod(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "output":
		return h.Output(ctx)
	case "result":
		return h.Result(ctx, argInt(args, 0))
	case "cancel":
		return nil, h.Cancel(ctx)
	default:
		return nil, fmt.Errorf("replcore: AgentHandle has no method %q", method)
	}
}

func (h *TaskHandle) invokeMethod(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "claim":
		return nil, h.Claim(ctx, argString(args, 0))
	case "start":
		return nil, h.Start(ctx)
	case "done":
		return nil, h.Done(ctx)
	case "cancel":
		return nil, h.Cancel(ctx)
	case "delete":
		return nil, h.Delete(ctx)
	case "block":
		return nil, h.Block(ctx, argString(args, 0))
	case "wait_on":
		return nil, h.WaitOn(ctx, argString(args, 0))
	case "update":
		fields, _ := argAt(args, 0).(map[string]any)
		return nil, h.Update(ctx, fields)
	default:
		return nil, fmt.Errorf("replcore: TaskHandle has no method %q", method)
	}
}

func (h *SkillHandle) invokeMethod(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "load":
		return h.Load(ctx)
	case "read_file":
		return h.ReadFile(ctx, argString(args, 0))
	default:
		return nil, fmt.Errorf("replcore: SkillHandle has no method %q", method)
	}
}

func argAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argString(args []any, i int) string {
	s, _ := argAt(args, i).(string)
	return s
}

func argInt(args []any, i int) int {
	switch v := argAt(args, i).(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
