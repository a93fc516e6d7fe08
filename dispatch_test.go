package replcore

import (
	"context"
	"testing"

	"github.com/turnscript/replcore/faketest"
)

func TestDispatcherInvokeHydratesTask(t *testing.T) {
	fb := faketest.NewBridge()
	fb.Handle("get_task", map[string]any{"__type__": "task", "id": "a1", "subject": "fix", "status": "pending", "priority": "medium"})

	d := NewToolDispatcher(fb)
	v, err := d.Invoke(context.Background(), "get_task", map[string]any{"id": "a1"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	th, ok := v.(*TaskHandle)
	if !ok {
		t.Fatalf("Invoke returned %T, want *TaskHandle", v)
	}
	if th.Subject != "fix" {
		t.Errorf("Subject = %q, want %q", th.Subject, "fix")
	}
}

func TestDispatcherInvokeFailureReturnsToolError(t *testing.T) {
	fb := faketest.NewBridge()
	fb.HandleFailure("shell", map[string]any{"code": 1, "stderr": "boom"})

	d := NewToolDispatcher(fb)
	_, err := d.Invoke(context.Background(), "shell", map[string]any{"cmd": "false"})
	if err == nil {
		t.Fatal("Invoke: expected error")
	}
	te, ok := err.(*ToolError)
	if !ok {
		t.Fatalf("Invoke error = %T, want *ToolError", err)
	}
	if !te.IsFalsy() {
		t.Error("ToolError must be falsy")
	}
	if te.Tool != "shell" {
		t.Errorf("Tool = %q, want %q", te.Tool, "shell")
	}
}

func TestDispatcherHydratesShellHandle(t *testing.T) {
	fb := faketest.NewBridge()
	fb.Handle("shell", map[string]any{"__handle__": "shell", "id": "sh-1"})

	d := NewToolDispatcher(fb)
	v, err := d.Invoke(context.Background(), "shell", map[string]any{"cmd": "echo hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	sh, ok := v.(*ShellHandle)
	if !ok {
		t.Fatalf("Invoke returned %T, want *ShellHandle", v)
	}
	if sh.ID != "sh-1" {
		t.Errorf("ID = %q, want %q", sh.ID, "sh-1")
	}
}

func TestDispatcherAgentCallAttachesSchema(t *testing.T) {
	fb := faketest.NewBridge()
	fb.Handle("agent_call", map[string]any{"__handle__": "agent", "id": "ag-1"})

	schema := &struct {
		Answer string `json:"answer"`
	}{}
	d := NewToolDispatcher(fb).WithSchema(schema)
	v, err := d.Invoke(context.Background(), "agent_call", map[string]any{"task": "summarize"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	ah, ok := v.(*AgentHandle)
	if !ok {
		t.Fatalf("Invoke returned %T, want *AgentHandle", v)
	}
	if ah.Schema != schema {
		t.Error("AgentHandle.Schema was not attached from WithSchema")
	}
}
