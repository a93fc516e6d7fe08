package replcore

import (
	"context"
	"encoding/json"
	"testing"
)

type stubDispatcher struct {
	calls []string
	reply any
	err   error
}

func (s *stubDispatcher) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	s.calls = append(s.calls, name)
	return s.reply, s.err
}

func TestShellHandleResultDelegatesToDispatcher(t *testing.T) {
	d := &stubDispatcher{reply: "done\n"}
	h := &ShellHandle{ID: "sh-1", d: d}

	out, err := h.Result(context.Background(), 30)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if out != "done\n" {
		t.Errorf("Result = %q, want %q", out, "done\n")
	}
	if len(d.calls) != 1 || d.calls[0] != "shell_result" {
		t.Errorf("calls = %v, want [shell_result]", d.calls)
	}
}

func TestAgentHandleResultValidatesAgainstSchema(t *testing.T) {
	d := &stubDispatcher{reply: map[string]any{"answer": "42"}}
	schema := &struct {
		Answer string `json:"answer"`
	}{}
	h := &AgentHandle{ID: "ag-1", Schema: schema, d: d}

	v, err := h.Result(context.Background(), 0)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if v != schema || schema.Answer != "42" {
		t.Errorf("Result did not populate schema: %+v", schema)
	}
}

func TestHydrateResultPlainValue(t *testing.T) {
	v, err := HydrateResult(json.RawMessage(`42`), nil, nil)
	if err != nil {
		t.Fatalf("HydrateResult: %v", err)
	}
	if f, ok := v.(float64); !ok || f != 42 {
		t.Errorf("HydrateResult = %v (%T), want 42", v, v)
	}
}

func TestHydrateResultTaskList(t *testing.T) {
	raw := json.RawMessage(`{"__type__":"task_list","items":[{"id":"a1","subject":"x","status":"pending","priority":"low"}]}`)
	v, err := HydrateResult(raw, nil, nil)
	if err != nil {
		t.Fatalf("HydrateResult: %v", err)
	}
	list, ok := v.([]*TaskHandle)
	if !ok || len(list) != 1 {
		t.Fatalf("HydrateResult = %v (%T), want []*TaskHandle of len 1", v, v)
	}
	if list[0].Subject != "x" {
		t.Errorf("Subject = %q, want %q", list[0].Subject, "x")
	}
}

func TestTaskHandleUpdateMergesFields(t *testing.T) {
	d := &stubDispatcher{}
	var captured map[string]any
	h := &TaskHandle{Task: Task{ID: "a1"}, d: &capturingDispatcher{inner: d, capture: &captured}}
	if err := h.Update(context.Background(), map[string]any{"priority": "high"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(d.calls) != 1 || d.calls[0] != "update_task" {
		t.Errorf("calls = %v, want [update_task]", d.calls)
	}
	if captured["id"] != "a1" || captured["priority"] != "high" {
		t.Errorf("update args = %+v, want id=a1 priority=high", captured)
	}
}
