package replcore

import (
	"context"
	"testing"
)

func TestRegistrySkipsHiddenTools(t *testing.T) {
	defs := []ToolDef{
		{Name: "read_file"},
		{Name: "internal_debug", Hidden: true},
	}
	r := NewRegistry(defs, "agent-1", &stubDispatcher{}, nil, nil)

	if _, ok := r.Proxy("internal_debug"); ok {
		t.Error("hidden tool should not have a proxy")
	}
	if _, ok := r.Proxy("read_file"); !ok {
		t.Error("non-hidden tool should have a proxy")
	}
	if got := len(r.ListTools()); got != 1 {
		t.Errorf("ListTools() len = %d, want 1", got)
	}
}

func TestRegistryInjectedGlobals(t *testing.T) {
	defs := []ToolDef{
		{Name: "read_file", InjectIntoPrompt: true},
		{Name: "shell", InjectIntoPrompt: false},
	}
	r := NewRegistry(defs, "agent-1", &stubDispatcher{}, nil, nil)

	globals := r.InjectedGlobals()
	if _, ok := globals["read_file"]; !ok {
		t.Error("read_file should be injected")
	}
	if _, ok := globals["shell"]; ok {
		t.Error("shell should not be injected")
	}
}

func TestRegistryCallUnknownToolErrors(t *testing.T) {
	r := NewRegistry(nil, "agent-1", &stubDispatcher{}, nil, nil)
	if _, err := r.Call(context.Background(), "nope", nil, nil); err == nil {
		t.Fatal("Call() with unknown tool should error")
	}
}

func TestRegistryFindHistoryDelegates(t *testing.T) {
	h := NewTurnHistory()
	h.Append(NewTurn(0, "login bug", "", "", "", nil, nil))
	r := NewRegistry(nil, "agent-1", &stubDispatcher{}, h, nil)

	results := r.FindHistory("login", 10, 0)
	if len(results) != 1 {
		t.Fatalf("FindHistory = %v, want 1 result", results)
	}
}

func TestRegistryFindMemDelegates(t *testing.T) {
	m := NewMem()
	m.Set("color", "favorite color", "blue", 0)
	r := NewRegistry(nil, "agent-1", &stubDispatcher{}, nil, m)

	results := r.FindMem("color", 10)
	if len(results) != 1 {
		t.Fatalf("FindMem = %v, want 1 result", results)
	}
}

func TestPlanModeHeadlessSkipsPrompt(t *testing.T) {
	d := &stubDispatcher{}
	pm := NewPlanMode(d, nil, true)
	decision, err := pm.ExitPlanMode(context.Background(), func(ctx context.Context) (PlanDecision, error) {
		t.Fatal("ask should not be called in headless mode")
		return "", nil
	})
	if err != nil {
		t.Fatalf("ExitPlanMode: %v", err)
	}
	if decision != PlanExecute {
		t.Errorf("decision = %q, want %q", decision, PlanExecute)
	}
}

func TestPlanModeInteractiveSendsApprovalMessage(t *testing.T) {
	d := &stubDispatcher{}
	var sent []byte
	send := func(ctx context.Context, payload []byte) error {
		sent = payload
		return nil
	}
	pm := NewPlanMode(d, send, false)
	decision, err := pm.ExitPlanMode(context.Background(), func(ctx context.Context) (PlanDecision, error) {
		return PlanExecute, nil
	})
	if err != nil {
		t.Fatalf("ExitPlanMode: %v", err)
	}
	if decision != PlanExecute {
		t.Errorf("decision = %q, want %q", decision, PlanExecute)
	}
	if sent == nil {
		t.Error("expected an approval message to be sent")
	}
}
